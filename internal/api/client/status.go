package client

import (
	"context"
	"net/url"

	"github.com/donaldgifford/restock-tracker/internal/notify"
	"github.com/donaldgifford/restock-tracker/internal/scheduler"
)

// SMSStats returns SMS usage with masked phone numbers.
func (c *Client) SMSStats(ctx context.Context) (*notify.Stats, error) {
	var out notify.Stats
	if err := c.get(ctx, "/api/v1/sms/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs returns the status of every scheduled job.
func (c *Client) ListJobs(ctx context.Context) ([]scheduler.JobStatus, error) {
	var out []scheduler.JobStatus
	if err := c.get(ctx, "/api/v1/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetJob returns the status of one job.
func (c *Client) GetJob(ctx context.Context, name string) (*scheduler.JobStatus, error) {
	var out scheduler.JobStatus
	if err := c.get(ctx, "/api/v1/jobs/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
