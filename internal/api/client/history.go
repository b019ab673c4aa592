package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/donaldgifford/restock-tracker/internal/history"
)

// ListHistory returns history entries, newest first, optionally for one
// product. A limit of zero uses the server default.
func (c *Client) ListHistory(ctx context.Context, product string, limit int) ([]history.Entry, error) {
	q := url.Values{}
	if product != "" {
		q.Set("product", product)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out struct {
		Entries []history.Entry `json:"entries"`
	}
	if err := c.get(ctx, "/api/v1/history", q, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}
