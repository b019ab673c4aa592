package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/restock-tracker/internal/scheduler"
)

// JobsProvider reports the state of scheduled work.
type JobsProvider interface {
	Status() []scheduler.JobStatus
}

// JobsHandler handles scheduler status requests.
type JobsHandler struct {
	scheduler JobsProvider
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(s JobsProvider) *JobsHandler {
	return &JobsHandler{scheduler: s}
}

// ListJobsOutput is the response body for listing jobs.
type ListJobsOutput struct {
	Body []scheduler.JobStatus
}

// GetJobInput is the request path for one job.
type GetJobInput struct {
	Name string `path:"name" doc:"Job name (a source name or a maintenance job)"`
}

// GetJobOutput is the response body for one job.
type GetJobOutput struct {
	Body scheduler.JobStatus
}

// ListJobs returns every registered checker and cron job ordered by name.
func (h *JobsHandler) ListJobs(
	_ context.Context,
	_ *struct{},
) (*ListJobsOutput, error) {
	jobs := h.scheduler.Status()
	if jobs == nil {
		jobs = []scheduler.JobStatus{}
	}
	return &ListJobsOutput{Body: jobs}, nil
}

// GetJob returns the status of a single job.
func (h *JobsHandler) GetJob(
	_ context.Context,
	input *GetJobInput,
) (*GetJobOutput, error) {
	for _, j := range h.scheduler.Status() {
		if j.Name == input.Name {
			return &GetJobOutput{Body: j}, nil
		}
	}
	return nil, huma.Error404NotFound("job not found")
}

// RegisterJobRoutes registers scheduler job endpoints with the Huma API.
func RegisterJobRoutes(api huma.API, h *JobsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs",
		Summary:     "List scheduler jobs",
		Description: "Returns run counts, the last error and the next run of every checker and maintenance job.",
		Tags:        []string{"scheduler"},
	}, h.ListJobs)

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs/{name}",
		Summary:     "Get scheduler job",
		Description: "Returns the status of one checker or maintenance job.",
		Tags:        []string{"scheduler"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetJob)
}
