// Package handlers implements the HTTP handlers of the restock-tracker API.
// Operational endpoints are plain echo handlers; the /api/v1 surface is
// registered with Huma so it carries a generated OpenAPI document.
package handlers

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

// StatusResponse is a generic status response body.
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}
