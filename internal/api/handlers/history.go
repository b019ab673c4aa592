package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/restock-tracker/internal/history"
)

// HistoryReader lists recorded availability transitions.
type HistoryReader interface {
	List(productKey string, limit int) ([]history.Entry, error)
	Len() (int, error)
}

// HistoryHandler serves the change history.
type HistoryHandler struct {
	log HistoryReader
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(l HistoryReader) *HistoryHandler {
	return &HistoryHandler{log: l}
}

// ListHistoryInput is the input for listing history entries.
type ListHistoryInput struct {
	Product string `query:"product" doc:"Filter by product key"`
	Limit   int    `query:"limit"   doc:"Number of entries (default 200)" minimum:"0" maximum:"5000"`
}

// ListHistoryOutput is the response for listing history entries.
type ListHistoryOutput struct {
	Body struct {
		Entries []history.Entry `json:"entries"`
		Count   int             `json:"count"`
		Stored  int             `json:"stored" doc:"Entries kept in the capped log"`
	}
}

// ListHistory returns recorded transitions, newest first.
func (h *HistoryHandler) ListHistory(
	_ context.Context,
	input *ListHistoryInput,
) (*ListHistoryOutput, error) {
	entries, err := h.log.List(input.Product, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("reading history failed: " + err.Error())
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	stored, err := h.log.Len()
	if err != nil {
		return nil, huma.Error500InternalServerError("reading history failed: " + err.Error())
	}

	out := &ListHistoryOutput{}
	out.Body.Entries = entries
	out.Body.Count = len(entries)
	out.Body.Stored = stored
	return out, nil
}

// RegisterHistoryRoutes registers history endpoints with the Huma API.
func RegisterHistoryRoutes(api huma.API, h *HistoryHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/history",
		Summary:     "List availability history",
		Description: "Returns recorded availability transitions, newest first.",
		Tags:        []string{"history"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListHistory)
}
