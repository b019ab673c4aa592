package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/restock-tracker/internal/notify"
	"github.com/donaldgifford/restock-tracker/internal/subscribers"
)

// SMSStatsProvider reports SMS usage.
type SMSStatsProvider interface {
	Stats() (*notify.Stats, error)
}

// SMSHandler serves SMS usage statistics.
type SMSHandler struct {
	stats SMSStatsProvider
}

// NewSMSHandler creates a new SMSHandler.
func NewSMSHandler(s SMSStatsProvider) *SMSHandler {
	return &SMSHandler{stats: s}
}

// GetSMSStatsOutput is the response for SMS statistics. Phone numbers are
// masked.
type GetSMSStatsOutput struct {
	Body notify.Stats
}

// GetSMSStats returns today's count, the daily cap and per-phone usage.
func (h *SMSHandler) GetSMSStats(
	_ context.Context,
	_ *struct{},
) (*GetSMSStatsOutput, error) {
	s, err := h.stats.Stats()
	if err != nil {
		return nil, huma.Error500InternalServerError("reading sms stats failed: " + err.Error())
	}
	return &GetSMSStatsOutput{Body: maskStats(s)}, nil
}

func maskStats(s *notify.Stats) notify.Stats {
	out := notify.Stats{
		Today:       s.Today,
		Total:       s.Total,
		Cap:         s.Cap,
		ByPhone:     make(map[string]int, len(s.ByPhone)),
		LastMessage: make(map[string]notify.LastMessage, len(s.LastMessage)),
	}
	for phone, n := range s.ByPhone {
		out.ByPhone[subscribers.MaskPhone(phone)] += n
	}
	for phone, m := range s.LastMessage {
		masked := subscribers.MaskPhone(phone)
		if prev, ok := out.LastMessage[masked]; ok && prev.At.After(m.At) {
			continue
		}
		out.LastMessage[masked] = m
	}
	return out
}

// RegisterSMSRoutes registers SMS endpoints with the Huma API.
func RegisterSMSRoutes(api huma.API, h *SMSHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-sms-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/sms/stats",
		Summary:     "Get SMS usage",
		Description: "Returns sent message counts against the daily cap. Phone numbers are masked.",
		Tags:        []string{"notifications"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.GetSMSStats)
}
