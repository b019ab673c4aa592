package notify

import (
	"context"
	"log/slog"

	"github.com/donaldgifford/restock-tracker/internal/subscribers"
)

// NoOpGateway implements Gateway by logging and discarding messages. It is
// used when no SMS provider is configured. Messages count as undelivered, so
// nobody is auto-unsubscribed from an alert they never received.
type NoOpGateway struct {
	log *slog.Logger
}

// NewNoOpGateway creates a gateway that discards messages with a log line.
func NewNoOpGateway(log *slog.Logger) *NoOpGateway {
	return &NoOpGateway{log: log}
}

// Send logs and discards the message.
func (n *NoOpGateway) Send(_ context.Context, phone, message string) error {
	n.log.Warn("sms discarded (no provider configured)",
		"phone", subscribers.MaskPhone(phone),
		"length", len(message),
	)
	return ErrNotConfigured
}
