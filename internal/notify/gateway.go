// Package notify turns restock transitions into bundled SMS messages and
// delivers them through a Gateway.
package notify

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned by the NoOp gateway.
	ErrNotConfigured = errors.New("sms gateway not configured")
	// ErrDailyCap is returned once the daily send cap is reached.
	ErrDailyCap = errors.New("daily sms cap reached")
)

// Gateway delivers one text message. Any non-nil error means the message
// was not delivered.
type Gateway interface {
	Send(ctx context.Context, phone, message string) error
}
