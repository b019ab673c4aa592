package notify

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/donaldgifford/restock-tracker/internal/metrics"
	"github.com/donaldgifford/restock-tracker/internal/state"
	"github.com/donaldgifford/restock-tracker/internal/subscribers"
)

// Defaults.
const (
	DefaultUnsubThreshold = 100
	DefaultTrackerURL     = "https://soylent.dev/buy"
)

var tracer = otel.Tracer("github.com/donaldgifford/restock-tracker/internal/notify")

// Catalog resolves how a product is named and linked in messages.
type Catalog interface {
	Prepaid(key, productType, title string) bool
	SMSName(key, fallback string) string
	ProductURL(key, handle string) string
}

// SubscriptionRemover applies auto-unsubscribes in one locked pass.
type SubscriptionRemover interface {
	RemoveSubscriptions(removals map[string][]string) (map[string]int, error)
}

// Summary describes the outcome of one Notify call.
type Summary struct {
	Restocked    int            `json:"restocked"`
	Notified     int            `json:"notified"`
	Failed       int            `json:"failed"`
	Unsubscribed map[string]int `json:"unsubscribed,omitempty"`
}

// Engine fans restock changes out to subscribers.
type Engine struct {
	gateway    Gateway
	catalog    Catalog
	subs       SubscriptionRemover
	threshold  int
	trackerURL string
	log        *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithThreshold sets the quantity above which a restock auto-unsubscribes.
func WithThreshold(n int) EngineOption {
	return func(e *Engine) {
		e.threshold = n
	}
}

// WithTrackerURL sets the link used in multi-item messages.
func WithTrackerURL(u string) EngineOption {
	return func(e *Engine) {
		e.trackerURL = u
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// NewEngine creates a notification engine.
func NewEngine(gw Gateway, cat Catalog, subs SubscriptionRemover, opts ...EngineOption) *Engine {
	e := &Engine{
		gateway:    gw,
		catalog:    cat,
		subs:       subs,
		threshold:  DefaultUnsubThreshold,
		trackerURL: DefaultTrackerURL,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Notify sends one bundled message to every enabled subscriber following at
// least one restocked product, then removes high-stock subscriptions of the
// subscribers whose message went out. Delivery failures are logged and
// isolated; only a failure to persist the unsubscribes is returned.
func (e *Engine) Notify(
	ctx context.Context,
	changes []state.Change,
	users []subscribers.Subscriber,
) (*Summary, error) {
	restocked := e.restocked(changes)
	summary := &Summary{Restocked: len(restocked)}
	if len(restocked) == 0 {
		return summary, nil
	}

	ctx, span := tracer.Start(ctx, "notify.Notify")
	defer span.End()
	span.SetAttributes(attribute.Int("restocked", len(restocked)))

	removals := make(map[string][]string)

	for i := range users {
		u := &users[i]
		if !u.NotificationsEnabled {
			continue
		}

		items, unsub := e.itemsFor(u, restocked)
		if len(items) == 0 {
			continue
		}

		msg := FormatMessage(items, unsub, e.trackerURL)
		if err := e.gateway.Send(ctx, u.Phone, msg); err != nil {
			summary.Failed++
			e.log.Warn("failed to notify",
				"phone", subscribers.MaskPhone(u.Phone),
				"items", len(items),
				"error", err,
			)
			continue
		}
		summary.Notified++

		for _, it := range items {
			if unsub[it.Key] {
				removals[u.Phone] = append(removals[u.Phone], it.Key)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("notified", summary.Notified),
		attribute.Int("failed", summary.Failed),
	)

	if len(removals) == 0 {
		return summary, nil
	}

	removed, err := e.subs.RemoveSubscriptions(removals)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "auto-unsubscribe failed")
		return summary, fmt.Errorf("applying auto-unsubscribes: %w", err)
	}
	summary.Unsubscribed = removed
	for phone, n := range removed {
		metrics.AutoUnsubscribesTotal.Add(float64(n))
		e.log.Info("auto-unsubscribed",
			"phone", subscribers.MaskPhone(phone),
			"products", n,
		)
	}

	return summary, nil
}

// restocked keeps the changes that went available and are notifiable, in
// arrival order.
func (e *Engine) restocked(changes []state.Change) []state.Change {
	var out []state.Change
	for i := range changes {
		c := &changes[i]
		if !c.Available {
			continue
		}
		productType := ""
		if c.ProductType != nil {
			productType = *c.ProductType
		}
		if e.catalog.Prepaid(c.Key, productType, c.TitleOr("")) {
			continue
		}
		out = append(out, *c)
	}
	return out
}

// itemsFor intersects the subscriber's subscriptions with the restocked
// changes, keeping change order, and marks the high-stock keys.
func (e *Engine) itemsFor(u *subscribers.Subscriber, restocked []state.Change) ([]Item, map[string]bool) {
	subs := make(map[string]struct{}, len(u.Subscriptions))
	for _, k := range u.Subscriptions {
		subs[k] = struct{}{}
	}

	var items []Item
	unsub := make(map[string]bool)
	for i := range restocked {
		c := &restocked[i]
		if _, ok := subs[c.Key]; !ok {
			continue
		}

		handle := ""
		if c.Handle != nil {
			handle = *c.Handle
		}
		items = append(items, Item{
			Key:  c.Key,
			Name: e.catalog.SMSName(c.Key, c.TitleOr(c.Key)),
			URL:  e.catalog.ProductURL(c.Key, handle),
			Qty:  c.InventoryQty,
		})

		if qty, ok := c.Quantity(); ok && qty > e.threshold {
			unsub[c.Key] = true
		}
	}
	return items, unsub
}
