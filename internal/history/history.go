// Package history keeps the append-only, size-capped log of availability
// transitions.
package history

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
	"github.com/donaldgifford/restock-tracker/internal/metrics"
	"github.com/donaldgifford/restock-tracker/internal/state"
)

// Defaults.
const (
	DefaultMaxEntries = 1000
	DefaultLimit      = 200
)

// Entry is one recorded transition. Attributes carry the extras supplied
// with the observation; Title shadows the attribute of the same name.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	ProductKey string    `json:"product_key"`
	Available  bool      `json:"available"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	state.Attributes
}

// Labeler resolves the source label of a product key.
type Labeler interface {
	SourceLabel(key string) string
}

type prefixLabeler struct{}

func (prefixLabeler) SourceLabel(key string) string { return state.SourceOf(key) }

// Log is the persisted history log.
type Log struct {
	store  *jsonstore.Store[[]Entry]
	max    int
	labels Labeler
	now    func() time.Time
	log    *slog.Logger
}

// Option configures a Log.
type Option func(*logOptions)

type logOptions struct {
	max       int
	labels    Labeler
	now       func() time.Time
	log       *slog.Logger
	storeOpts []jsonstore.Option
}

// WithMaxEntries caps the log length.
func WithMaxEntries(n int) Option {
	return func(o *logOptions) {
		o.max = n
	}
}

// WithLabeler sets how source labels are derived.
func WithLabeler(l Labeler) Option {
	return func(o *logOptions) {
		o.labels = l
	}
}

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *logOptions) {
		o.now = now
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *logOptions) {
		o.log = l
	}
}

// WithStoreOptions passes options to the underlying document store.
func WithStoreOptions(opts ...jsonstore.Option) Option {
	return func(o *logOptions) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// New opens the history log stored at path.
func New(path string, opts ...Option) *Log {
	o := logOptions{
		max:    DefaultMaxEntries,
		labels: prefixLabeler{},
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.max < 1 {
		o.max = DefaultMaxEntries
	}

	return &Log{
		store:  jsonstore.New(path, func() []Entry { return []Entry{} }, o.storeOpts...),
		max:    o.max,
		labels: o.labels,
		now:    o.now,
		log:    o.log,
	}
}

// Append records changes in one transaction. Every entry gets the same
// timestamp; the oldest entries are dropped once the log exceeds its cap.
func (l *Log) Append(changes []state.Change) error {
	if len(changes) == 0 {
		return nil
	}

	now := l.now().UTC()
	entries := make([]Entry, 0, len(changes))
	for i := range changes {
		c := &changes[i]
		attrs := c.Attributes
		attrs.Title = nil
		entries = append(entries, Entry{
			Timestamp:  now,
			ProductKey: c.Key,
			Available:  c.Available,
			Title:      c.TitleOr(c.Key),
			Source:     l.labels.SourceLabel(c.Key),
			Attributes: attrs,
		})
	}

	err := l.store.Update(func(log *[]Entry) error {
		*log = append(*log, entries...)
		if over := len(*log) - l.max; over > 0 {
			*log = append([]Entry(nil), (*log)[over:]...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}

	metrics.HistoryEntriesTotal.Add(float64(len(entries)))
	for i := range entries {
		l.log.Info("recorded history",
			"product_key", entries[i].ProductKey,
			"title", entries[i].Title,
			"available", entries[i].Available,
		)
	}
	return nil
}

// List returns entries newest first, optionally filtered to one product
// key, truncated to limit (DefaultLimit when limit <= 0).
func (l *Log) List(productKey string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	log, err := l.store.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	out := make([]Entry, 0, min(limit, len(log)))
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		if productKey != "" && log[i].ProductKey != productKey {
			continue
		}
		out = append(out, log[i])
	}
	return out, nil
}

// Len returns the number of stored entries.
func (l *Log) Len() (int, error) {
	log, err := l.store.Snapshot()
	if err != nil {
		return 0, err
	}
	return len(log), nil
}
