// Package engine runs one check cycle for a source: poll, apply the batch to
// the state table, record history and notify subscribers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/donaldgifford/restock-tracker/internal/metrics"
	"github.com/donaldgifford/restock-tracker/internal/notify"
	"github.com/donaldgifford/restock-tracker/internal/source"
	"github.com/donaldgifford/restock-tracker/internal/state"
	"github.com/donaldgifford/restock-tracker/internal/subscribers"
)

const instrumentationName = "github.com/donaldgifford/restock-tracker/internal/engine"

var tracer = otel.Tracer(instrumentationName)

// StateTable applies observations in one locked transaction.
type StateTable interface {
	Update(fn func(tx *state.Tx) error) error
}

// HistoryRecorder appends changes to the history log.
type HistoryRecorder interface {
	Append(changes []state.Change) error
}

// SubscriberLister returns the current subscribers.
type SubscriberLister interface {
	List() ([]subscribers.Subscriber, error)
}

// Notifier delivers restock notifications.
type Notifier interface {
	Notify(ctx context.Context, changes []state.Change, users []subscribers.Subscriber) (*notify.Summary, error)
}

// Result describes one check cycle.
type Result struct {
	RunID        string          `json:"run_id"`
	Source       string          `json:"source"`
	NotModified  bool            `json:"not_modified"`
	Observed     int             `json:"observed"`
	Touched      int             `json:"touched"`
	Removed      []string        `json:"removed,omitempty"`
	Changes      []state.Change  `json:"changes"`
	Notification *notify.Summary `json:"notification,omitempty"`
	Duration     time.Duration   `json:"duration_ns"`
}

// Engine wires a check cycle together.
type Engine struct {
	states   StateTable
	history  HistoryRecorder
	subs     SubscriberLister
	notifier Notifier
	log      *slog.Logger

	meterProvider metric.MeterProvider
	checks        metric.Int64Counter
	observations  metric.Int64Counter
	changes       metric.Int64Counter
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithMeterProvider records check counters through mp instead of the global
// meter provider.
func WithMeterProvider(mp metric.MeterProvider) EngineOption {
	return func(e *Engine) {
		e.meterProvider = mp
	}
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(
	states StateTable,
	history HistoryRecorder,
	subs SubscriberLister,
	n Notifier,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		states:   states,
		history:  history,
		subs:     subs,
		notifier: n,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.meterProvider == nil {
		eng.meterProvider = otel.GetMeterProvider()
	}
	eng.initInstruments()
	return eng
}

func (e *Engine) initInstruments() {
	meter := e.meterProvider.Meter(instrumentationName)
	var err error
	if e.checks, err = meter.Int64Counter("restock.check.runs",
		metric.WithDescription("Completed check cycles."),
	); err != nil {
		e.log.Warn("creating check counter", "error", err)
	}
	if e.observations, err = meter.Int64Counter("restock.check.observations",
		metric.WithDescription("Observations applied to the state table."),
	); err != nil {
		e.log.Warn("creating observation counter", "error", err)
	}
	if e.changes, err = meter.Int64Counter("restock.check.changes",
		metric.WithDescription("Committed availability changes."),
	); err != nil {
		e.log.Warn("creating change counter", "error", err)
	}
}

func (e *Engine) record(ctx context.Context, res *Result) {
	srcAttr := metric.WithAttributes(attribute.String("source", res.Source))
	if e.checks != nil {
		e.checks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", res.Source),
			attribute.Bool("not_modified", res.NotModified),
		))
	}
	if e.observations != nil {
		e.observations.Add(ctx, int64(res.Observed), srcAttr)
	}
	if e.changes != nil {
		e.changes.Add(ctx, int64(len(res.Changes)), srcAttr)
	}
}

// RunCheck polls src and applies the result. The poll runs without holding
// any lock; the whole batch is then applied in a single state transaction.
// History and notifications only see changes that were committed, and the
// batch's Commit hook runs only after the state transaction succeeded.
//
// A failed poll or state update returns an error and leaves the state table
// untouched. History and subscriber storage errors are returned after
// notification has been attempted.
func (e *Engine) RunCheck(ctx context.Context, src source.Source) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString(), Source: src.Name()}
	log := e.log.With("source", res.Source, "run_id", res.RunID)

	ctx, span := tracer.Start(ctx, "engine.RunCheck")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", res.Source),
		attribute.String("run_id", res.RunID),
	)

	batch, err := src.Poll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "poll failed")
		return nil, fmt.Errorf("polling %s: %w", res.Source, err)
	}

	if err := e.apply(src.Prefix(), batch, res, log); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "state update failed")
		return nil, fmt.Errorf("updating state for %s: %w", res.Source, err)
	}
	if batch.Commit != nil {
		if err := batch.Commit(); err != nil {
			log.Warn("failed to commit source batch", "error", err)
		}
	}

	metrics.ObservationsTotal.WithLabelValues(res.Source).Add(float64(res.Observed))
	e.record(ctx, res)
	metrics.StaleKeysRemovedTotal.WithLabelValues(res.Source).Add(float64(len(res.Removed)))
	for i := range res.Changes {
		c := &res.Changes[i]
		metrics.ChangesTotal.WithLabelValues(res.Source, strconv.FormatBool(c.Available)).Inc()
		log.Info("availability changed",
			"product", c.Key,
			"title", c.TitleOr(c.Key),
			"available", c.Available,
			"first_seen", c.FirstSeen(),
		)
	}
	span.SetAttributes(
		attribute.Int("observed", res.Observed),
		attribute.Int("changes", len(res.Changes)),
		attribute.Bool("not_modified", res.NotModified),
	)

	var errs []error
	if len(res.Changes) > 0 {
		if err := e.history.Append(res.Changes); err != nil {
			log.Error("failed to record history", "error", err)
			errs = append(errs, fmt.Errorf("recording history: %w", err))
		}

		if err := e.notify(ctx, res, log); err != nil {
			errs = append(errs, err)
		}
	}

	res.Duration = time.Since(start)
	log.Info("check complete",
		"observed", res.Observed,
		"changes", len(res.Changes),
		"removed", len(res.Removed),
		"not_modified", res.NotModified,
		"duration", res.Duration,
	)

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "post-commit step failed")
		return res, err
	}
	return res, nil
}

func (e *Engine) apply(prefix string, batch *source.Batch, res *Result, log *slog.Logger) error {
	return e.states.Update(func(tx *state.Tx) error {
		res.Removed = nil
		res.Observed = 0

		if batch.NotModified {
			res.NotModified = true
			res.Touched = tx.Touch(prefix)
			return nil
		}

		observed := make(map[string]struct{}, len(batch.Observations))
		for i := range batch.Observations {
			observed[batch.Observations[i].Key] = struct{}{}
		}

		for _, key := range batch.Remove {
			if _, ok := observed[key]; ok || state.SourceOf(key) != prefix {
				continue
			}
			if tx.Remove(key) {
				res.Removed = append(res.Removed, key)
			}
		}
		if batch.Stale != nil {
			for _, key := range tx.Keys() {
				if state.SourceOf(key) != prefix {
					continue
				}
				if _, ok := observed[key]; ok || !batch.Stale(key) {
					continue
				}
				tx.Remove(key)
				res.Removed = append(res.Removed, key)
			}
		}

		for i := range batch.Observations {
			o := &batch.Observations[i]
			if state.SourceOf(o.Key) != prefix {
				log.Warn("ignoring observation outside source prefix", "product", o.Key, "prefix", prefix)
				continue
			}
			tx.Apply(o.Key, o.Available, o.Extras)
			res.Observed++
		}

		res.Changes = tx.Changes()
		return nil
	})
}

func (e *Engine) notify(ctx context.Context, res *Result, log *slog.Logger) error {
	users, err := e.subs.List()
	if err != nil {
		log.Error("failed to load subscribers", "error", err)
		return fmt.Errorf("loading subscribers: %w", err)
	}

	summary, err := e.notifier.Notify(ctx, res.Changes, users)
	res.Notification = summary
	if err != nil {
		log.Error("notification failed", "error", err)
		return fmt.Errorf("notifying subscribers: %w", err)
	}
	if summary != nil && summary.Restocked > 0 {
		log.Info("notifications sent",
			"restocked", summary.Restocked,
			"notified", summary.Notified,
			"failed", summary.Failed,
		)
	}
	return nil
}
