package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
	"github.com/donaldgifford/restock-tracker/internal/metrics"
	"github.com/donaldgifford/restock-tracker/internal/subscribers"
)

// Guard defaults.
const (
	DefaultDailyCap       = 200
	DefaultStatsRetention = 90
	dayLayout             = "2006-01-02"
)

// otpPrefix matches a leading one-time code so it never lands in stats.
var otpPrefix = regexp.MustCompile(`^\d{4,6}\s+`)

// LastMessage is the most recent message sent to one phone.
type LastMessage struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// StatsDocument is the persisted sms_stats.json document.
type StatsDocument struct {
	Total       int                    `json:"total"`
	Daily       map[string]int         `json:"daily"`
	ByPhone     map[string]int         `json:"by_phone"`
	LastMessage map[string]LastMessage `json:"last_message"`
}

// Stats is the SMS usage summary served to operators.
type Stats struct {
	Today       int                    `json:"today"`
	Total       int                    `json:"total"`
	Cap         int                    `json:"cap"`
	ByPhone     map[string]int         `json:"by_phone"`
	LastMessage map[string]LastMessage `json:"last_message"`
}

// GuardedGateway wraps a provider Gateway with a blocked number list, a
// daily send cap, a rate limit and persistent send statistics.
type GuardedGateway struct {
	next     Gateway
	stats    *jsonstore.Store[StatsDocument]
	blocked  map[string]struct{}
	dailyCap int
	limiter  *rate.Limiter
	now      func() time.Time
	log      *slog.Logger
}

// GuardOption configures a GuardedGateway.
type GuardOption func(*guardOptions)

type guardOptions struct {
	blocked   []string
	dailyCap  int
	limiter   *rate.Limiter
	now       func() time.Time
	log       *slog.Logger
	storeOpts []jsonstore.Option
}

// WithBlocked sets numbers that never receive a message. Sends to them
// report success.
func WithBlocked(phones []string) GuardOption {
	return func(o *guardOptions) {
		o.blocked = append(o.blocked, phones...)
	}
}

// WithDailyCap sets the maximum number of messages per UTC day.
func WithDailyCap(n int) GuardOption {
	return func(o *guardOptions) {
		o.dailyCap = n
	}
}

// WithRateLimit limits provider calls to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) GuardOption {
	return func(o *guardOptions) {
		if perSecond <= 0 {
			o.limiter = nil
			return
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithGuardClock overrides the clock used for daily buckets.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(o *guardOptions) {
		o.now = now
	}
}

// WithGuardLogger sets a custom logger.
func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(o *guardOptions) {
		o.log = l
	}
}

// WithStatsStoreOptions passes options to the stats document store.
func WithStatsStoreOptions(opts ...jsonstore.Option) GuardOption {
	return func(o *guardOptions) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// NewGuardedGateway wraps next, recording statistics in the document at
// statsPath.
func NewGuardedGateway(next Gateway, statsPath string, opts ...GuardOption) *GuardedGateway {
	o := guardOptions{
		dailyCap: DefaultDailyCap,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	blocked := make(map[string]struct{}, len(o.blocked))
	for _, p := range o.blocked {
		blocked[p] = struct{}{}
	}

	return &GuardedGateway{
		next:     next,
		stats:    jsonstore.New(statsPath, newStatsDocument, o.storeOpts...),
		blocked:  blocked,
		dailyCap: o.dailyCap,
		limiter:  o.limiter,
		now:      o.now,
		log:      o.log,
	}
}

func newStatsDocument() StatsDocument {
	return StatsDocument{
		Daily:       map[string]int{},
		ByPhone:     map[string]int{},
		LastMessage: map[string]LastMessage{},
	}
}

// Send delivers message unless the phone is blocked or the daily cap is
// reached, and records successful sends. A slot under the cap is reserved in
// the stats document before the provider is called and released again when
// the send fails, so concurrent senders never exceed the cap.
func (g *GuardedGateway) Send(ctx context.Context, phone, message string) error {
	masked := subscribers.MaskPhone(phone)

	if _, ok := g.blocked[phone]; ok {
		metrics.SMSBlockedTotal.WithLabelValues("blocked").Inc()
		g.log.Debug("sms suppressed for blocked number", "phone", masked)
		return nil
	}

	day := g.day()
	sent, err := g.reserve(day)
	if errors.Is(err, ErrDailyCap) {
		metrics.SMSBlockedTotal.WithLabelValues("daily_cap").Inc()
		g.log.Error("daily sms cap reached", "cap", g.dailyCap, "phone", masked)
		return fmt.Errorf("%w (%d)", ErrDailyCap, g.dailyCap)
	}
	if err != nil {
		return fmt.Errorf("checking daily cap: %w", err)
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.release(day, masked)
			return fmt.Errorf("waiting for sms rate limiter: %w", err)
		}
	}

	start := time.Now()
	err = g.next.Send(ctx, phone, message)
	metrics.NotificationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SMSFailuresTotal.Inc()
		g.logFailure(masked, err)
		g.release(day, masked)
		return err
	}
	metrics.SMSSentTotal.Inc()

	if err := g.record(phone, message); err != nil {
		g.log.Warn("recording sms stats", "phone", masked, "error", err)
		return nil
	}
	g.log.Info("sms sent", "phone", masked, "today", sent, "cap", g.dailyCap)
	return nil
}

func (g *GuardedGateway) logFailure(masked string, err error) {
	switch {
	case errors.Is(err, ErrInvalidNumber):
		g.log.Error("invalid phone number", "phone", masked)
	case errors.Is(err, ErrCannotReceive):
		g.log.Error("phone cannot receive sms", "phone", masked)
	case errors.Is(err, ErrRateLimited):
		g.log.Warn("sms provider rate limited, message deferred", "phone", masked)
	case errors.Is(err, ErrNotConfigured):
		g.log.Warn("sms provider not configured, message skipped", "phone", masked)
	default:
		g.log.Error("sms send failed", "phone", masked, "error", err)
	}
}

func (g *GuardedGateway) day() string {
	return g.now().UTC().Format(dayLayout)
}

// reserve counts a send for day and returns the new daily count, or
// ErrDailyCap without writing when the cap is already reached.
func (g *GuardedGateway) reserve(day string) (int, error) {
	var sent int
	err := g.stats.Update(func(doc *StatsDocument) error {
		if doc.Daily == nil {
			doc.Daily = map[string]int{}
		}
		if doc.Daily[day] >= g.dailyCap {
			return ErrDailyCap
		}
		doc.Total++
		doc.Daily[day]++
		sent = doc.Daily[day]
		return nil
	})
	return sent, err
}

// release undoes a reservation for a send that did not go out.
func (g *GuardedGateway) release(day, masked string) {
	err := g.stats.Update(func(doc *StatsDocument) error {
		if doc.Daily[day] > 0 {
			doc.Daily[day]--
		}
		if doc.Total > 0 {
			doc.Total--
		}
		return nil
	})
	if err != nil {
		g.log.Warn("releasing sms reservation", "phone", masked, "error", err)
	}
}

// record stores the per-phone counters of a successful send.
func (g *GuardedGateway) record(phone, message string) error {
	return g.stats.Update(func(doc *StatsDocument) error {
		if doc.ByPhone == nil {
			doc.ByPhone = map[string]int{}
		}
		if doc.LastMessage == nil {
			doc.LastMessage = map[string]LastMessage{}
		}

		doc.ByPhone[phone]++
		doc.LastMessage[phone] = LastMessage{
			Text: otpPrefix.ReplaceAllString(message, "[code] "),
			At:   g.now().UTC(),
		}
		return nil
	})
}

// Stats returns the current usage summary.
func (g *GuardedGateway) Stats() (*Stats, error) {
	doc, err := g.stats.Read()
	if err != nil {
		return nil, fmt.Errorf("reading sms stats: %w", err)
	}

	s := &Stats{
		Today:       doc.Daily[g.day()],
		Total:       doc.Total,
		Cap:         g.dailyCap,
		ByPhone:     doc.ByPhone,
		LastMessage: doc.LastMessage,
	}
	if s.ByPhone == nil {
		s.ByPhone = map[string]int{}
	}
	if s.LastMessage == nil {
		s.LastMessage = map[string]LastMessage{}
	}
	return s, nil
}

// PruneStats drops daily counters older than retentionDays and returns how
// many were removed.
func (g *GuardedGateway) PruneStats(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultStatsRetention
	}
	cutoff := g.now().UTC().AddDate(0, 0, -retentionDays).Format(dayLayout)

	removed := 0
	err := g.stats.Update(func(doc *StatsDocument) error {
		for day := range doc.Daily {
			if day < cutoff {
				delete(doc.Daily, day)
				removed++
			}
		}
		if removed == 0 {
			return errNothingToPrune
		}
		return nil
	})
	if errors.Is(err, errNothingToPrune) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pruning sms stats: %w", err)
	}
	return removed, nil
}

// errNothingToPrune aborts the stats transaction so an unchanged document is
// not rewritten.
var errNothingToPrune = errors.New("nothing to prune")
