// Package scheduler drives checkers on independent interval loops and
// maintenance jobs on cron schedules, with cooperative, bounded shutdown.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/donaldgifford/restock-tracker/internal/metrics"
)

// DefaultMinInterval is the floor applied to checker intervals.
const DefaultMinInterval = 10 * time.Second

// Job kinds reported by Status.
const (
	KindChecker = "checker"
	KindCron    = "cron"
)

var (
	// ErrStarted is returned when registering work on a running scheduler.
	ErrStarted = errors.New("scheduler already started")
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("duplicate job name")
)

// Func is one unit of scheduled work.
type Func func(ctx context.Context) error

// Checker is work repeated on a fixed interval. An interval of zero or less
// disables the checker.
type Checker struct {
	Name     string
	Interval time.Duration
	Run      Func
}

// JobStatus is a point-in-time view of one registered job.
type JobStatus struct {
	Name         string        `json:"name"`
	Kind         string        `json:"kind"`
	Schedule     string        `json:"schedule"`
	Enabled      bool          `json:"enabled"`
	Running      bool          `json:"running"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastRun      *time.Time    `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration_ns,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	NextRun      *time.Time    `json:"next_run,omitempty"`
}

type job struct {
	name     string
	kind     string
	schedule string
	interval time.Duration
	run      Func
	entryID  cron.EntryID
	enabled  bool

	// guarded by Scheduler.mu
	alive     bool
	running   bool
	runs      int
	failures  int
	lastStart time.Time
	lastEnd   time.Time
	lastDur   time.Duration
	lastErr   string
}

// Scheduler runs checkers and cron jobs.
type Scheduler struct {
	minInterval time.Duration
	cron        *cron.Cron
	log         *slog.Logger

	mu     sync.Mutex
	jobs   map[string]*job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMinInterval sets the interval floor for checkers.
func WithMinInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.minInterval = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// New creates a stopped Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		minInterval: DefaultMinInterval,
		log:         slog.Default(),
		jobs:        make(map[string]*job),
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
	)
	return s
}

// AddChecker registers an interval loop. Intervals below the floor are
// clamped up to it.
func (s *Scheduler) AddChecker(c Checker) error {
	if c.Name == "" || c.Run == nil {
		return fmt.Errorf("checker needs a name and a run function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrStarted
	}
	if _, ok := s.jobs[c.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, c.Name)
	}

	j := &job{name: c.Name, kind: KindChecker, run: c.Run}
	switch {
	case c.Interval <= 0:
		j.schedule = "disabled"
		s.log.Info("checker disabled", "checker", c.Name)
	case c.Interval < s.minInterval:
		s.log.Warn("checker interval below minimum, clamping",
			"checker", c.Name,
			"interval", c.Interval,
			"min", s.minInterval,
		)
		j.interval = s.minInterval
	default:
		j.interval = c.Interval
	}
	if j.interval > 0 {
		j.enabled = true
		j.schedule = "@every " + j.interval.String()
	}

	s.jobs[c.Name] = j
	return nil
}

// AddJob registers fn on a cron spec. Overlapping runs are skipped.
func (s *Scheduler) AddJob(name, spec string, fn Func) error {
	if name == "" || fn == nil {
		return fmt.Errorf("job needs a name and a run function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrStarted
	}
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}

	j := &job{name: name, kind: KindCron, schedule: spec, run: fn, enabled: true}
	id, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		s.runOnce(ctx, j)
		metrics.MaintenanceRunsTotal.WithLabelValues(name).Inc()
	})
	if err != nil {
		return fmt.Errorf("adding job %s: %w", name, err)
	}
	j.entryID = id

	s.jobs[name] = j
	return nil
}

// Start launches every enabled checker loop and the cron runner. Work is
// canceled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.ctx = ctx

	for _, j := range s.jobs {
		if j.kind != KindChecker || !j.enabled {
			continue
		}
		j.alive = true
		s.wg.Add(1)
		go s.loop(ctx, j)
		s.log.Info("checker started", "checker", j.name, "interval", j.interval)
	}

	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop signals every loop to exit and waits up to timeout. It returns the
// names of jobs still running when the timeout expired; they are left to
// finish on their own.
func (s *Scheduler) Stop(timeout time.Duration) []string {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	s.log.Info("scheduler stopping")
	cancel()
	cronCtx := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		<-cronCtx.Done()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-timer.C:
	}

	s.mu.Lock()
	var stuck []string
	for _, j := range s.jobs {
		if j.alive || j.running {
			stuck = append(stuck, j.name)
		}
	}
	s.mu.Unlock()
	slices.Sort(stuck)

	s.log.Warn("jobs did not stop in time", "timeout", timeout, "jobs", strings.Join(stuck, ","))
	return stuck
}

// Status returns the state of every registered job ordered by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := JobStatus{
			Name:         j.name,
			Kind:         j.kind,
			Schedule:     j.schedule,
			Enabled:      j.enabled,
			Running:      j.running,
			Runs:         j.runs,
			Failures:     j.failures,
			LastDuration: j.lastDur,
			LastError:    j.lastErr,
		}
		if !j.lastStart.IsZero() {
			t := j.lastStart
			st.LastRun = &t
		}

		switch j.kind {
		case KindCron:
			if e := s.cron.Entry(j.entryID); !e.Next.IsZero() {
				t := e.Next
				st.NextRun = &t
			}
		case KindChecker:
			if j.alive && !j.lastEnd.IsZero() && !j.running {
				t := j.lastEnd.Add(j.interval)
				st.NextRun = &t
			}
		}
		out = append(out, st)
	}

	slices.SortFunc(out, func(a, b JobStatus) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		j.alive = false
		s.mu.Unlock()
		s.log.Info("checker stopped", "checker", j.name)
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		s.runOnce(ctx, j)

		timer := time.NewTimer(j.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runOnce executes one iteration. Errors and panics are logged and counted;
// they never end the loop.
func (s *Scheduler) runOnce(ctx context.Context, j *job) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	s.mu.Lock()
	j.running = true
	j.lastStart = start
	s.mu.Unlock()

	err := safeRun(ctx, j.run)
	dur := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		s.log.Error("job failed", "job", j.name, "kind", j.kind, "duration", dur, "error", err)
	} else {
		s.log.Debug("job finished", "job", j.name, "kind", j.kind, "duration", dur)
	}
	metrics.CheckerRunsTotal.WithLabelValues(j.name, status).Inc()
	metrics.CheckerDuration.WithLabelValues(j.name).Observe(dur.Seconds())

	s.mu.Lock()
	j.running = false
	j.runs++
	j.lastEnd = time.Now()
	j.lastDur = dur
	j.lastErr = ""
	if err != nil {
		j.failures++
		j.lastErr = err.Error()
	}
	s.mu.Unlock()
}

func safeRun(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
