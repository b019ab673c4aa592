// Package feed reads product observations from a JSON document served over
// HTTP or kept on disk. Optional attributes use the state table's
// null/absent semantics directly: an absent key keeps the stored value, null
// clears it.
//
//	{
//	  "complete": true,
//	  "items": [
//	    {"id": "B01", "available": true, "title": "Mocha 12pk", "price": "42.00"},
//	    {"id": "B02", "available": false, "inventory_qty": null}
//	  ]
//	}
//
// A complete feed lists every product of the source; stored keys missing
// from it are removed.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/donaldgifford/restock-tracker/internal/metrics"
	"github.com/donaldgifford/restock-tracker/internal/source"
	"github.com/donaldgifford/restock-tracker/internal/state"
)

const maxFeedBytes = 32 << 20

// Item is one product in the feed.
type Item struct {
	ID        string `json:"id"`
	Variant   string `json:"variant,omitempty"`
	Available bool   `json:"available"`
	state.Extras
}

// Document is the feed payload.
type Document struct {
	Complete bool   `json:"complete"`
	Items    []Item `json:"items"`
}

// Source polls a feed document.
type Source struct {
	name      string
	prefix    string
	location  string
	client    *http.Client
	limiter   *source.RateLimiter
	userAgent string
	log       *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) {
		s.client = c
	}
}

// WithRateLimiter paces feed requests.
func WithRateLimiter(r *source.RateLimiter) Option {
	return func(s *Source) {
		s.limiter = r
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Source) {
		s.userAgent = ua
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		s.log = l
	}
}

// New creates a feed connector. location is an http(s) URL, a file:// URL
// or a local path.
func New(name, prefix, location string, opts ...Option) *Source {
	s := &Source{
		name:     name,
		prefix:   prefix,
		location: location,
		client:   &http.Client{Timeout: 20 * time.Second},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements source.Source.
func (s *Source) Name() string { return s.name }

// Prefix implements source.Source.
func (s *Source) Prefix() string { return s.prefix }

// Poll implements source.Source.
func (s *Source) Poll(ctx context.Context) (*source.Batch, error) {
	raw, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", s.name, err)
	}

	batch := &source.Batch{Observations: make([]source.Observation, 0, len(doc.Items))}
	seen := make(map[string]struct{}, len(doc.Items))
	for i, it := range doc.Items {
		if it.ID == "" || strings.Contains(it.ID, state.KeySeparator) || strings.Contains(it.Variant, state.KeySeparator) {
			s.log.Warn("skipping invalid feed item", "source", s.name, "index", i, "id", it.ID)
			continue
		}
		key := state.Key(s.prefix, it.ID, it.Variant)
		if _, dup := seen[key]; dup {
			s.log.Warn("skipping duplicate feed item", "source", s.name, "product", key)
			continue
		}
		seen[key] = struct{}{}

		batch.Observations = append(batch.Observations, source.Observation{
			Key:       key,
			Available: it.Available,
			Extras:    it.Extras,
		})
	}
	if doc.Complete {
		batch.Stale = func(string) bool { return true }
	}

	s.log.Info("read feed", "source", s.name, "items", len(batch.Observations), "complete", doc.Complete)
	return batch, nil
}

func (s *Source) load(ctx context.Context) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			if errors.Is(err, source.ErrDailyLimitReached) {
				metrics.SourceDailyLimitHits.WithLabelValues(s.name).Inc()
			}
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	switch {
	case strings.HasPrefix(s.location, "http://"), strings.HasPrefix(s.location, "https://"):
		return s.fetch(ctx)
	default:
		path := strings.TrimPrefix(s.location, "file://")
		raw, err := os.ReadFile(path) //nolint:gosec // feed path from trusted config
		if err != nil {
			return nil, fmt.Errorf("reading feed %s: %w", s.name, err)
		}
		return raw, nil
	}
}

func (s *Source) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(s.name, "feed", "error").Inc()
		return nil, fmt.Errorf("executing feed request: %w", err)
	}
	defer resp.Body.Close()
	metrics.SourceRequestsTotal.WithLabelValues(s.name, "feed", strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("reading feed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned %d", s.name, resp.StatusCode)
	}
	return body, nil
}
