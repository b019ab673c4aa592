package main

import "errors"

// KnownMetrics is the set of metric names exported by restock-tracker plus
// recording rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// HTTP metrics.
	"restock_http_request_duration_seconds_bucket": true,
	"restock_http_requests_total":                  true,

	// Health metrics.
	"restock_healthz_up": true,
	"restock_readyz_up":  true,

	// Checker metrics.
	"restock_checker_runs_total":              true,
	"restock_checker_duration_seconds_bucket": true,
	"restock_observations_total":              true,
	"restock_changes_total":                   true,
	"restock_stale_keys_removed_total":        true,
	"restock_source_requests_total":           true,
	"restock_source_daily_limit_hits_total":   true,
	"restock_maintenance_runs_total":          true,

	// Store metrics.
	"restock_store_lock_wait_seconds_bucket": true,
	"restock_store_corrupt_reads_total":      true,
	"restock_store_cache_hits_total":         true,
	"restock_history_entries_total":          true,

	// Notification metrics.
	"restock_sms_sent_total":                       true,
	"restock_sms_failures_total":                   true,
	"restock_sms_blocked_total":                    true,
	"restock_notification_duration_seconds_bucket": true,
	"restock_auto_unsubscribes_total":              true,

	// Recording rules.
	"restock:http_requests:rate5m":         true,
	"restock:http_errors:rate5m":           true,
	"restock:checker_failures:rate5m":      true,
	"restock:source_requests:rate5m":       true,
	"restock:changes:rate5m":               true,
	"restock:sms_sent:rate5m":              true,
	"restock:sms_failures:rate5m":          true,
	"restock:notification_duration:p95_5m": true,
	"restock:store_lock_wait:p95_5m":       true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}
