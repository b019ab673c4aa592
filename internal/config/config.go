// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source types understood by the connector factory.
const (
	SourceTypeShopify = "shopify"
	SourceTypeFeed    = "feed"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Data          DataConfig          `yaml:"data"`
	History       HistoryConfig       `yaml:"history"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Sources       []SourceConfig      `yaml:"sources"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
	Tracing       TracingConfig       `yaml:"tracing"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DataConfig defines where the JSON documents live.
type DataConfig struct {
	Dir          string `yaml:"dir"`
	StateFile    string `yaml:"state_file"`
	HistoryFile  string `yaml:"history_file"`
	UsersFile    string `yaml:"users_file"`
	StatsFile    string `yaml:"stats_file"`
	RegistryFile string `yaml:"registry_file"`
	ETagFile     string `yaml:"etag_file"`
	CacheEntries int    `yaml:"cache_entries"`
}

// Path resolves a data file name against Dir. Absolute names are kept as-is.
func (d *DataConfig) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

// HistoryConfig defines the change history log settings.
type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// ScheduleConfig defines checker loop and maintenance settings.
type ScheduleConfig struct {
	MinInterval     time.Duration `yaml:"min_interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Maintenance is a cron spec for housekeeping (stats pruning).
	// Empty disables it.
	Maintenance string `yaml:"maintenance"`
}

// SourceConfig defines one product source and its checker.
type SourceConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"` // shopify, feed
	Prefix string `yaml:"prefix"`
	Label  string `yaml:"label"`
	URL    string `yaml:"url"`

	// ProductURL is a template with {id}, {handle} and {variant}
	// placeholders used to link products in messages.
	ProductURL string `yaml:"product_url"`

	Interval  time.Duration `yaml:"interval"`
	Workers   int           `yaml:"workers"`
	RatePerS  *float64      `yaml:"rate_per_second"` // 0 disables pacing
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`

	// DailyLimit caps upstream requests per UTC day. Zero means no cap.
	DailyLimit int64 `yaml:"daily_limit"`
}

// NotificationsConfig defines SMS delivery settings.
type NotificationsConfig struct {
	UnsubThreshold *int         `yaml:"unsub_threshold"`
	TrackerURL     string       `yaml:"tracker_url"`
	DailyCap       int          `yaml:"daily_cap"`
	Blocked        []string     `yaml:"blocked"`
	RatePerS       *float64     `yaml:"rate_per_second"` // 0 disables pacing
	StatsRetention int          `yaml:"stats_retention_days"`
	Twilio         TwilioConfig `yaml:"twilio"`
}

// TwilioConfig defines Twilio Programmable Messaging credentials.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	From       string `yaml:"from"`
	BaseURL    string `yaml:"base_url"`
}

// Configured reports whether every credential is present.
func (t *TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.APIKey != "" && t.APISecret != "" && t.From != ""
}

// Partial reports whether some, but not all, credentials are present.
func (t *TwilioConfig) Partial() bool {
	set := 0
	for _, v := range []string{t.AccountSID, t.APIKey, t.APISecret, t.From} {
		if v != "" {
			set++
		}
	}
	return set > 0 && set < 4
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text, json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TracingConfig defines OTLP export. An empty endpoint disables it.
// Metrics are pushed to the same collector when ExportMetrics is set, in
// addition to the Prometheus scrape endpoint.
type TracingConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Insecure       bool          `yaml:"insecure"`
	ServiceName    string        `yaml:"service_name"`
	SampleRatio    *float64      `yaml:"sample_ratio"`
	ExportMetrics  bool          `yaml:"export_metrics"`
	MetricInterval time.Duration `yaml:"metric_interval"`
}

// Defaults for settings where an explicit zero is meaningful.
const (
	DefaultSourceRate     = 2.0
	DefaultNotifyRate     = 1.0
	DefaultUnsubThreshold = 100
	DefaultSampleRatio    = 1.0
)

// Rate returns the request pacing in requests per second.
func (s *SourceConfig) Rate() float64 { return valueOr(s.RatePerS, DefaultSourceRate) }

// Threshold returns the auto-unsubscribe quantity threshold.
func (n *NotificationsConfig) Threshold() int {
	return valueOr(n.UnsubThreshold, DefaultUnsubThreshold)
}

// Rate returns the SMS send rate in messages per second.
func (n *NotificationsConfig) Rate() float64 { return valueOr(n.RatePerS, DefaultNotifyRate) }

// Ratio returns the trace sampling ratio.
func (t *TracingConfig) Ratio() float64 { return valueOr(t.SampleRatio, DefaultSampleRatio) }

func ptrTo[T any](v T) *T { return &v }

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML content, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Source returns the source with the given name.
func (c *Config) Source(name string) (*SourceConfig, bool) {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i], true
		}
	}
	return nil, false
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDataDefaults(&cfg.Data)
	applyHistoryDefaults(&cfg.History)
	applyScheduleDefaults(&cfg.Schedule)
	for i := range cfg.Sources {
		applySourceDefaults(&cfg.Sources[i])
	}
	applyNotificationsDefaults(&cfg.Notifications)
	applyLoggingDefaults(&cfg.Logging)
	applyTracingDefaults(&cfg.Tracing)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDataDefaults(d *DataConfig) {
	if d.Dir == "" {
		d.Dir = "."
	}
	if d.StateFile == "" {
		d.StateFile = "state.json"
	}
	if d.HistoryFile == "" {
		d.HistoryFile = "history.json"
	}
	if d.UsersFile == "" {
		d.UsersFile = "users.json"
	}
	if d.StatsFile == "" {
		d.StatsFile = "sms_stats.json"
	}
	if d.RegistryFile == "" {
		d.RegistryFile = "products.json"
	}
	if d.ETagFile == "" {
		d.ETagFile = "etags.json"
	}
	if d.CacheEntries == 0 {
		d.CacheEntries = 20
	}
}

func applyHistoryDefaults(h *HistoryConfig) {
	if h.MaxEntries == 0 {
		h.MaxEntries = 1000
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.MinInterval == 0 {
		s.MinInterval = 10 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 15 * time.Second
	}
}

func applySourceDefaults(s *SourceConfig) {
	if s.Prefix == "" {
		s.Prefix = s.Name
	}
	if s.Label == "" {
		s.Label = s.Prefix
	}
	if s.Workers == 0 {
		s.Workers = 4
	}
	if s.RatePerS == nil {
		s.RatePerS = ptrTo(DefaultSourceRate)
	}
	if s.Timeout == 0 {
		s.Timeout = 20 * time.Second
	}
}

func applyNotificationsDefaults(n *NotificationsConfig) {
	if n.UnsubThreshold == nil {
		n.UnsubThreshold = ptrTo(DefaultUnsubThreshold)
	}
	if n.TrackerURL == "" {
		n.TrackerURL = "https://soylent.dev/buy"
	}
	if n.DailyCap == 0 {
		n.DailyCap = 200
	}
	if n.RatePerS == nil {
		n.RatePerS = ptrTo(DefaultNotifyRate)
	}
	if n.StatsRetention == 0 {
		n.StatsRetention = 90
	}
	if n.Twilio.BaseURL == "" {
		n.Twilio.BaseURL = "https://api.twilio.com"
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
	if l.MaxSizeMB == 0 {
		l.MaxSizeMB = 50
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = 3
	}
}

func applyTracingDefaults(t *TracingConfig) {
	if t.ServiceName == "" {
		t.ServiceName = "restock-tracker"
	}
	if t.SampleRatio == nil {
		t.SampleRatio = ptrTo(DefaultSampleRatio)
	}
	if t.MetricInterval == 0 {
		t.MetricInterval = 60 * time.Second
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.History.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("history.max_entries must not be negative"))
	}
	if cfg.Data.CacheEntries < 1 {
		errs = append(errs, fmt.Errorf("data.cache_entries must be at least 1"))
	}

	names := make(map[string]struct{}, len(cfg.Sources))
	prefixes := make(map[string]struct{}, len(cfg.Sources))
	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sources[%d].name is required", i))
			continue
		}
		if _, dup := names[s.Name]; dup {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name))
		}
		names[s.Name] = struct{}{}

		if strings.Contains(s.Prefix, ":") {
			errs = append(errs, fmt.Errorf("sources.%s.prefix must not contain ':'", s.Name))
		}
		if _, dup := prefixes[s.Prefix]; dup {
			errs = append(errs, fmt.Errorf("sources.%s: duplicate prefix %q", s.Name, s.Prefix))
		}
		prefixes[s.Prefix] = struct{}{}

		switch s.Type {
		case SourceTypeShopify, SourceTypeFeed:
		default:
			errs = append(errs, fmt.Errorf(
				"sources.%s.type must be one of: shopify, feed (got %q)", s.Name, s.Type,
			))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("sources.%s.url is required", s.Name))
		}
		if s.Interval < 0 {
			errs = append(errs, fmt.Errorf("sources.%s.interval must not be negative", s.Name))
		}
		if s.DailyLimit < 0 {
			errs = append(errs, fmt.Errorf("sources.%s.daily_limit must not be negative", s.Name))
		}
		if s.Workers < 1 {
			errs = append(errs, fmt.Errorf("sources.%s.workers must be at least 1", s.Name))
		}
		if s.Rate() < 0 {
			errs = append(errs, fmt.Errorf("sources.%s.rate_per_second must not be negative", s.Name))
		}
	}

	if cfg.Notifications.Threshold() < 0 {
		errs = append(errs, fmt.Errorf("notifications.unsub_threshold must not be negative"))
	}
	if cfg.Notifications.Rate() < 0 {
		errs = append(errs, fmt.Errorf("notifications.rate_per_second must not be negative"))
	}
	if r := cfg.Tracing.Ratio(); r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be between 0 and 1"))
	}

	return errors.Join(errs...)
}
