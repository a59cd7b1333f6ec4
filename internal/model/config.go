package model

import "time"

// Config is the complete runtime configuration
type Config struct {
	Sink        SinkConfig        `yaml:"sink" mapstructure:"sink"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Render      RenderConfig      `yaml:"render" mapstructure:"render"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Robots      RobotsConfig      `yaml:"robots" mapstructure:"robots"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Delivery    DeliveryConfig    `yaml:"delivery" mapstructure:"delivery"`
	Normalize   NormalizeConfig   `yaml:"normalize" mapstructure:"normalize"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" mapstructure:"telemetry"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// SinkConfig points at the HTTP endpoint receiving events
type SinkConfig struct {
	URL    string `yaml:"url" mapstructure:"url"`
	DryRun bool   `yaml:"dry_run" mapstructure:"dry_run"`
}

// HTTPConfig controls outbound fetches (pages and feeds)
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	FeedRetries  int           `yaml:"feed_retries" mapstructure:"feed_retries"`
}

// RenderConfig controls how pages are turned into HTML
type RenderConfig struct {
	PageTimeout time.Duration `yaml:"page_timeout" mapstructure:"page_timeout"`
	Attempts    int           `yaml:"attempts" mapstructure:"attempts"`
	// Command is an external headless-browser command. It receives the URL as
	// its last argument and must print the rendered HTML to stdout.
	Command []string `yaml:"command,omitempty" mapstructure:"command"`
}

// CacheConfig controls the rendered-page cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RobotsConfig controls robots.txt handling for page sources
type RobotsConfig struct {
	Respect bool `yaml:"respect" mapstructure:"respect"`
}

// ConcurrencyConfig controls the source worker pool and fetch politeness
type ConcurrencyConfig struct {
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // per domain
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// DeliveryConfig controls sink pacing and retries
type DeliveryConfig struct {
	Timeout      time.Duration   `yaml:"timeout" mapstructure:"timeout"`
	MinInterval  time.Duration   `yaml:"min_interval" mapstructure:"min_interval"`
	Backoff      []time.Duration `yaml:"backoff" mapstructure:"backoff"`
	MaxPerSource int             `yaml:"max_per_source" mapstructure:"max_per_source"` // 0 = unlimited
}

// NormalizeConfig controls date/time normalization
type NormalizeConfig struct {
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// MetricsConfig controls Prometheus exposition
type MetricsConfig struct {
	Addr     string `yaml:"addr,omitempty" mapstructure:"addr"`           // serve /metrics while running
	Textfile string `yaml:"textfile,omitempty" mapstructure:"textfile"` // write a textfile-collector dump at exit
}

// TelemetryConfig controls OTLP export
type TelemetryConfig struct {
	Endpoint       string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Headers        string `yaml:"headers,omitempty" mapstructure:"headers"`
	ServiceName    string `yaml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
}

// Enabled reports whether an OTLP endpoint is configured
func (c TelemetryConfig) Enabled() bool {
	return c.Endpoint != ""
}

// LogConfig controls slog output
type LogConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // text or json
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "eventsweep/0.3 (+https://github.com/ppiankov/eventsweep)",
			MaxBodyBytes: 5_000_000,
			FeedRetries:  2,
		},
		Render: RenderConfig{
			PageTimeout: 90 * time.Second,
			Attempts:    2,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultCacheDir(),
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   30 * time.Minute,
		},
		Robots: RobotsConfig{
			Respect: true,
		},
		Concurrency: ConcurrencyConfig{
			Workers:           4,
			RequestsPerSecond: 1,
			Burst:             2,
		},
		Delivery: DeliveryConfig{
			Timeout:      30 * time.Second,
			MinInterval:  250 * time.Millisecond,
			Backoff:      []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
			MaxPerSource: 0,
		},
		Normalize: NormalizeConfig{
			Timezone: "America/Denver",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "eventsweep",
			ServiceVersion: Version,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}
