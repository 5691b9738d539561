package config

import (
	"time"

	"github.com/rulekit/rulekit/pkg/engine"
	"github.com/rulekit/rulekit/pkg/stores"
	"github.com/rulekit/rulekit/pkg/telemetry"
)

// Config is the runtime configuration of the rulekit daemon.
type Config struct {
	// Logging configures structured logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Tracing configures the otel tracer.
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	// Metrics configures the prometheus endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Events configures the event publisher.
	Events EventsConfig `json:"events" yaml:"events"`

	// Store configures the sqlite persistence layer.
	Store StoreConfig `json:"store" yaml:"store"`

	// Rules configures the file-backed rule provider.
	Rules RulesConfig `json:"rules" yaml:"rules"`

	// Engine configures trigger dispatch.
	Engine EngineConfig `json:"engine" yaml:"engine"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=console json"`
	Output string `json:"output" yaml:"output"`
}

// TracingConfig configures the otel tracer.
type TracingConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	Exporter     string  `json:"exporter" yaml:"exporter" validate:"omitempty,oneof=stdout none"`
	SamplingRate float64 `json:"samplingRate" yaml:"samplingRate" validate:"gte=0,lte=1"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	ListenAddress string `json:"listenAddress" yaml:"listenAddress"`
	Path          string `json:"path" yaml:"path"`
}

// EventsConfig configures the event publisher.
type EventsConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	BufferSize int  `json:"bufferSize" yaml:"bufferSize" validate:"gte=0"`
}

// StoreConfig configures the sqlite persistence layer. An empty path
// disables persistence; disabled flags and managed rules then live only
// in memory.
type StoreConfig struct {
	Path            string        `json:"path" yaml:"path"`
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns" validate:"gte=0"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}

// RulesConfig configures the file-backed rule provider. An empty
// directory disables it.
type RulesConfig struct {
	// Directory holds YAML rule documents, one or more rules per file.
	Directory string `json:"directory" yaml:"directory"`

	// Watch reloads rule files on change.
	Watch bool `json:"watch" yaml:"watch"`
}

// EngineConfig configures trigger dispatch.
type EngineConfig struct {
	DispatchMode string `json:"dispatchMode" yaml:"dispatchMode" validate:"omitempty,oneof=dedicated pooled"`
	QueueSize    int    `json:"queueSize" yaml:"queueSize" validate:"gte=0"`
	PoolSize     int    `json:"poolSize" yaml:"poolSize" validate:"gte=0"`
}

// Default returns the default runtime configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "none",
			SamplingRate: 0.1,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: ":9090",
			Path:          "/metrics",
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 1000,
		},
		Store: StoreConfig{
			Path: "rulekit.db",
		},
		Rules: RulesConfig{
			Directory: "rules",
			Watch:     true,
		},
		Engine: EngineConfig{
			DispatchMode: string(engine.DispatchDedicated),
		},
	}
}

// TelemetryConfig maps the runtime configuration onto the telemetry
// package's config.
func (c *Config) TelemetryConfig() *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.Logging.Level = c.Logging.Level
	tc.Logging.Format = c.Logging.Format
	tc.Logging.Output = c.Logging.Output
	tc.Tracing.Enabled = c.Tracing.Enabled
	tc.Tracing.Exporter = c.Tracing.Exporter
	tc.Tracing.SamplingRate = c.Tracing.SamplingRate
	tc.Metrics.Enabled = c.Metrics.Enabled
	tc.Metrics.ListenAddress = c.Metrics.ListenAddress
	tc.Metrics.Path = c.Metrics.Path
	tc.Events.Enabled = c.Events.Enabled
	tc.Events.BufferSize = c.Events.BufferSize
	return tc
}

// StoreOptions maps the runtime configuration onto the store config.
func (c *Config) StoreOptions() stores.Config {
	return stores.Config{
		Path:            c.Store.Path,
		MaxOpenConns:    c.Store.MaxOpenConns,
		MaxIdleConns:    c.Store.MaxIdleConns,
		ConnMaxLifetime: c.Store.ConnMaxLifetime,
	}
}

// DispatchConfig maps the runtime configuration onto the engine's
// dispatch config.
func (c *Config) DispatchConfig() engine.DispatchConfig {
	return engine.DispatchConfig{
		Mode:      engine.DispatchMode(c.Engine.DispatchMode),
		QueueSize: c.Engine.QueueSize,
		PoolSize:  c.Engine.PoolSize,
	}
}
