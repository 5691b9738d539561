package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rulekit/rulekit/pkg/engine"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rulekit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected defaults, got error: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Logging.Level)
	}
	if cfg.Engine.DispatchMode != string(engine.DispatchDedicated) {
		t.Errorf("Expected default dispatch mode dedicated, got %s", cfg.Engine.DispatchMode)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
  format: json
metrics:
  enabled: true
  listenAddress: ":9091"
store:
  path: /tmp/rulekit-test.db
rules:
  directory: /etc/rulekit/rules
  watch: false
engine:
  dispatchMode: pooled
  poolSize: 16
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Expected logging overrides, got %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.ListenAddress != ":9091" {
		t.Errorf("Expected metrics overrides, got %+v", cfg.Metrics)
	}
	// Untouched sections keep their defaults
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Expected default metrics path, got %s", cfg.Metrics.Path)
	}
	if cfg.Rules.Watch {
		t.Error("Expected watch to be disabled")
	}

	dispatch := cfg.DispatchConfig()
	if dispatch.Mode != engine.DispatchPooled || dispatch.PoolSize != 16 {
		t.Errorf("Expected pooled dispatch with 16 workers, got %+v", dispatch)
	}
	if cfg.StoreOptions().Path != "/tmp/rulekit-test.db" {
		t.Errorf("Expected store path override, got %s", cfg.StoreOptions().Path)
	}
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	cases := map[string]string{
		"bad log level":     "logging:\n  level: loud\n",
		"bad dispatch mode": "engine:\n  dispatchMode: turbo\n",
		"bad sampling rate": "tracing:\n  samplingRate: 2.5\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfigFile(t, content)); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/rulekit.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	if _, err := Load(writeConfigFile(t, "logging: [not a map")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestTelemetryConfig_Mapping(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warn"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"
	cfg.Events.BufferSize = 50

	tc := cfg.TelemetryConfig()
	if tc.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", tc.Logging.Level)
	}
	if !tc.Tracing.Enabled || tc.Tracing.Exporter != "stdout" {
		t.Errorf("Expected tracing mapping, got %+v", tc.Tracing)
	}
	if tc.Events.BufferSize != 50 {
		t.Errorf("Expected event buffer 50, got %d", tc.Events.BufferSize)
	}
}
