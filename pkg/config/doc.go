// Package config provides the runtime configuration of the rulekit
// daemon.
//
// # Overview
//
// Configuration is read from a single YAML file layered on top of
// built-in defaults and validated with struct tags. It covers the
// ambient concerns (logging, tracing, metrics, events), the sqlite
// store, the file-backed rule provider and trigger dispatch.
//
// # Usage Example
//
//	cfg, err := config.Load("rulekit.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tel, err := telemetry.NewTelemetry(cfg.TelemetryConfig())
package config
