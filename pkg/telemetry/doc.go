// Package telemetry provides observability instrumentation for RuleKit.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging rule engine operations.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with stdout export
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for rule lifecycle notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "rulekit"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithRuleUID("rule-123").WithModuleID("trigger1")
//	logger.Info("Rule run started")
//	logger.WithError(err).Error("Rule run failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into rule execution flow and performance:
//
//	ctx, span := tel.Tracer.StartRuleRunSpan(ctx, ruleUID, triggerID)
//	defer span.End()
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: Stdout (development), none (testing)
//
// # Metrics
//
// Prometheus metrics track rule engine behavior:
//
//	tel.Metrics.RecordRunTriggered(ruleUID)
//	tel.Metrics.RecordRunCompleted(ruleUID, "executed", duration)
//	tel.Metrics.SetRulesByStatus("idle", 12)
//	tel.Metrics.RecordError("invalid_configuration")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	tel.Events.PublishRuleAdded(ruleUID, providerName)
//	tel.Events.PublishRuleStatusChanged(ruleUID, "idle", "running", "")
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByRuleUID, FilterByTemplateUID
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "registry.add",
//	    attribute.String("rule.uid", ruleUID))
//	defer ic.End(err)
//
//	// Provider operation
//	err := telemetry.RecordProviderOperation(ctx, "file", "scan", func() error {
//	    return provider.Scan(ctx)
//	})
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - rulekit_rule_runs_triggered_total{rule_uid}
//   - rulekit_rule_runs_completed_total{rule_uid,outcome}
//   - rulekit_rule_run_duration_seconds{rule_uid}
//   - rulekit_modules_executed_total{kind,type_uid,status}
//   - rulekit_rules_by_status{status}
//   - rulekit_provider_rules{provider}
//   - rulekit_template_resolutions_total{template_uid,status}
//   - rulekit_unresolved_rules
//   - rulekit_errors_by_class_total{class}
//   - rulekit_queued_triggers
//   - rulekit_dropped_triggers_total{rule_uid}
package telemetry
