package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/rulekit/rulekit/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "rulekit"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Start metrics server (non-blocking)
	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Application started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("engine")

	// Add context fields
	logger = logger.WithFields(map[string]interface{}{
		"rule_uid":  "rule-123",
		"module_id": "trigger1",
	})

	// Log at different levels
	logger.Debug("Activating rule")
	logger.Info("Rule activated")
	logger.Warn("Trigger queue nearing capacity")

	// Log with error
	err := fmt.Errorf("handler missing")
	logger.WithError(err).Error("Failed to activate rule")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "rule.run")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		attribute.String("rule.uid", "rule-789"),
		attribute.Int("rule.actions", 3),
	)

	// Add event
	span.AddEvent("conditions.satisfied")

	// Nested span
	ctx, childSpan := tel.Tracer.Start(ctx, "module.action")
	defer childSpan.End()

	childSpan.SetAttributes(
		attribute.String("module.id", "action1"),
		attribute.String("module.type_uid", "core.command"),
	)

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(childSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record rule run metrics
	tel.Metrics.RecordRunTriggered("rule-123")

	// Simulate run execution
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordRunCompleted("rule-123", "executed", duration)

	// Record module metrics
	tel.Metrics.RecordModuleExecution(
		"action",            // kind
		"core.command",      // type UID
		"succeeded",         // status
		25*time.Millisecond, // duration
	)

	// Record error metrics
	tel.Metrics.RecordError("invalid_configuration")

	// Set registry gauges
	tel.Metrics.SetRulesByStatus("idle", 10)
	tel.Metrics.SetRulesByStatus("uninitialized", 2)

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishRuleAdded("rule-123", "file")
	tel.Events.PublishRuleRunStarted("rule-123", "trigger1")
	tel.Events.PublishRuleRunCompleted("rule-123", true, 25*time.Millisecond)

	// Output varies due to async nature, no output specified
}

// Example_providerInstrumentation demonstrates instrumenting provider calls.
func Example_providerInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Add provider context
	ctx = telemetry.WithProviderContext(ctx, "file")

	// Record provider operation
	err := telemetry.RecordProviderOperation(ctx, "file", "scan", func() error {
		// Simulate provider work
		time.Sleep(15 * time.Millisecond)
		return nil
	})

	if err == nil {
		fmt.Println("Provider operation completed successfully")
	}

	// Output: Provider operation completed successfully
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start instrumented operation
	ic := telemetry.StartOperation(ctx, "registry.add",
		attribute.String("rule.uid", "rule-123"),
	)
	defer ic.End(nil)

	// Use the instrumented context
	ic.Logger.Info("Adding rule")

	// Simulate validation
	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("Rule added")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only status change events)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Status event: %s\n", event.Message)
	}, telemetry.FilterByType(telemetry.EventTypeRuleStatusChanged))

	// Publish various events
	tel.Events.PublishRuleAdded("rule-123", "file")                           // Info - filtered by level filter
	tel.Events.PublishRuleStatusChanged("rule-123", "idle", "running", "")    // Info - passes type filter
	tel.Events.PublishRuleRunFailed("rule-123", "action1", "handler timeout") // Error - passes level filter

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "rulekit"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "rulekit"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	engineLogger := tel.Logger.NewComponentLogger("engine")
	registryLogger := tel.Logger.NewComponentLogger("registry")
	providerLogger := tel.Logger.NewComponentLogger("provider")

	engineLogger.Info("Engine initialized")
	registryLogger.Info("Registry ready")
	providerLogger.Info("Scanning rule files")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
