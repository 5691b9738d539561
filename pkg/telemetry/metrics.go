package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for RuleKit.
type Metrics struct {
	config MetricsConfig

	// Rule run metrics
	runsTriggered *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Module metrics
	modulesExecuted *prometheus.CounterVec
	moduleDuration  *prometheus.HistogramVec

	// Registry metrics
	rulesByStatus *prometheus.GaugeVec
	rulesManaged  prometheus.Gauge

	// Provider metrics
	providerRules  *prometheus.GaugeVec
	providerErrors *prometheus.CounterVec

	// Template metrics
	templateResolutions *prometheus.CounterVec
	unresolvedRules     prometheus.Gauge

	// Error metrics
	errorsByClass *prometheus.CounterVec

	// Dispatch metrics
	queuedTriggers prometheus.Gauge
	droppedTriggers *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Rule run metrics
		runsTriggered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_runs_triggered_total",
				Help:      "Total number of rule runs triggered",
			},
			[]string{"rule_uid"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_runs_completed_total",
				Help:      "Total number of rule runs completed",
			},
			[]string{"rule_uid", "outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rule_run_duration_seconds",
				Help:      "Duration of rule run execution in seconds",
				Buckets:   buckets,
			},
			[]string{"rule_uid"},
		),

		// Module metrics
		modulesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "modules_executed_total",
				Help:      "Total number of module executions",
			},
			[]string{"kind", "type_uid", "status"},
		),
		moduleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "module_duration_seconds",
				Help:      "Duration of module execution in seconds",
				Buckets:   buckets,
			},
			[]string{"kind", "type_uid"},
		),

		// Registry metrics
		rulesByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rules_by_status",
				Help:      "Current number of rules per status",
			},
			[]string{"status"},
		),
		rulesManaged: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rules_managed",
				Help:      "Current number of registered rules",
			},
		),

		// Provider metrics
		providerRules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_rules",
				Help:      "Current number of rules per provider",
			},
			[]string{"provider"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total number of provider errors",
			},
			[]string{"provider"},
		),

		// Template metrics
		templateResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "template_resolutions_total",
				Help:      "Total number of template resolutions",
			},
			[]string{"template_uid", "status"},
		),
		unresolvedRules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "unresolved_rules",
				Help:      "Current number of rules waiting for a template",
			},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),

		// Dispatch metrics
		queuedTriggers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queued_triggers",
				Help:      "Current number of queued trigger events",
			},
		),
		droppedTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_triggers_total",
				Help:      "Total number of trigger events dropped on full queues",
			},
			[]string{"rule_uid"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.runsTriggered,
		m.runsCompleted,
		m.runDuration,
		m.modulesExecuted,
		m.moduleDuration,
		m.rulesByStatus,
		m.rulesManaged,
		m.providerRules,
		m.providerErrors,
		m.templateResolutions,
		m.unresolvedRules,
		m.errorsByClass,
		m.queuedTriggers,
		m.droppedTriggers,
	)

	return m, nil
}

// Rule Run Metrics

// RecordRunTriggered increments the counter for triggered rule runs.
func (m *Metrics) RecordRunTriggered(ruleUID string) {
	if m.runsTriggered == nil {
		return
	}
	m.runsTriggered.WithLabelValues(ruleUID).Inc()
}

// RecordRunCompleted records a completed rule run with its outcome and duration.
func (m *Metrics) RecordRunCompleted(ruleUID, outcome string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(ruleUID, outcome).Inc()
	m.runDuration.WithLabelValues(ruleUID).Observe(duration.Seconds())
}

// Module Metrics

// RecordModuleExecution records the execution of a single module.
func (m *Metrics) RecordModuleExecution(kind, typeUID, status string, duration time.Duration) {
	if m.modulesExecuted == nil {
		return
	}
	m.modulesExecuted.WithLabelValues(kind, typeUID, status).Inc()
	m.moduleDuration.WithLabelValues(kind, typeUID).Observe(duration.Seconds())
}

// Registry Metrics

// SetRulesByStatus sets the current count of rules in a status.
func (m *Metrics) SetRulesByStatus(status string, count float64) {
	if m.rulesByStatus == nil {
		return
	}
	m.rulesByStatus.WithLabelValues(status).Set(count)
}

// SetRulesManaged sets the current count of registered rules.
func (m *Metrics) SetRulesManaged(count float64) {
	if m.rulesManaged == nil {
		return
	}
	m.rulesManaged.Set(count)
}

// Provider Metrics

// SetProviderRules sets the current count of rules offered by a provider.
func (m *Metrics) SetProviderRules(provider string, count float64) {
	if m.providerRules == nil {
		return
	}
	m.providerRules.WithLabelValues(provider).Set(count)
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(provider string) {
	if m.providerErrors == nil {
		return
	}
	m.providerErrors.WithLabelValues(provider).Inc()
}

// Template Metrics

// RecordTemplateResolution records a template resolution attempt.
func (m *Metrics) RecordTemplateResolution(templateUID, status string) {
	if m.templateResolutions == nil {
		return
	}
	m.templateResolutions.WithLabelValues(templateUID, status).Inc()
}

// SetUnresolvedRules sets the current number of rules waiting for a template.
func (m *Metrics) SetUnresolvedRules(count float64) {
	if m.unresolvedRules == nil {
		return
	}
	m.unresolvedRules.Set(count)
}

// Error Metrics

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// Dispatch Metrics

// SetQueuedTriggers sets the current number of queued trigger events.
func (m *Metrics) SetQueuedTriggers(count float64) {
	if m.queuedTriggers == nil {
		return
	}
	m.queuedTriggers.Set(count)
}

// RecordDroppedTrigger records a trigger event dropped because a rule's
// queue was full.
func (m *Metrics) RecordDroppedTrigger(ruleUID string) {
	if m.droppedTriggers == nil {
		return
	}
	m.droppedTriggers.WithLabelValues(ruleUID).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
