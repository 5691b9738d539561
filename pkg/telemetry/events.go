package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the RuleKit system.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RuleUID is the associated rule UID, if applicable.
	RuleUID string `json:"rule_uid,omitempty"`

	// ModuleID is the associated module ID, if applicable.
	ModuleID string `json:"module_id,omitempty"`

	// TemplateUID is the associated template UID, if applicable.
	TemplateUID string `json:"template_uid,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeRuleAdded         = "rule.added"
	EventTypeRuleUpdated       = "rule.updated"
	EventTypeRuleRemoved       = "rule.removed"
	EventTypeRuleStatusChanged = "rule.status_changed"
	EventTypeRuleRunStarted    = "rule.run_started"
	EventTypeRuleRunCompleted  = "rule.run_completed"
	EventTypeRuleRunFailed     = "rule.run_failed"
	EventTypeTemplateResolved  = "template.resolved"
	EventTypeProviderAttached  = "provider.attached"
	EventTypeError             = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	// Start the periodic flush goroutine
	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishRuleAdded publishes a rule added event.
func (ep *EventPublisher) PublishRuleAdded(ruleUID, providerName string) error {
	return ep.Publish(Event{
		Type:    EventTypeRuleAdded,
		Source:  "registry",
		RuleUID: ruleUID,
		Message: fmt.Sprintf("Rule %s added by provider %s", ruleUID, providerName),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"provider": providerName,
		},
	})
}

// PublishRuleUpdated publishes a rule updated event.
func (ep *EventPublisher) PublishRuleUpdated(ruleUID string) error {
	return ep.Publish(Event{
		Type:    EventTypeRuleUpdated,
		Source:  "registry",
		RuleUID: ruleUID,
		Message: fmt.Sprintf("Rule %s updated", ruleUID),
		Level:   EventLevelInfo,
	})
}

// PublishRuleRemoved publishes a rule removed event.
func (ep *EventPublisher) PublishRuleRemoved(ruleUID string) error {
	return ep.Publish(Event{
		Type:    EventTypeRuleRemoved,
		Source:  "registry",
		RuleUID: ruleUID,
		Message: fmt.Sprintf("Rule %s removed", ruleUID),
		Level:   EventLevelInfo,
	})
}

// PublishRuleStatusChanged publishes a rule status change event.
func (ep *EventPublisher) PublishRuleStatusChanged(ruleUID, oldStatus, newStatus, detail string) error {
	return ep.Publish(Event{
		Type:    EventTypeRuleStatusChanged,
		Source:  "engine",
		RuleUID: ruleUID,
		Message: fmt.Sprintf("Rule %s status changed from %s to %s", ruleUID, oldStatus, newStatus),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"old_status": oldStatus,
			"new_status": newStatus,
			"detail":     detail,
		},
	})
}

// PublishRuleRunStarted publishes a rule run started event.
func (ep *EventPublisher) PublishRuleRunStarted(ruleUID, triggerID string) error {
	return ep.Publish(Event{
		Type:     EventTypeRuleRunStarted,
		Source:   "engine",
		RuleUID:  ruleUID,
		ModuleID: triggerID,
		Message:  fmt.Sprintf("Rule %s run started by trigger %s", ruleUID, triggerID),
		Level:    EventLevelInfo,
	})
}

// PublishRuleRunCompleted publishes a rule run completed event.
func (ep *EventPublisher) PublishRuleRunCompleted(ruleUID string, executed bool, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeRuleRunCompleted,
		Source:  "engine",
		RuleUID: ruleUID,
		Message: fmt.Sprintf("Rule %s run completed", ruleUID),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"actions_executed": executed,
			"duration":         duration.Seconds(),
		},
	})
}

// PublishRuleRunFailed publishes a rule run failed event.
func (ep *EventPublisher) PublishRuleRunFailed(ruleUID, moduleID, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypeRuleRunFailed,
		Source:   "engine",
		RuleUID:  ruleUID,
		ModuleID: moduleID,
		Message:  fmt.Sprintf("Rule %s run failed: %s", ruleUID, reason),
		Level:    EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishTemplateResolved publishes a template resolved event.
func (ep *EventPublisher) PublishTemplateResolved(ruleUID, templateUID string) error {
	return ep.Publish(Event{
		Type:        EventTypeTemplateResolved,
		Source:      "registry",
		RuleUID:     ruleUID,
		TemplateUID: templateUID,
		Message:     fmt.Sprintf("Rule %s resolved from template %s", ruleUID, templateUID),
		Level:       EventLevelInfo,
	})
}

// PublishProviderAttached publishes a provider attached event.
func (ep *EventPublisher) PublishProviderAttached(providerName string, ruleCount int) error {
	return ep.Publish(Event{
		Type:    EventTypeProviderAttached,
		Source:  "registry",
		Message: fmt.Sprintf("Provider %s attached with %d rules", providerName, ruleCount),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"provider":   providerName,
			"rule_count": ruleCount,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// periodicFlush flushes events periodically.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Trigger flush by draining buffer
			// This is handled by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByRuleUID creates a filter that only allows events for a specific rule.
func FilterByRuleUID(ruleUID string) EventFilter {
	return func(event Event) bool {
		return event.RuleUID == ruleUID
	}
}

// FilterByTemplateUID creates a filter that only allows events for a specific template.
func FilterByTemplateUID(templateUID string) EventFilter {
	return func(event Event) bool {
		return event.TemplateUID == templateUID
	}
}
