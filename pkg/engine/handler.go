package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/rulekit/rulekit/pkg/rule"
)

// ModuleHandler is the common surface of all module handler kinds.
type ModuleHandler interface {
	// Dispose releases the handler's resources. It must be idempotent.
	Dispose()
}

// TriggerCallback is what a trigger handler fires into when its event
// occurs. One callback exists per rule; Triggered never blocks the
// caller. The remaining methods give the handler access to engine
// operations scoped to its own rule.
type TriggerCallback interface {
	// Triggered submits a trigger firing with the outputs the trigger
	// produced. The firing is queued; the callback returns immediately.
	Triggered(triggerID string, outputs map[string]any)

	// SetEnabled enables or disables the rule.
	SetEnabled(enabled bool) error

	// IsEnabled reports whether the rule is enabled.
	IsEnabled() bool

	// Status returns the rule's current status.
	Status() rule.Status

	// StatusInfo returns the rule's current status with detail.
	StatusInfo() rule.StatusInfo

	// RunNow executes the rule immediately, skipping its conditions,
	// and blocks until the execution finished.
	RunNow() error

	// RunNowWithContext executes the rule immediately with extra run
	// context entries, optionally evaluating its conditions first.
	RunNowWithContext(considerConditions bool, extra map[string]any) error
}

// TriggerHandler watches for the event its module describes and fires
// the rule's callback when it occurs.
type TriggerHandler interface {
	ModuleHandler

	// SetCallback wires the handler to its rule's callback. The engine
	// calls this during activation, before the rule reaches idle.
	SetCallback(cb TriggerCallback)
}

// ConditionHandler decides whether a rule's actions should run.
type ConditionHandler interface {
	ModuleHandler

	// IsSatisfied evaluates the condition against the module's resolved
	// inputs.
	IsSatisfied(ctx context.Context, inputs map[string]any) (bool, error)
}

// ActionHandler performs a rule's effect.
type ActionHandler interface {
	ModuleHandler

	// Execute runs the action with the module's resolved inputs and
	// returns the outputs it produced, keyed by output name.
	Execute(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// HandlerFactory creates handlers for the module types it supports.
// Factories can be added and removed at runtime; the engine reactivates
// affected rules when the set of available types changes.
type HandlerFactory interface {
	// Types returns the module type UIDs this factory can handle.
	Types() []string

	// NewHandler creates a handler for the module. The returned handler
	// must match the module's kind: TriggerHandler for triggers,
	// ConditionHandler for conditions, ActionHandler for actions.
	NewHandler(m *rule.Module) (ModuleHandler, error)
}

// factoryListener is notified when handler factories come and go.
type factoryListener interface {
	factoryAdded(types []string)
	factoryRemoved(types []string)
}

// HandlerRegistry tracks the handler factories available to the engine,
// keyed by module type UID.
type HandlerRegistry struct {
	mu        sync.RWMutex
	factories map[string]HandlerFactory
	listeners []factoryListener
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		factories: make(map[string]HandlerFactory),
	}
}

// AddFactory registers a factory for every type it supports. A type
// already claimed by another factory is taken over by the new one.
func (hr *HandlerRegistry) AddFactory(f HandlerFactory) {
	types := f.Types()
	hr.mu.Lock()
	for _, t := range types {
		hr.factories[t] = f
	}
	listeners := hr.snapshotListeners()
	hr.mu.Unlock()

	for _, l := range listeners {
		l.factoryAdded(types)
	}
}

// RemoveFactory unregisters a factory. Rules using its types revert to
// uninitialized until another factory covers them.
func (hr *HandlerRegistry) RemoveFactory(f HandlerFactory) {
	types := f.Types()
	hr.mu.Lock()
	var removed []string
	for _, t := range types {
		if hr.factories[t] == f {
			delete(hr.factories, t)
			removed = append(removed, t)
		}
	}
	listeners := hr.snapshotListeners()
	hr.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	for _, l := range listeners {
		l.factoryRemoved(removed)
	}
}

// Factory returns the factory claiming the given module type UID. An
// exact match wins; otherwise the longest dot-separated prefix with a
// registered factory is used, so a factory may claim a namespace such
// as "mqtt" and serve every type under it.
func (hr *HandlerRegistry) Factory(typeUID string) (HandlerFactory, bool) {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	if f, ok := hr.factories[typeUID]; ok {
		return f, true
	}
	prefix := typeUID
	for {
		i := strings.LastIndex(prefix, ".")
		if i < 0 {
			return nil, false
		}
		prefix = prefix[:i]
		if f, ok := hr.factories[prefix]; ok {
			return f, true
		}
	}
}

func (hr *HandlerRegistry) subscribe(l factoryListener) {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	hr.listeners = append(hr.listeners, l)
}

// snapshotListeners must be called with hr.mu held.
func (hr *HandlerRegistry) snapshotListeners() []factoryListener {
	snapshot := make([]factoryListener, len(hr.listeners))
	copy(snapshot, hr.listeners)
	return snapshot
}
