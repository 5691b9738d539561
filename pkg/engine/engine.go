package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rulekit/rulekit/pkg/rule"
	"github.com/rulekit/rulekit/pkg/telemetry"
)

// DisabledStore persists which rules are disabled across restarts.
type DisabledStore interface {
	// IsDisabled reports whether the rule was disabled by the caller.
	IsDisabled(uid string) (bool, error)

	// SetDisabled records or clears the disabled flag for a rule.
	SetDisabled(uid string, disabled bool) error
}

// StatusListener receives rule status transitions.
type StatusListener interface {
	// StatusChanged is called after a rule's status info changed.
	StatusChanged(ruleUID string, info rule.StatusInfo)
}

// Options configures an Engine.
type Options struct {
	// Handlers supplies module handler factories. When nil an empty
	// handler registry is created; rules stay uninitialized until
	// factories arrive.
	Handlers *HandlerRegistry

	// Dispatch configures per-rule trigger execution.
	Dispatch DispatchConfig

	// Disabled persists explicit disable state. Optional; when nil
	// disable state lives only in memory.
	Disabled DisabledStore

	// Telemetry carries the logger, metrics and event publisher. When
	// nil a quiet default is used.
	Telemetry *telemetry.Telemetry
}

// managedRule is the engine's view of one registered rule: the rule
// itself, its current status and, while active, the bound handlers and
// trigger callback.
type managedRule struct {
	r       *rule.Rule
	status  rule.StatusInfo
	enabled bool

	cb         *callback
	triggers   map[string]TriggerHandler
	conditions map[string]ConditionHandler
	actions    map[string]ActionHandler
}

// Engine executes rules. It subscribes to a registry for the rule set
// and to a handler registry for module handlers, tracks each rule's
// lifecycle status and dispatches trigger firings so executions of one
// rule are strictly serialized while distinct rules run independently.
type Engine struct {
	mu              sync.RWMutex
	rules           map[string]*managedRule
	statusListeners []StatusListener

	handlers   *HandlerRegistry
	dispatch   dispatcher
	disabled   DisabledStore
	shutdownCh chan struct{}

	logger  *telemetry.Logger
	events  *telemetry.EventPublisher
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// New creates an engine. Call Subscribe on the rule registry with the
// returned engine to feed it rules.
func New(opts Options) *Engine {
	tel := opts.Telemetry
	if tel == nil {
		logger, _ := telemetry.NewLogger(telemetry.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		})
		metrics, _ := telemetry.NewMetrics(telemetry.MetricsConfig{})
		events, _ := telemetry.NewEventPublisher(telemetry.EventsConfig{})
		tel = &telemetry.Telemetry{Logger: logger, Metrics: metrics, Events: events}
	}
	handlers := opts.Handlers
	if handlers == nil {
		handlers = NewHandlerRegistry()
	}

	e := &Engine{
		rules:      make(map[string]*managedRule),
		handlers:   handlers,
		dispatch:   newDispatcher(opts.Dispatch),
		disabled:   opts.Disabled,
		shutdownCh: make(chan struct{}),
		logger:     tel.Logger.NewComponentLogger("engine"),
		events:     tel.Events,
		metrics:    tel.Metrics,
		tracer:     tel.Tracer,
	}
	handlers.subscribe(e)
	return e
}

// SubscribeStatus registers a listener for rule status transitions.
func (e *Engine) SubscribeStatus(l StatusListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusListeners = append(e.statusListeners, l)
}

// Handlers returns the engine's handler registry.
func (e *Engine) Handlers() *HandlerRegistry {
	return e.handlers
}

// RuleAdded implements registry.Listener. The rule enters the status
// machine at uninitialized and is activated if its handlers are
// available and it was not previously disabled.
func (e *Engine) RuleAdded(r *rule.Rule) {
	e.mu.Lock()
	mr := &managedRule{
		r:       r,
		status:  rule.NewStatusInfo(rule.StatusUninitialized),
		enabled: true,
	}
	e.rules[r.UID()] = mr
	e.mu.Unlock()

	// The uninitialized status is published before any activation
	// attempt, so consumers always see the rule enter the machine.
	e.statusChanged(r.UID(), "", mr.status)

	if e.loadDisabled(r.UID()) {
		e.mu.Lock()
		mr.enabled = false
		e.mu.Unlock()
		e.setStatus(r.UID(), rule.NewStatusInfoDetailed(
			rule.StatusDisabled, rule.DetailDisabled, "disabled"))
		return
	}
	e.activate(r.UID())
}

// RuleUpdated implements registry.Listener. The running execution, if
// any, finishes against the old rule; the new rule re-enters the status
// machine at uninitialized.
func (e *Engine) RuleUpdated(old, updated *rule.Rule) {
	e.mu.Lock()
	mr, ok := e.rules[updated.UID()]
	if !ok {
		e.mu.Unlock()
		e.RuleAdded(updated)
		return
	}
	enabled := mr.enabled
	previous := mr.status.Status
	e.deactivateLocked(mr)
	mr.r = updated
	mr.status = rule.NewStatusInfo(rule.StatusUninitialized)
	e.mu.Unlock()

	e.statusChanged(updated.UID(), previous, rule.NewStatusInfo(rule.StatusUninitialized))

	if !enabled {
		e.setStatus(updated.UID(), rule.NewStatusInfoDetailed(
			rule.StatusDisabled, rule.DetailDisabled, "disabled"))
		return
	}
	e.activate(updated.UID())
}

// RuleRemoved implements registry.Listener.
func (e *Engine) RuleRemoved(r *rule.Rule) {
	e.mu.Lock()
	mr, ok := e.rules[r.UID()]
	if ok {
		e.deactivateLocked(mr)
		delete(e.rules, r.UID())
	}
	e.mu.Unlock()

	if ok {
		e.logger.WithRuleUID(r.UID()).Debug("Rule removed from engine")
	}
}

// factoryAdded implements factoryListener. Rules stuck on a missing
// handler get another activation attempt.
func (e *Engine) factoryAdded(types []string) {
	for _, uid := range e.rulesWithStatus(rule.StatusUninitialized) {
		e.activate(uid)
	}
}

// factoryRemoved implements factoryListener. Active rules using one of
// the removed types fall back to uninitialized.
func (e *Engine) factoryRemoved(types []string) {
	removed := make(map[string]struct{}, len(types))
	for _, t := range types {
		removed[t] = struct{}{}
	}

	e.mu.Lock()
	var affected []string
	for uid, mr := range e.rules {
		if !mr.status.Status.IsActive() {
			continue
		}
		for _, m := range mr.r.Modules() {
			if _, ok := removed[m.TypeUID()]; ok {
				affected = append(affected, uid)
				break
			}
		}
	}
	e.mu.Unlock()

	for _, uid := range affected {
		e.mu.Lock()
		mr, ok := e.rules[uid]
		if ok {
			e.deactivateLocked(mr)
		}
		e.mu.Unlock()
		if ok {
			e.setStatus(uid, rule.NewStatusInfoDetailed(
				rule.StatusUninitialized, rule.DetailHandlerMissing,
				"module handler no longer available"))
		}
	}
}

// activate binds handlers for every module of the rule and moves it to
// idle. On any failure the rule stays uninitialized with a detail
// describing what is missing.
func (e *Engine) activate(uid string) {
	e.mu.Lock()
	mr, ok := e.rules[uid]
	if !ok || !mr.enabled || mr.status.Status.IsActive() {
		e.mu.Unlock()
		return
	}
	r := mr.r
	e.mu.Unlock()

	if r.TemplateUID() != "" {
		e.setStatus(uid, rule.NewStatusInfoDetailed(
			rule.StatusUninitialized, rule.DetailTemplateMissing,
			fmt.Sprintf("waiting for template %s", r.TemplateUID())))
		return
	}
	if err := r.ValidateStructure(); err != nil {
		e.setStatus(uid, rule.NewStatusInfoDetailed(
			rule.StatusUninitialized, rule.DetailInvalidRule, err.Error()))
		return
	}

	triggers := make(map[string]TriggerHandler, len(r.Triggers()))
	conditions := make(map[string]ConditionHandler, len(r.Conditions()))
	actions := make(map[string]ActionHandler, len(r.Actions()))
	disposeAll := func() {
		for _, h := range triggers {
			h.Dispose()
		}
		for _, h := range conditions {
			h.Dispose()
		}
		for _, h := range actions {
			h.Dispose()
		}
	}

	for _, m := range r.Modules() {
		factory, ok := e.handlers.Factory(m.TypeUID())
		if !ok {
			disposeAll()
			e.setStatus(uid, rule.NewStatusInfoDetailed(
				rule.StatusUninitialized, rule.DetailHandlerMissing,
				fmt.Sprintf("no handler for module type %s", m.TypeUID())))
			return
		}
		h, err := factory.NewHandler(m)
		if err != nil {
			disposeAll()
			e.setStatus(uid, rule.NewStatusInfoDetailed(
				rule.StatusUninitialized, rule.DetailHandlerMissing,
				fmt.Sprintf("handler for module %s failed: %v", m.ID(), err)))
			return
		}
		switch m.Kind() {
		case rule.KindTrigger:
			th, ok := h.(TriggerHandler)
			if !ok {
				h.Dispose()
				disposeAll()
				e.setStatus(uid, rule.NewStatusInfoDetailed(
					rule.StatusUninitialized, rule.DetailInvalidRule,
					fmt.Sprintf("handler for trigger %s is not a trigger handler", m.ID())))
				return
			}
			triggers[m.ID()] = th
		case rule.KindCondition:
			ch, ok := h.(ConditionHandler)
			if !ok {
				h.Dispose()
				disposeAll()
				e.setStatus(uid, rule.NewStatusInfoDetailed(
					rule.StatusUninitialized, rule.DetailInvalidRule,
					fmt.Sprintf("handler for condition %s is not a condition handler", m.ID())))
				return
			}
			conditions[m.ID()] = ch
		case rule.KindAction:
			ah, ok := h.(ActionHandler)
			if !ok {
				h.Dispose()
				disposeAll()
				e.setStatus(uid, rule.NewStatusInfoDetailed(
					rule.StatusUninitialized, rule.DetailInvalidRule,
					fmt.Sprintf("handler for action %s is not an action handler", m.ID())))
				return
			}
			actions[m.ID()] = ah
		}
	}

	cb := newCallback(e, uid, e.dispatch.sequencer())

	e.mu.Lock()
	mr, ok = e.rules[uid]
	if !ok || !mr.enabled || mr.r != r {
		// The rule changed under us while handlers were being built.
		e.mu.Unlock()
		cb.dispose()
		disposeAll()
		return
	}
	mr.cb = cb
	mr.triggers = triggers
	mr.conditions = conditions
	mr.actions = actions
	e.mu.Unlock()

	for _, th := range triggers {
		th.SetCallback(cb)
	}

	e.setStatus(uid, rule.NewStatusInfo(rule.StatusIdle))
	e.logger.WithRuleUID(uid).Debug("Rule activated")
}

// deactivateLocked releases a rule's callback and handlers. Must be
// called with e.mu held.
func (e *Engine) deactivateLocked(mr *managedRule) {
	if mr.cb != nil {
		mr.cb.dispose()
		mr.cb = nil
	}
	for _, h := range mr.triggers {
		h.Dispose()
	}
	for _, h := range mr.conditions {
		h.Dispose()
	}
	for _, h := range mr.actions {
		h.Dispose()
	}
	mr.triggers = nil
	mr.conditions = nil
	mr.actions = nil
}

// SetEnabled enables or disables a rule. Disabling releases the rule's
// handlers; a queued or running execution finishes first. The flag is
// persisted through the disabled store when one is configured.
func (e *Engine) SetEnabled(uid string, enabled bool) error {
	e.mu.Lock()
	mr, ok := e.rules[uid]
	if !ok {
		e.mu.Unlock()
		return rule.NewNotFoundError(fmt.Sprintf("rule %s is not managed by the engine", uid), nil)
	}
	if mr.enabled == enabled {
		e.mu.Unlock()
		return nil
	}
	mr.enabled = enabled
	if !enabled {
		e.deactivateLocked(mr)
	}
	e.mu.Unlock()

	if e.disabled != nil {
		if err := e.disabled.SetDisabled(uid, !enabled); err != nil {
			e.logger.WithRuleUID(uid).WithError(err).Error("Failed to persist disabled flag")
		}
	}

	if enabled {
		e.setStatus(uid, rule.NewStatusInfo(rule.StatusUninitialized))
		e.activate(uid)
		return nil
	}
	e.setStatus(uid, rule.NewStatusInfoDetailed(
		rule.StatusDisabled, rule.DetailDisabled, "disabled"))
	return nil
}

// IsEnabled reports whether the rule is enabled. Unknown rules report
// false.
func (e *Engine) IsEnabled(uid string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	mr, ok := e.rules[uid]
	return ok && mr.enabled
}

// Status returns the rule's current status info.
func (e *Engine) Status(uid string) (rule.StatusInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	mr, ok := e.rules[uid]
	if !ok {
		return rule.StatusInfo{}, false
	}
	return mr.status, true
}

// IsRunning reports whether an execution for the rule is queued or in
// flight.
func (e *Engine) IsRunning(uid string) bool {
	e.mu.RLock()
	mr, ok := e.rules[uid]
	cb := (*callback)(nil)
	if ok {
		cb = mr.cb
	}
	e.mu.RUnlock()
	return cb != nil && cb.isRunning()
}

// RunNow executes the rule immediately, skipping its conditions. The
// execution goes through the rule's sequencer, so it never overlaps a
// triggered execution of the same rule. RunNow blocks until the
// execution finished.
func (e *Engine) RunNow(uid string) error {
	return e.RunNowWithContext(uid, false, nil)
}

// RunNowWithContext executes the rule immediately with extra run
// context entries, optionally evaluating its conditions first.
func (e *Engine) RunNowWithContext(uid string, considerConditions bool, extra map[string]any) error {
	e.mu.RLock()
	mr, ok := e.rules[uid]
	cb := (*callback)(nil)
	if ok {
		cb = mr.cb
	}
	e.mu.RUnlock()

	if !ok {
		return rule.NewNotFoundError(fmt.Sprintf("rule %s is not managed by the engine", uid), nil)
	}
	if cb == nil {
		return rule.NewConfigurationError(
			fmt.Sprintf("rule %s is not active", uid), nil).WithRule(uid)
	}

	done := make(chan struct{})
	submitted := cb.seq.submit(func() {
		defer close(done)
		e.runRule(uid, "", extra, considerConditions)
	})
	if !submitted {
		e.recordDroppedTrigger(uid, "")
		return rule.NewInternalError(
			fmt.Sprintf("execution queue for rule %s is full", uid), nil)
	}
	<-done
	return nil
}

// runRule is one rule execution. It always runs on the rule's
// sequencer, so at most one execution per rule is in flight.
func (e *Engine) runRule(uid, triggerID string, outputs map[string]any, considerConditions bool) {
	e.mu.Lock()
	mr, ok := e.rules[uid]
	if !ok || mr.status.Status != rule.StatusIdle {
		e.mu.Unlock()
		return
	}
	r := mr.r
	conditions := mr.conditions
	actions := mr.actions
	mr.status = rule.NewStatusInfo(rule.StatusRunning)
	e.mu.Unlock()
	e.statusChanged(uid, rule.StatusIdle, rule.NewStatusInfo(rule.StatusRunning))

	start := time.Now()
	e.metrics.RecordRunTriggered(uid)
	_ = e.events.PublishRuleRunStarted(uid, triggerID)
	ctx, endSpan := e.startRunSpan(uid, triggerID)

	runContext := make(map[string]any, len(outputs)+4)
	if triggerID != "" {
		for name, value := range outputs {
			runContext[outputKey(triggerID, name)] = value
		}
	} else {
		for name, value := range outputs {
			runContext[name] = value
		}
	}

	executed, err := e.executeModules(ctx, r, conditions, actions, runContext, considerConditions)
	duration := time.Since(start)

	outcome := "executed"
	switch {
	case err != nil:
		outcome = "failed"
	case !executed:
		outcome = "conditions_unsatisfied"
	}
	e.metrics.RecordRunCompleted(uid, outcome, duration)
	if err != nil {
		var moduleID string
		var ruleErr *rule.Error
		if errors.As(err, &ruleErr) {
			moduleID = ruleErr.Module
		}
		_ = e.events.PublishRuleRunFailed(uid, moduleID, err.Error())
		e.logger.WithRuleUID(uid).WithError(err).Warn("Rule execution failed")
	} else {
		_ = e.events.PublishRuleRunCompleted(uid, executed, duration)
	}
	endSpan(err)

	e.mu.Lock()
	mr, ok = e.rules[uid]
	if ok && mr.status.Status == rule.StatusRunning {
		mr.status = rule.NewStatusInfo(rule.StatusIdle)
		e.mu.Unlock()
		e.statusChanged(uid, rule.StatusRunning, rule.NewStatusInfo(rule.StatusIdle))
		return
	}
	e.mu.Unlock()
}

// executeModules evaluates the rule's conditions and, if they pass,
// runs its actions in order, threading module outputs through the run
// context.
func (e *Engine) executeModules(
	ctx context.Context,
	r *rule.Rule,
	conditions map[string]ConditionHandler,
	actions map[string]ActionHandler,
	runContext map[string]any,
	considerConditions bool,
) (bool, error) {
	if considerConditions {
		for _, m := range r.Conditions() {
			h, ok := conditions[m.ID()]
			if !ok {
				return false, rule.NewInternalError(
					fmt.Sprintf("no bound handler for condition %s", m.ID()), nil).
					WithRule(r.UID()).WithModule(m.ID())
			}
			start := time.Now()
			satisfied, err := h.IsSatisfied(ctx, resolveInputs(m, runContext))
			if err != nil {
				e.metrics.RecordModuleExecution(string(m.Kind()), m.TypeUID(), "failed", time.Since(start))
				return false, rule.NewConfigurationError(
					fmt.Sprintf("condition %s failed: %v", m.ID(), err), err).
					WithRule(r.UID()).WithModule(m.ID())
			}
			e.metrics.RecordModuleExecution(string(m.Kind()), m.TypeUID(), "ok", time.Since(start))
			if !satisfied {
				return false, nil
			}
		}
	}

	for _, m := range r.Actions() {
		h, ok := actions[m.ID()]
		if !ok {
			return true, rule.NewInternalError(
				fmt.Sprintf("no bound handler for action %s", m.ID()), nil).
				WithRule(r.UID()).WithModule(m.ID())
		}
		start := time.Now()
		outputs, err := h.Execute(ctx, resolveInputs(m, runContext))
		if err != nil {
			e.metrics.RecordModuleExecution(string(m.Kind()), m.TypeUID(), "failed", time.Since(start))
			return true, rule.NewInternalError(
				fmt.Sprintf("action %s failed: %v", m.ID(), err), err).
				WithRule(r.UID()).WithModule(m.ID())
		}
		e.metrics.RecordModuleExecution(string(m.Kind()), m.TypeUID(), "ok", time.Since(start))
		for name, value := range outputs {
			runContext[outputKey(m.ID(), name)] = value
		}
	}
	return true, nil
}

// setStatus replaces a rule's status info and fans the transition out.
func (e *Engine) setStatus(uid string, info rule.StatusInfo) {
	e.mu.Lock()
	mr, ok := e.rules[uid]
	if !ok {
		e.mu.Unlock()
		return
	}
	old := mr.status.Status
	mr.status = info
	e.mu.Unlock()

	e.statusChanged(uid, old, info)
}

func (e *Engine) statusChanged(uid string, old rule.Status, info rule.StatusInfo) {
	_ = e.events.PublishRuleStatusChanged(uid, string(old), string(info.Status), string(info.Detail))
	e.publishStatusCounts()
	e.notifyStatus(uid, info)
}

func (e *Engine) notifyStatus(uid string, info rule.StatusInfo) {
	e.mu.RLock()
	snapshot := make([]StatusListener, len(e.statusListeners))
	copy(snapshot, e.statusListeners)
	e.mu.RUnlock()

	for _, l := range snapshot {
		l.StatusChanged(uid, info)
	}
}

func (e *Engine) publishStatusCounts() {
	counts := map[rule.Status]int{}
	e.mu.RLock()
	for _, mr := range e.rules {
		counts[mr.status.Status]++
	}
	e.mu.RUnlock()

	for _, s := range []rule.Status{
		rule.StatusUninitialized, rule.StatusIdle, rule.StatusRunning, rule.StatusDisabled,
	} {
		e.metrics.SetRulesByStatus(string(s), float64(counts[s]))
	}
}

func (e *Engine) rulesWithStatus(s rule.Status) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var uids []string
	for uid, mr := range e.rules {
		if mr.status.Status == s {
			uids = append(uids, uid)
		}
	}
	return uids
}

func (e *Engine) loadDisabled(uid string) bool {
	if e.disabled == nil {
		return false
	}
	disabled, err := e.disabled.IsDisabled(uid)
	if err != nil {
		e.logger.WithRuleUID(uid).WithError(err).Error("Failed to load disabled flag")
		return false
	}
	return disabled
}

func (e *Engine) recordDroppedTrigger(uid, triggerID string) {
	e.metrics.RecordDroppedTrigger(uid)
	e.logger.WithRuleUID(uid).WithField("trigger_id", triggerID).
		Warn("Trigger firing dropped, execution queue full")
}

func (e *Engine) startRunSpan(uid, triggerID string) (context.Context, func(error)) {
	ctx := context.Background()
	if e.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := e.tracer.StartRuleRunSpan(ctx, uid, triggerID)
	return ctx, func(err error) {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()
	}
}

// Shutdown deactivates all rules and stops shared dispatch workers.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	for _, mr := range e.rules {
		e.deactivateLocked(mr)
	}
	e.mu.Unlock()
	e.dispatch.shutdown()
	close(e.shutdownCh)
}
