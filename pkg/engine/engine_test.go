package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rulekit/rulekit/pkg/rule"
	"github.com/rulekit/rulekit/pkg/telemetry"
)

const (
	testTriggerType   = "test.trigger"
	testConditionType = "test.condition"
	testActionType    = "test.action"
)

type fakeTrigger struct {
	id string

	mu       sync.Mutex
	cb       TriggerCallback
	disposed bool
}

func (h *fakeTrigger) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disposed = true
	h.cb = nil
}

func (h *fakeTrigger) SetCallback(cb TriggerCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cb = cb
}

func (h *fakeTrigger) fire(outputs map[string]any) {
	h.mu.Lock()
	cb := h.cb
	h.mu.Unlock()
	if cb != nil {
		cb.Triggered(h.id, outputs)
	}
}

type fakeCondition struct {
	satisfied func(inputs map[string]any) bool

	mu     sync.Mutex
	inputs []map[string]any
}

func (h *fakeCondition) Dispose() {}

func (h *fakeCondition) IsSatisfied(ctx context.Context, inputs map[string]any) (bool, error) {
	h.mu.Lock()
	h.inputs = append(h.inputs, inputs)
	h.mu.Unlock()
	if h.satisfied == nil {
		return true, nil
	}
	return h.satisfied(inputs), nil
}

type fakeAction struct {
	execute func(inputs map[string]any) (map[string]any, error)

	mu     sync.Mutex
	inputs []map[string]any
}

func (h *fakeAction) Dispose() {}

func (h *fakeAction) Execute(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	h.mu.Lock()
	h.inputs = append(h.inputs, inputs)
	h.mu.Unlock()
	if h.execute == nil {
		return nil, nil
	}
	return h.execute(inputs)
}

func (h *fakeAction) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inputs)
}

// fakeFactory hands out the handlers prepared for each module id, so
// tests can fire triggers and inspect conditions and actions directly.
type fakeFactory struct {
	mu       sync.Mutex
	handlers map[string]ModuleHandler
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{handlers: make(map[string]ModuleHandler)}
}

func (f *fakeFactory) Types() []string {
	return []string{testTriggerType, testConditionType, testActionType}
}

func (f *fakeFactory) NewHandler(m *rule.Module) (ModuleHandler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.handlers[m.ID()]; ok {
		return h, nil
	}
	var h ModuleHandler
	switch m.Kind() {
	case rule.KindTrigger:
		h = &fakeTrigger{id: m.ID()}
	case rule.KindCondition:
		h = &fakeCondition{}
	default:
		h = &fakeAction{}
	}
	f.handlers[m.ID()] = h
	return h, nil
}

func (f *fakeFactory) trigger(id string) *fakeTrigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[id].(*fakeTrigger)
}

func (f *fakeFactory) action(id string) *fakeAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[id].(*fakeAction)
}

type memoryDisabledStore struct {
	mu       sync.Mutex
	disabled map[string]bool
}

func newMemoryDisabledStore() *memoryDisabledStore {
	return &memoryDisabledStore{disabled: make(map[string]bool)}
}

func (s *memoryDisabledStore) IsDisabled(uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled[uid], nil
}

func (s *memoryDisabledStore) SetDisabled(uid string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[uid] = disabled
	return nil
}

func testRule(uid string) *rule.Rule {
	r := rule.NewRule(uid)
	r.SetTriggers(rule.NewTrigger("t1", testTriggerType, nil))
	r.SetConditions(rule.NewCondition("c1", testConditionType, nil,
		map[string]string{"value": "t1.value"}))
	r.SetActions(rule.NewAction("a1", testActionType, nil,
		map[string]string{"value": "t1.value"}))
	return r
}

func newTestEngine(t *testing.T, factory HandlerFactory, opts Options) *Engine {
	t.Helper()
	handlers := NewHandlerRegistry()
	if factory != nil {
		handlers.AddFactory(factory)
	}
	opts.Handlers = handlers
	e := New(opts)
	t.Cleanup(e.Shutdown)
	return e
}

func waitForStatus(t *testing.T, e *Engine, uid string, want rule.Status) rule.StatusInfo {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		info, ok := e.Status(uid)
		if ok && info.Status == want {
			return info
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected rule %s to reach status %s, got %+v (known=%v)", uid, want, info, ok)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestEngine_RuleAdded_BecomesIdle(t *testing.T) {
	factory := newFakeFactory()
	e := newTestEngine(t, factory, Options{})

	e.RuleAdded(testRule("r1"))

	info := waitForStatus(t, e, "r1", rule.StatusIdle)
	if info.Detail != rule.DetailNone {
		t.Errorf("Expected no status detail, got %q", info.Detail)
	}
}

func TestEngine_RuleAdded_MissingHandlerStaysUninitialized(t *testing.T) {
	e := newTestEngine(t, nil, Options{})

	e.RuleAdded(testRule("r1"))

	info, ok := e.Status("r1")
	if !ok {
		t.Fatal("Expected rule to be known to the engine")
	}
	if info.Status != rule.StatusUninitialized {
		t.Fatalf("Expected status uninitialized, got %s", info.Status)
	}
	if info.Detail != rule.DetailHandlerMissing {
		t.Errorf("Expected detail handler_missing, got %q", info.Detail)
	}
}

func TestEngine_FactoryAdded_ActivatesWaitingRule(t *testing.T) {
	e := newTestEngine(t, nil, Options{})
	e.RuleAdded(testRule("r1"))

	e.Handlers().AddFactory(newFakeFactory())

	waitForStatus(t, e, "r1", rule.StatusIdle)
}

func TestEngine_FactoryRemoved_DeactivatesRule(t *testing.T) {
	factory := newFakeFactory()
	e := newTestEngine(t, factory, Options{})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	e.Handlers().RemoveFactory(factory)

	info := waitForStatus(t, e, "r1", rule.StatusUninitialized)
	if info.Detail != rule.DetailHandlerMissing {
		t.Errorf("Expected detail handler_missing, got %q", info.Detail)
	}
}

func TestEngine_TemplatedRuleWaitsForTemplate(t *testing.T) {
	factory := newFakeFactory()
	e := newTestEngine(t, factory, Options{})

	r := testRule("r1")
	r.SetTemplateUID("templates:motion")
	e.RuleAdded(r)

	info, _ := e.Status("r1")
	if info.Status != rule.StatusUninitialized {
		t.Fatalf("Expected status uninitialized, got %s", info.Status)
	}
	if info.Detail != rule.DetailTemplateMissing {
		t.Errorf("Expected detail template_missing, got %q", info.Detail)
	}
}

func TestEngine_TriggerFiring_RunsActionsWithResolvedInputs(t *testing.T) {
	factory := newFakeFactory()
	e := newTestEngine(t, factory, Options{})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	factory.trigger("t1").fire(map[string]any{"value": 42})

	action := factory.action("a1")
	waitFor(t, "action execution", func() bool { return action.calls() == 1 })

	action.mu.Lock()
	got := action.inputs[0]["value"]
	action.mu.Unlock()
	if got != 42 {
		t.Errorf("Expected action input value 42, got %v", got)
	}
}

func TestEngine_UnsatisfiedCondition_SkipsActions(t *testing.T) {
	factory := newFakeFactory()
	factory.handlers["c1"] = &fakeCondition{
		satisfied: func(map[string]any) bool { return false },
	}
	e := newTestEngine(t, factory, Options{})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	factory.trigger("t1").fire(map[string]any{"value": 1})
	waitFor(t, "execution to settle", func() bool { return !e.IsRunning("r1") })
	waitForStatus(t, e, "r1", rule.StatusIdle)

	if got := factory.action("a1").calls(); got != 0 {
		t.Errorf("Expected no action executions, got %d", got)
	}
}

func TestEngine_ActionOutputsFlowToLaterActions(t *testing.T) {
	factory := newFakeFactory()
	factory.handlers["a1"] = &fakeAction{
		execute: func(map[string]any) (map[string]any, error) {
			return map[string]any{"result": "computed"}, nil
		},
	}
	second := &fakeAction{}
	factory.handlers["a2"] = second

	r := rule.NewRule("r1")
	r.SetTriggers(rule.NewTrigger("t1", testTriggerType, nil))
	r.SetActions(
		rule.NewAction("a1", testActionType, nil, nil),
		rule.NewAction("a2", testActionType, nil, map[string]string{"in": "a1.result"}),
	)

	e := newTestEngine(t, factory, Options{})
	e.RuleAdded(r)
	waitForStatus(t, e, "r1", rule.StatusIdle)

	factory.trigger("t1").fire(nil)
	waitFor(t, "second action", func() bool { return second.calls() == 1 })

	second.mu.Lock()
	got := second.inputs[0]["in"]
	second.mu.Unlock()
	if got != "computed" {
		t.Errorf("Expected second action input %q, got %v", "computed", got)
	}
}

func TestEngine_SameRuleExecutionsNeverOverlap(t *testing.T) {
	for _, mode := range []DispatchMode{DispatchDedicated, DispatchPooled} {
		t.Run(string(mode), func(t *testing.T) {
			var inFlight, overlaps, total atomic.Int64
			factory := newFakeFactory()
			factory.handlers["a1"] = &fakeAction{
				execute: func(map[string]any) (map[string]any, error) {
					if inFlight.Add(1) > 1 {
						overlaps.Add(1)
					}
					time.Sleep(time.Millisecond)
					inFlight.Add(-1)
					total.Add(1)
					return nil, nil
				},
			}

			e := newTestEngine(t, factory, Options{
				Dispatch: DispatchConfig{Mode: mode, QueueSize: 100, PoolSize: 4},
			})
			e.RuleAdded(testRule("r1"))
			waitForStatus(t, e, "r1", rule.StatusIdle)

			trigger := factory.trigger("t1")
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					trigger.fire(map[string]any{"value": 1})
				}()
			}
			wg.Wait()

			waitFor(t, "all firings to drain", func() bool { return total.Load() == 20 })
			if n := overlaps.Load(); n != 0 {
				t.Errorf("Expected no overlapping executions for one rule, got %d", n)
			}
		})
	}
}

func TestEngine_DistinctRulesRunConcurrently(t *testing.T) {
	factory := newFakeFactory()
	release := make(chan struct{})
	started := make(chan string, 2)
	blocking := func(id string) *fakeAction {
		return &fakeAction{execute: func(map[string]any) (map[string]any, error) {
			started <- id
			<-release
			return nil, nil
		}}
	}
	factory.handlers["a1"] = blocking("r1")

	e := newTestEngine(t, factory, Options{})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	r2 := rule.NewRule("r2")
	r2.SetTriggers(rule.NewTrigger("t2", testTriggerType, nil))
	r2.SetActions(rule.NewAction("a2", testActionType, nil, nil))
	factory.handlers["a2"] = blocking("r2")
	e.RuleAdded(r2)
	waitForStatus(t, e, "r2", rule.StatusIdle)

	factory.trigger("t1").fire(map[string]any{"value": 1})
	factory.trigger("t2").fire(nil)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-started:
			seen[id] = true
		case <-time.After(2 * time.Second):
			close(release)
			t.Fatalf("Expected both rules to start while the other was blocked, saw %v", seen)
		}
	}
	close(release)
}

func TestEngine_FullQueueDropsFiring(t *testing.T) {
	factory := newFakeFactory()
	release := make(chan struct{})
	var executions atomic.Int64
	factory.handlers["a1"] = &fakeAction{
		execute: func(map[string]any) (map[string]any, error) {
			<-release
			executions.Add(1)
			return nil, nil
		},
	}

	e := newTestEngine(t, factory, Options{
		Dispatch: DispatchConfig{Mode: DispatchDedicated, QueueSize: 1},
	})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	trigger := factory.trigger("t1")
	trigger.fire(map[string]any{"value": 1})
	waitFor(t, "first firing to start", func() bool { return e.IsRunning("r1") })

	// One slot queued behind the blocked execution; the rest must drop.
	for i := 0; i < 5; i++ {
		trigger.fire(map[string]any{"value": 1})
	}
	close(release)

	waitFor(t, "executions to drain", func() bool { return !e.IsRunning("r1") })
	if n := executions.Load(); n > 2 {
		t.Errorf("Expected at most 2 executions with queue size 1, got %d", n)
	}
}

func TestEngine_SetEnabled_DisablesAndReenables(t *testing.T) {
	factory := newFakeFactory()
	store := newMemoryDisabledStore()
	e := newTestEngine(t, factory, Options{Disabled: store})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	if err := e.SetEnabled("r1", false); err != nil {
		t.Fatalf("Expected disable to succeed, got %v", err)
	}
	info := waitForStatus(t, e, "r1", rule.StatusDisabled)
	if info.Detail != rule.DetailDisabled {
		t.Errorf("Expected detail disabled, got %q", info.Detail)
	}
	if disabled, _ := store.IsDisabled("r1"); !disabled {
		t.Error("Expected disabled flag to be persisted")
	}

	factory.trigger("t1").fire(map[string]any{"value": 1})
	time.Sleep(10 * time.Millisecond)
	if got := factory.action("a1").calls(); got != 0 {
		t.Errorf("Expected no executions while disabled, got %d", got)
	}

	if err := e.SetEnabled("r1", true); err != nil {
		t.Fatalf("Expected enable to succeed, got %v", err)
	}
	waitForStatus(t, e, "r1", rule.StatusIdle)
	if disabled, _ := store.IsDisabled("r1"); disabled {
		t.Error("Expected disabled flag to be cleared")
	}
}

func TestEngine_PersistedDisable_AppliesOnAdd(t *testing.T) {
	store := newMemoryDisabledStore()
	if err := store.SetDisabled("r1", true); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine(t, newFakeFactory(), Options{Disabled: store})
	e.RuleAdded(testRule("r1"))

	info := waitForStatus(t, e, "r1", rule.StatusDisabled)
	if info.Detail != rule.DetailDisabled {
		t.Errorf("Expected detail disabled, got %q", info.Detail)
	}
}

func TestEngine_SetEnabled_UnknownRule(t *testing.T) {
	e := newTestEngine(t, newFakeFactory(), Options{})

	err := e.SetEnabled("ghost", false)
	if err == nil {
		t.Fatal("Expected error for unknown rule")
	}
	if !rule.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestEngine_RunNow_SkipsConditions(t *testing.T) {
	factory := newFakeFactory()
	factory.handlers["c1"] = &fakeCondition{
		satisfied: func(map[string]any) bool { return false },
	}
	e := newTestEngine(t, factory, Options{})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	if err := e.RunNow("r1"); err != nil {
		t.Fatalf("Expected RunNow to succeed, got %v", err)
	}
	if got := factory.action("a1").calls(); got != 1 {
		t.Errorf("Expected 1 action execution, got %d", got)
	}
}

func TestEngine_RunNowWithContext_HonorsConditions(t *testing.T) {
	factory := newFakeFactory()
	factory.handlers["c1"] = &fakeCondition{
		satisfied: func(map[string]any) bool { return false },
	}
	e := newTestEngine(t, factory, Options{})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	if err := e.RunNowWithContext("r1", true, nil); err != nil {
		t.Fatalf("Expected run to succeed, got %v", err)
	}
	if got := factory.action("a1").calls(); got != 0 {
		t.Errorf("Expected conditions to block the actions, got %d executions", got)
	}
}

func TestEngine_RunNow_InactiveRule(t *testing.T) {
	e := newTestEngine(t, nil, Options{})
	e.RuleAdded(testRule("r1"))

	if err := e.RunNow("r1"); err == nil {
		t.Fatal("Expected error running an inactive rule")
	}
	if err := e.RunNow("ghost"); !rule.IsNotFound(err) {
		t.Errorf("Expected not-found error for unknown rule, got %v", err)
	}
}

func TestEngine_RuleUpdated_ReplacesHandlers(t *testing.T) {
	factory := newFakeFactory()
	e := newTestEngine(t, factory, Options{})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)
	oldTrigger := factory.trigger("t1")

	updated := rule.NewRule("r1")
	updated.SetTriggers(rule.NewTrigger("t9", testTriggerType, nil))
	updated.SetActions(rule.NewAction("a9", testActionType, nil, nil))
	e.RuleUpdated(testRule("r1"), updated)
	waitForStatus(t, e, "r1", rule.StatusIdle)

	oldTrigger.mu.Lock()
	disposed := oldTrigger.disposed
	oldTrigger.mu.Unlock()
	if !disposed {
		t.Error("Expected old trigger handler to be disposed")
	}

	factory.trigger("t9").fire(nil)
	action := factory.action("a9")
	waitFor(t, "new action execution", func() bool { return action.calls() == 1 })
}

func TestEngine_RuleRemoved_DisposesHandlers(t *testing.T) {
	factory := newFakeFactory()
	e := newTestEngine(t, factory, Options{})
	r := testRule("r1")
	e.RuleAdded(r)
	waitForStatus(t, e, "r1", rule.StatusIdle)
	trigger := factory.trigger("t1")

	e.RuleRemoved(r)

	if _, ok := e.Status("r1"); ok {
		t.Error("Expected rule to be forgotten")
	}
	trigger.mu.Lock()
	disposed := trigger.disposed
	trigger.mu.Unlock()
	if !disposed {
		t.Error("Expected trigger handler to be disposed")
	}

	// Late firings after removal must be ignored.
	trigger.fire(map[string]any{"value": 1})
	time.Sleep(10 * time.Millisecond)
	if got := factory.action("a1").calls(); got != 0 {
		t.Errorf("Expected no executions after removal, got %d", got)
	}
}

func TestEngine_StatusListener_SeesLifecycle(t *testing.T) {
	factory := newFakeFactory()
	e := newTestEngine(t, factory, Options{})

	var mu sync.Mutex
	var transitions []rule.Status
	e.SubscribeStatus(statusFunc(func(uid string, info rule.StatusInfo) {
		mu.Lock()
		transitions = append(transitions, info.Status)
		mu.Unlock()
	}))

	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)
	factory.trigger("t1").fire(map[string]any{"value": 1})
	action := factory.action("a1")
	waitFor(t, "action execution", func() bool { return action.calls() == 1 })
	waitForStatus(t, e, "r1", rule.StatusIdle)

	mu.Lock()
	got := append([]rule.Status(nil), transitions...)
	mu.Unlock()

	want := []rule.Status{
		rule.StatusUninitialized, rule.StatusIdle,
		rule.StatusRunning, rule.StatusIdle,
	}
	if len(got) < len(want) {
		t.Fatalf("Expected at least %d transitions, got %v", len(want), got)
	}
	for i, s := range want {
		if got[i] != s {
			t.Fatalf("Expected transition %d to be %s, got %v", i, s, got)
		}
	}
}

type statusFunc func(uid string, info rule.StatusInfo)

func (f statusFunc) StatusChanged(uid string, info rule.StatusInfo) { f(uid, info) }

// syncEventTelemetry builds a telemetry set with a synchronous event
// publisher, so tests observe bus events deterministically.
func syncEventTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()
	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  "error",
		Format: "json",
		Output: "stderr",
	})
	if err != nil {
		t.Fatal(err)
	}
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{})
	if err != nil {
		t.Fatal(err)
	}
	events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	return &telemetry.Telemetry{Logger: logger, Metrics: metrics, Events: events}
}

func TestEngine_RuleAdded_PublishesUninitializedEvent(t *testing.T) {
	tel := syncEventTelemetry(t)

	var mu sync.Mutex
	var statuses []string
	tel.Events.Subscribe(func(event telemetry.Event) {
		mu.Lock()
		statuses = append(statuses, event.Data["new_status"].(string))
		mu.Unlock()
	}, telemetry.FilterByType(telemetry.EventTypeRuleStatusChanged))

	e := newTestEngine(t, newFakeFactory(), Options{Telemetry: tel})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	mu.Lock()
	got := append([]string(nil), statuses...)
	mu.Unlock()

	if len(got) < 2 || got[0] != string(rule.StatusUninitialized) {
		t.Fatalf("Expected the first status event on the bus to be uninitialized, got %v", got)
	}
	if got[1] != string(rule.StatusIdle) {
		t.Errorf("Expected the second status event to be idle, got %v", got)
	}
}

func TestEngine_RuleUpdated_PublishesUninitializedEvent(t *testing.T) {
	tel := syncEventTelemetry(t)
	e := newTestEngine(t, newFakeFactory(), Options{Telemetry: tel})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	var mu sync.Mutex
	var statuses []string
	tel.Events.Subscribe(func(event telemetry.Event) {
		mu.Lock()
		statuses = append(statuses, event.Data["new_status"].(string))
		mu.Unlock()
	}, telemetry.FilterByType(telemetry.EventTypeRuleStatusChanged))

	e.RuleUpdated(testRule("r1"), testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	mu.Lock()
	got := append([]string(nil), statuses...)
	mu.Unlock()

	if len(got) < 1 || got[0] != string(rule.StatusUninitialized) {
		t.Fatalf("Expected an uninitialized status event before reactivation, got %v", got)
	}
}

func TestEngine_CallbackPassThroughs(t *testing.T) {
	factory := newFakeFactory()
	factory.handlers["c1"] = &fakeCondition{
		satisfied: func(map[string]any) bool { return false },
	}
	e := newTestEngine(t, factory, Options{})
	e.RuleAdded(testRule("r1"))
	waitForStatus(t, e, "r1", rule.StatusIdle)

	trigger := factory.trigger("t1")
	trigger.mu.Lock()
	cb := trigger.cb
	trigger.mu.Unlock()
	if cb == nil {
		t.Fatal("Expected the trigger to hold its rule's callback")
	}

	if got := cb.Status(); got != rule.StatusIdle {
		t.Errorf("Expected callback status idle, got %s", got)
	}
	if info := cb.StatusInfo(); info.Status != rule.StatusIdle {
		t.Errorf("Expected callback status info idle, got %+v", info)
	}
	if !cb.IsEnabled() {
		t.Error("Expected callback to report the rule enabled")
	}

	// RunNow through the callback skips the unsatisfied condition.
	if err := cb.RunNow(); err != nil {
		t.Fatalf("Expected RunNow through the callback to succeed, got %v", err)
	}
	if got := factory.action("a1").calls(); got != 1 {
		t.Errorf("Expected 1 action execution, got %d", got)
	}

	// The conditional variant honors the failing condition.
	if err := cb.RunNowWithContext(true, nil); err != nil {
		t.Fatalf("Expected conditional run through the callback to succeed, got %v", err)
	}
	if got := factory.action("a1").calls(); got != 1 {
		t.Errorf("Expected the condition to block the second run, got %d executions", got)
	}

	if err := cb.SetEnabled(false); err != nil {
		t.Fatalf("Expected disable through the callback to succeed, got %v", err)
	}
	waitForStatus(t, e, "r1", rule.StatusDisabled)
	if cb.IsEnabled() {
		t.Error("Expected callback to report the rule disabled")
	}
	if got := cb.Status(); got != rule.StatusDisabled {
		t.Errorf("Expected callback status disabled, got %s", got)
	}
}
