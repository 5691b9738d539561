package engine

import (
	"sync"

	"github.com/rulekit/rulekit/pkg/rule"
)

// callback is the per-rule trigger sink handed to every trigger
// handler of an active rule. Firings from any trigger are funneled
// through the rule's sequencer, so concurrent firings for the same
// rule execute its module chain strictly one at a time while distinct
// rules run independently.
type callback struct {
	engine  *Engine
	ruleUID string
	seq     sequencer

	mu       sync.Mutex
	disposed bool
}

func newCallback(e *Engine, ruleUID string, seq sequencer) *callback {
	return &callback{engine: e, ruleUID: ruleUID, seq: seq}
}

// Triggered enqueues one rule execution and returns without waiting
// for it. Firings that arrive while the queue is full are dropped and
// counted.
func (c *callback) Triggered(triggerID string, outputs map[string]any) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// Copy trigger outputs so a handler reusing its map cannot race
	// the queued execution.
	copied := make(map[string]any, len(outputs))
	for k, v := range outputs {
		copied[k] = v
	}

	ok := c.seq.submit(func() {
		c.engine.runRule(c.ruleUID, triggerID, copied, true)
	})
	if !ok {
		c.engine.recordDroppedTrigger(c.ruleUID, triggerID)
	}
}

// isRunning reports whether an execution for this rule is queued or in
// flight.
func (c *callback) isRunning() bool {
	return c.seq.running()
}

// SetEnabled enables or disables the callback's rule.
func (c *callback) SetEnabled(enabled bool) error {
	return c.engine.SetEnabled(c.ruleUID, enabled)
}

// IsEnabled reports whether the callback's rule is enabled.
func (c *callback) IsEnabled() bool {
	return c.engine.IsEnabled(c.ruleUID)
}

// Status returns the current status of the callback's rule.
func (c *callback) Status() rule.Status {
	return c.StatusInfo().Status
}

// StatusInfo returns the current status info of the callback's rule.
func (c *callback) StatusInfo() rule.StatusInfo {
	info, _ := c.engine.Status(c.ruleUID)
	return info
}

// RunNow executes the callback's rule immediately, skipping its
// conditions.
func (c *callback) RunNow() error {
	return c.engine.RunNow(c.ruleUID)
}

// RunNowWithContext executes the callback's rule immediately with extra
// run context entries, optionally evaluating its conditions first.
func (c *callback) RunNowWithContext(considerConditions bool, extra map[string]any) error {
	return c.engine.RunNowWithContext(c.ruleUID, considerConditions, extra)
}

// dispose detaches the callback from the engine and releases the
// sequencer. Idempotent; firings arriving afterwards are ignored.
func (c *callback) dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.mu.Unlock()

	c.seq.dispose()
}

var _ TriggerCallback = (*callback)(nil)

// outputKey names a trigger or module output in a run's context map.
func outputKey(moduleID, name string) string {
	return moduleID + "." + name
}

// resolveInputs maps a module's declared input references onto values
// from the run context. References use "moduleID.outputName" form;
// inputs whose reference has no value yet are simply absent.
func resolveInputs(m *rule.Module, runContext map[string]any) map[string]any {
	inputs := m.Inputs()
	if len(inputs) == 0 {
		return nil
	}
	resolved := make(map[string]any, len(inputs))
	for name, ref := range inputs {
		if v, ok := runContext[ref]; ok {
			resolved[name] = v
		}
	}
	return resolved
}
