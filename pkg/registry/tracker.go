package registry

import "sync"

// templateTracker records which rules are waiting for which template.
// Rule-add and template-add events race against this table, so all
// access goes through one mutex.
type templateTracker struct {
	mu         sync.Mutex
	byTemplate map[string]map[string]struct{}
}

func newTemplateTracker() *templateTracker {
	return &templateTracker{
		byTemplate: make(map[string]map[string]struct{}),
	}
}

// track records that the rule waits for the template.
func (t *templateTracker) track(templateUID, ruleUID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rules, ok := t.byTemplate[templateUID]
	if !ok {
		rules = make(map[string]struct{})
		t.byTemplate[templateUID] = rules
	}
	rules[ruleUID] = struct{}{}
}

// resolved drops the rule's entry for the template after a successful
// resolution.
func (t *templateTracker) resolved(templateUID, ruleUID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rules, ok := t.byTemplate[templateUID]; ok {
		delete(rules, ruleUID)
		if len(rules) == 0 {
			delete(t.byTemplate, templateUID)
		}
	}
}

// forget drops the rule from every template entry, for rule removal.
func (t *templateTracker) forget(ruleUID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for templateUID, rules := range t.byTemplate {
		delete(rules, ruleUID)
		if len(rules) == 0 {
			delete(t.byTemplate, templateUID)
		}
	}
}

// waiting returns the UIDs of rules waiting for the template.
func (t *templateTracker) waiting(templateUID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	rules, ok := t.byTemplate[templateUID]
	if !ok {
		return nil
	}
	uids := make([]string, 0, len(rules))
	for uid := range rules {
		uids = append(uids, uid)
	}
	return uids
}

// count returns the total number of tracked rules.
func (t *templateTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, rules := range t.byTemplate {
		n += len(rules)
	}
	return n
}
