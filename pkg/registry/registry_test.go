package registry

import (
	"testing"

	"github.com/rulekit/rulekit/pkg/rule"
)

type fakeProvider struct {
	name      string
	rules     []*rule.Rule
	listeners []ProviderListener
}

func (p *fakeProvider) Name() string                        { return p.name }
func (p *fakeProvider) Rules() []*rule.Rule                 { return p.rules }
func (p *fakeProvider) Subscribe(listener ProviderListener) { p.listeners = append(p.listeners, listener) }

func (p *fakeProvider) add(r *rule.Rule) {
	p.rules = append(p.rules, r)
	for _, l := range p.listeners {
		l.OnRuleAdded(p, r)
	}
}

func (p *fakeProvider) remove(r *rule.Rule) {
	for i, existing := range p.rules {
		if existing.UID() == r.UID() {
			p.rules = append(p.rules[:i], p.rules[i+1:]...)
			break
		}
	}
	for _, l := range p.listeners {
		l.OnRuleRemoved(p, r)
	}
}

type fakeManagedProvider struct {
	fakeProvider
	updated []*rule.Rule
}

func (p *fakeManagedProvider) Add(r *rule.Rule) error { p.rules = append(p.rules, r); return nil }

func (p *fakeManagedProvider) Update(r *rule.Rule) error {
	p.updated = append(p.updated, r)
	for i, existing := range p.rules {
		if existing.UID() == r.UID() {
			old := p.rules[i]
			p.rules[i] = r
			for _, l := range p.listeners {
				l.OnRuleUpdated(p, old, r)
			}
			return nil
		}
	}
	p.rules = append(p.rules, r)
	return nil
}

func (p *fakeManagedProvider) Remove(uid string) error {
	for i, existing := range p.rules {
		if existing.UID() == uid {
			p.rules = append(p.rules[:i], p.rules[i+1:]...)
			return nil
		}
	}
	return nil
}

type recordingListener struct {
	added   []*rule.Rule
	updated []*rule.Rule
	removed []*rule.Rule
}

func (l *recordingListener) RuleAdded(r *rule.Rule)              { l.added = append(l.added, r) }
func (l *recordingListener) RuleUpdated(old, updated *rule.Rule) { l.updated = append(l.updated, updated) }
func (l *recordingListener) RuleRemoved(r *rule.Rule)            { l.removed = append(l.removed, r) }

func simpleRule(uid string) *rule.Rule {
	r := rule.NewRule(uid)
	r.SetTriggers(rule.NewTrigger("t1", "core.cron", rule.Configuration{"cron": "* * * * *"}))
	r.SetActions(rule.NewAction("a1", "core.log", rule.Configuration{"msg": "hi"}, nil))
	return r
}

func TestRegistry_Add_ReturnsStoredCopy(t *testing.T) {
	reg := New(Options{})

	stored, err := reg.Add(simpleRule("r1"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stored.UID() != "r1" {
		t.Errorf("Expected stored UID r1, got %s", stored.UID())
	}

	// Mutating the returned copy must not affect the registry.
	stored.SetName("mutated")
	if got := reg.Get("r1"); got.Name() == "mutated" {
		t.Error("Expected registry to hand out copies, mutation leaked in")
	}
}

func TestRegistry_Add_DuplicateUID(t *testing.T) {
	reg := New(Options{})

	if _, err := reg.Add(simpleRule("r1")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := reg.Add(simpleRule("r1")); err == nil {
		t.Error("Expected error for duplicate rule UID")
	}
}

func TestRegistry_Add_ConfigurationFailurePropagates(t *testing.T) {
	reg := New(Options{})

	r := simpleRule("r1")
	r.SetConfigDescriptions([]rule.ConfigDescriptionParameter{
		{Name: "host", Type: rule.ParameterText, Required: true},
	})

	if _, err := reg.Add(r); err == nil {
		t.Fatal("Expected explicit add to propagate a configuration error")
	}
	if reg.Get("r1") != nil {
		t.Error("Expected rejected rule not to be registered")
	}
}

func TestRegistry_Add_ResolvesReferences(t *testing.T) {
	reg := New(Options{})

	r := rule.NewRule("r1")
	r.SetConfigDescriptions([]rule.ConfigDescriptionParameter{
		{Name: "item", Type: rule.ParameterText, Required: true},
	})
	r.SetConfiguration(rule.Configuration{"item": "light1"})
	r.SetTriggers(rule.NewTrigger("t1", "core.itemchange", rule.Configuration{"item": "${item}"}))
	r.SetActions(rule.NewAction("a1", "core.command", rule.Configuration{"target": "${item}"}, nil))

	stored, err := reg.Add(r)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if v, _ := stored.Triggers()[0].Configuration().Get("item"); v != "light1" {
		t.Errorf("Expected trigger reference resolved to light1, got %v", v)
	}
	if v, _ := stored.Actions()[0].Configuration().Get("target"); v != "light1" {
		t.Errorf("Expected action reference resolved to light1, got %v", v)
	}
}

func TestRegistry_ByTags_SupersetMatching(t *testing.T) {
	reg := New(Options{})

	r1 := simpleRule("r1")
	r1.SetTags("light", "kitchen")
	r2 := simpleRule("r2")
	r2.SetTags("light")

	if _, err := reg.Add(r1); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := reg.Add(r2); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := reg.ByTags("light"); len(got) != 2 {
		t.Errorf("Expected 2 rules tagged light, got %d", len(got))
	}
	if got := reg.ByTags("light", "kitchen"); len(got) != 1 || got[0].UID() != "r1" {
		t.Errorf("Expected only r1 to match both tags, got %d rules", len(got))
	}
	if got := reg.ByTags(); len(got) != 2 {
		t.Errorf("Expected no tags to match every rule, got %d", len(got))
	}
	if got := reg.ByTag("garage"); len(got) != 0 {
		t.Errorf("Expected no rules tagged garage, got %d", len(got))
	}
}

func TestRegistry_Update_RequiresExistingUID(t *testing.T) {
	reg := New(Options{})

	if _, err := reg.Update(simpleRule("ghost")); err == nil {
		t.Fatal("Expected error updating an unknown rule")
	} else if !rule.IsNotFound(err) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
}

func TestRegistry_Update_NotifiesListeners(t *testing.T) {
	reg := New(Options{})
	listener := &recordingListener{}
	reg.Subscribe(listener)

	if _, err := reg.Add(simpleRule("r1")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	updated := simpleRule("r1")
	updated.SetName("renamed")
	if _, err := reg.Update(updated); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(listener.updated) != 1 {
		t.Fatalf("Expected 1 update notification, got %d", len(listener.updated))
	}
	if listener.updated[0].Name() != "renamed" {
		t.Errorf("Expected updated rule name renamed, got %q", listener.updated[0].Name())
	}
	if got := reg.Get("r1"); got.Name() != "renamed" {
		t.Errorf("Expected stored rule renamed, got %q", got.Name())
	}
}

func TestRegistry_Remove(t *testing.T) {
	reg := New(Options{})
	listener := &recordingListener{}
	reg.Subscribe(listener)

	if _, err := reg.Add(simpleRule("r1")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !reg.Remove("r1") {
		t.Error("Expected Remove to report true for a registered rule")
	}
	if reg.Get("r1") != nil {
		t.Error("Expected rule gone after Remove")
	}
	if len(listener.removed) != 1 {
		t.Errorf("Expected 1 removal notification, got %d", len(listener.removed))
	}
	if reg.Remove("r1") {
		t.Error("Expected Remove to report false for an unknown rule")
	}
}

func TestRegistry_AttachProvider_RegistersRules(t *testing.T) {
	reg := New(Options{})
	listener := &recordingListener{}
	reg.Subscribe(listener)

	p := &fakeProvider{name: "test", rules: []*rule.Rule{simpleRule("r1"), simpleRule("r2")}}
	if err := reg.AttachProvider(p); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(reg.All()) != 2 {
		t.Errorf("Expected 2 registered rules, got %d", len(reg.All()))
	}
	if len(listener.added) != 2 {
		t.Errorf("Expected 2 add notifications, got %d", len(listener.added))
	}

	// Subsequent provider changes flow through the subscription.
	p.add(simpleRule("r3"))
	if reg.Get("r3") == nil {
		t.Error("Expected rule added by provider after attach to be registered")
	}
	p.remove(p.rules[0])
	if reg.Get("r1") != nil {
		t.Error("Expected rule removed by provider to be unregistered")
	}
}

func TestRegistry_AttachProvider_DuplicateUIDFirstWins(t *testing.T) {
	reg := New(Options{})

	first := simpleRule("r1")
	first.SetName("first")
	second := simpleRule("r1")
	second.SetName("second")

	if err := reg.AttachProvider(&fakeProvider{name: "a", rules: []*rule.Rule{first}}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := reg.AttachProvider(&fakeProvider{name: "b", rules: []*rule.Rule{second}}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := reg.Get("r1"); got.Name() != "first" {
		t.Errorf("Expected first provider's rule to win, got %q", got.Name())
	}
}

func TestRegistry_DetachProvider_RemovesItsRules(t *testing.T) {
	reg := New(Options{})

	p := &fakeProvider{name: "test", rules: []*rule.Rule{simpleRule("r1")}}
	if err := reg.AttachProvider(p); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := reg.Add(simpleRule("direct")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	reg.DetachProvider(p)
	if reg.Get("r1") != nil {
		t.Error("Expected provider rule gone after detach")
	}
	if reg.Get("direct") == nil {
		t.Error("Expected directly added rule to survive provider detach")
	}
}

func TestRegistry_ProviderConfigFailureKeepsRule(t *testing.T) {
	reg := New(Options{})

	r := simpleRule("r1")
	r.SetConfigDescriptions([]rule.ConfigDescriptionParameter{
		{Name: "host", Type: rule.ParameterText, Required: true},
	})

	p := &fakeProvider{name: "test", rules: []*rule.Rule{r}}
	if err := reg.AttachProvider(p); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Provider-scan adds keep the unresolved rule registered so the
	// engine can report its status.
	if reg.Get("r1") == nil {
		t.Error("Expected unresolved provider rule to stay registered")
	}
}
