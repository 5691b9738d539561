package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rulekit/rulekit/pkg/rule"
	"github.com/rulekit/rulekit/pkg/telemetry"
)

// entry is a registered rule together with the provider that owns it.
// A nil provider means the rule was added directly through Add.
type entry struct {
	r        *rule.Rule
	provider Provider
}

// Options configures a Registry.
type Options struct {
	// Templates resolves template UIDs. When nil an empty in-memory
	// template registry is used.
	Templates TemplateProvider

	// ModuleTypes resolves module type UIDs for module configuration
	// normalization. Optional.
	ModuleTypes rule.ModuleTypeProvider

	// Telemetry carries the logger, metrics and event publisher. When
	// nil a quiet default is used.
	Telemetry *telemetry.Telemetry
}

// Registry is the authoritative collection of rules. All rules pass
// through template expansion and configuration resolution exactly once
// per add or update, regardless of whether they arrive through Add or
// through an attached provider.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	providers map[string]Provider
	listeners []Listener

	resolver *resolver
	tracker  *templateTracker

	logger  *telemetry.Logger
	events  *telemetry.EventPublisher
	metrics *telemetry.Metrics
}

// New creates a rule registry.
func New(opts Options) *Registry {
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
	templates := opts.Templates
	if templates == nil {
		templates = NewTemplateRegistry()
	}

	tracker := newTemplateTracker()
	logger := tel.Logger.NewComponentLogger("registry")

	reg := &Registry{
		entries:   make(map[string]*entry),
		providers: make(map[string]Provider),
		tracker:   tracker,
		resolver: &resolver{
			templates:   templates,
			moduleTypes: opts.ModuleTypes,
			tracker:     tracker,
			logger:      logger,
			metrics:     tel.Metrics,
		},
		logger:  logger,
		events:  tel.Events,
		metrics: tel.Metrics,
	}

	templates.Subscribe(reg)
	return reg
}

// Subscribe registers a listener for registry changes.
func (reg *Registry) Subscribe(listener Listener) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.listeners = append(reg.listeners, listener)
}

// Add registers a rule directly with the registry. The rule passes
// through template expansion and configuration resolution; resolution
// failures propagate to the caller. The returned rule is a copy of the
// stored, resolved rule.
func (reg *Registry) Add(r *rule.Rule) (*rule.Rule, error) {
	if r == nil {
		return nil, rule.NewStructureError("rule must not be nil", nil)
	}
	if err := r.ValidateStructure(); err != nil {
		return nil, err
	}

	resolved, _, err := reg.resolver.resolveRule(r.Copy())
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	if _, exists := reg.entries[resolved.UID()]; exists {
		reg.mu.Unlock()
		return nil, rule.NewStructureError(
			fmt.Sprintf("rule with UID %q is already registered", resolved.UID()), nil)
	}
	reg.entries[resolved.UID()] = &entry{r: resolved}
	stored, ok := reg.entries[resolved.UID()]
	listeners := reg.snapshotListeners()
	count := len(reg.entries)
	reg.mu.Unlock()

	if !ok {
		// The entry disappeared between insert and read-back. Another
		// path removed it concurrently; surface that instead of
		// returning a rule the registry no longer holds.
		return nil, rule.NewInternalError(
			fmt.Sprintf("rule %q vanished after insert", resolved.UID()), nil)
	}

	reg.metrics.SetRulesManaged(float64(count))
	_ = reg.events.PublishRuleAdded(resolved.UID(), "")
	for _, l := range listeners {
		l.RuleAdded(stored.r.Copy())
	}
	return stored.r.Copy(), nil
}

// Get returns a copy of the rule with the given UID, or nil.
func (reg *Registry) Get(uid string) *rule.Rule {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if e, ok := reg.entries[uid]; ok {
		return e.r.Copy()
	}
	return nil
}

// All returns copies of every registered rule, sorted by UID.
func (reg *Registry) All() []*rule.Rule {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	all := make([]*rule.Rule, 0, len(reg.entries))
	for _, e := range reg.entries {
		all = append(all, e.r.Copy())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UID() < all[j].UID() })
	return all
}

// ByTag returns copies of the rules carrying the given tag. An empty
// tag matches every rule.
func (reg *Registry) ByTag(tag string) []*rule.Rule {
	if tag == "" {
		return reg.All()
	}
	return reg.ByTags(tag)
}

// ByTags returns copies of the rules whose tag set is a superset of the
// given tags. No tags matches every rule.
func (reg *Registry) ByTags(tags ...string) []*rule.Rule {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var matched []*rule.Rule
	for _, e := range reg.entries {
		if e.r.HasAllTags(tags...) {
			matched = append(matched, e.r.Copy())
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UID() < matched[j].UID() })
	return matched
}

// Update replaces a registered rule. The UID must match an existing
// entry. The replacement passes through template and configuration
// resolution before it is applied.
func (reg *Registry) Update(r *rule.Rule) (*rule.Rule, error) {
	if r == nil {
		return nil, rule.NewStructureError("rule must not be nil", nil)
	}
	if err := r.ValidateStructure(); err != nil {
		return nil, err
	}

	reg.mu.RLock()
	_, exists := reg.entries[r.UID()]
	reg.mu.RUnlock()
	if !exists {
		return nil, rule.NewNotFoundError(
			fmt.Sprintf("no rule with UID %q is registered", r.UID()), nil)
	}

	resolved, _, err := reg.resolver.resolveRule(r.Copy())
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	old, exists := reg.entries[resolved.UID()]
	if !exists {
		reg.mu.Unlock()
		return nil, rule.NewNotFoundError(
			fmt.Sprintf("no rule with UID %q is registered", resolved.UID()), nil)
	}
	previous := old.r
	reg.entries[resolved.UID()] = &entry{r: resolved, provider: old.provider}
	listeners := reg.snapshotListeners()
	reg.mu.Unlock()

	_ = reg.events.PublishRuleUpdated(resolved.UID())
	for _, l := range listeners {
		l.RuleUpdated(previous.Copy(), resolved.Copy())
	}
	return resolved.Copy(), nil
}

// Remove deletes the rule with the given UID. It reports whether a rule
// was removed. Removing a template-based rule also drops its entry from
// the template tracking table.
func (reg *Registry) Remove(uid string) bool {
	reg.mu.Lock()
	e, exists := reg.entries[uid]
	if exists {
		delete(reg.entries, uid)
	}
	listeners := reg.snapshotListeners()
	count := len(reg.entries)
	reg.mu.Unlock()

	if !exists {
		return false
	}

	reg.tracker.forget(uid)
	reg.metrics.SetRulesManaged(float64(count))
	reg.metrics.SetUnresolvedRules(float64(reg.tracker.count()))
	_ = reg.events.PublishRuleRemoved(uid)
	for _, l := range listeners {
		l.RuleRemoved(e.r.Copy())
	}
	return true
}

// AttachProvider registers a provider and passes every rule it
// currently offers through resolution. Resolution failures are logged
// per rule and do not abort the attach; the unresolved rule stays
// registered so its status can reflect the failure. The registry
// subscribes to the provider for subsequent changes.
func (reg *Registry) AttachProvider(p Provider) error {
	reg.mu.Lock()
	if _, exists := reg.providers[p.Name()]; exists {
		reg.mu.Unlock()
		return rule.NewStructureError(
			fmt.Sprintf("provider %q is already attached", p.Name()), nil)
	}
	reg.providers[p.Name()] = p
	reg.mu.Unlock()

	rules := p.Rules()
	for _, r := range rules {
		reg.addFromProvider(p, r)
	}
	p.Subscribe(reg)

	reg.metrics.SetProviderRules(p.Name(), float64(len(rules)))
	_ = reg.events.PublishProviderAttached(p.Name(), len(rules))
	reg.logger.WithProvider(p.Name()).Infof("Provider attached with %d rules", len(rules))
	return nil
}

// DetachProvider removes a provider and every rule it contributed.
func (reg *Registry) DetachProvider(p Provider) {
	reg.mu.Lock()
	delete(reg.providers, p.Name())
	var removed []*rule.Rule
	for uid, e := range reg.entries {
		if e.provider == p {
			removed = append(removed, e.r)
			delete(reg.entries, uid)
		}
	}
	listeners := reg.snapshotListeners()
	count := len(reg.entries)
	reg.mu.Unlock()

	for _, r := range removed {
		reg.tracker.forget(r.UID())
		_ = reg.events.PublishRuleRemoved(r.UID())
		for _, l := range listeners {
			l.RuleRemoved(r.Copy())
		}
	}
	reg.metrics.SetRulesManaged(float64(count))
	reg.metrics.SetProviderRules(p.Name(), 0)
}

// OnRuleAdded implements ProviderListener.
func (reg *Registry) OnRuleAdded(p Provider, r *rule.Rule) {
	reg.addFromProvider(p, r)
}

// OnRuleUpdated implements ProviderListener.
func (reg *Registry) OnRuleUpdated(p Provider, old, updated *rule.Rule) {
	if err := updated.ValidateStructure(); err != nil {
		reg.logger.WithProvider(p.Name()).WithRuleUID(updated.UID()).WithError(err).
			Warn("Rejecting invalid rule update from provider")
		return
	}

	resolved, _, err := reg.resolver.resolveRule(updated.Copy())
	if err != nil {
		reg.logger.WithProvider(p.Name()).WithRuleUID(updated.UID()).WithError(err).
			Warn("Rule update failed resolution, storing unresolved")
		resolved = updated.Copy()
	}

	reg.mu.Lock()
	e, exists := reg.entries[resolved.UID()]
	var previous *rule.Rule
	if exists {
		previous = e.r
	}
	reg.entries[resolved.UID()] = &entry{r: resolved, provider: p}
	listeners := reg.snapshotListeners()
	reg.mu.Unlock()

	if previous == nil {
		_ = reg.events.PublishRuleAdded(resolved.UID(), p.Name())
		for _, l := range listeners {
			l.RuleAdded(resolved.Copy())
		}
		return
	}
	_ = reg.events.PublishRuleUpdated(resolved.UID())
	for _, l := range listeners {
		l.RuleUpdated(previous.Copy(), resolved.Copy())
	}
}

// OnRuleRemoved implements ProviderListener.
func (reg *Registry) OnRuleRemoved(p Provider, r *rule.Rule) {
	reg.Remove(r.UID())
}

// TemplateAdded implements TemplateListener. Every rule waiting for the
// template is re-resolved; failures are logged per rule and do not
// abort the batch.
func (reg *Registry) TemplateAdded(t *rule.Template) {
	waiting := reg.tracker.waiting(t.UID())
	if len(waiting) == 0 {
		return
	}
	reg.logger.WithTemplateUID(t.UID()).
		Infof("Template available, re-resolving %d rules", len(waiting))

	for _, uid := range waiting {
		reg.reresolveRule(uid, t.UID())
	}
	reg.metrics.SetUnresolvedRules(float64(reg.tracker.count()))
}

// TemplateUpdated implements TemplateListener. Already-resolved rules
// are independent of their template, so updates are a no-op.
func (reg *Registry) TemplateUpdated(t *rule.Template) {}

// TemplateRemoved implements TemplateListener. A no-op for the same
// reason as TemplateUpdated.
func (reg *Registry) TemplateRemoved(uid string) {}

// reresolveRule re-runs template resolution for one tracked rule after
// its template became available.
func (reg *Registry) reresolveRule(uid, templateUID string) {
	reg.mu.RLock()
	e, exists := reg.entries[uid]
	var unresolved *rule.Rule
	var p Provider
	if exists {
		unresolved = e.r.Copy()
		p = e.provider
	}
	reg.mu.RUnlock()
	if !exists {
		reg.tracker.resolved(templateUID, uid)
		return
	}

	resolved, changed, err := reg.resolver.resolveRuleByTemplate(unresolved)
	if err != nil {
		reg.logger.WithRuleUID(uid).WithTemplateUID(templateUID).WithError(err).
			Warn("Template re-resolution failed")
		return
	}
	if !changed {
		return
	}

	_ = reg.events.PublishTemplateResolved(uid, templateUID)

	// A managed provider persists the resolved rule; its update
	// notification flows back through OnRuleUpdated. Non-managed
	// providers own their storage, so the substitution is applied in
	// place and listeners are notified directly.
	if managed, ok := p.(ManagedProvider); ok {
		if err := managed.Update(resolved); err != nil {
			reg.logger.WithRuleUID(uid).WithProvider(p.Name()).WithError(err).
				Warn("Failed to persist resolved rule")
		}
		return
	}

	reg.mu.Lock()
	current, exists := reg.entries[uid]
	var previous *rule.Rule
	if exists {
		previous = current.r
		reg.entries[uid] = &entry{r: resolved, provider: p}
	}
	listeners := reg.snapshotListeners()
	reg.mu.Unlock()
	if !exists {
		return
	}

	_ = reg.events.PublishRuleUpdated(uid)
	for _, l := range listeners {
		l.RuleUpdated(previous.Copy(), resolved.Copy())
	}
}

// addFromProvider registers one rule offered by a provider. Unlike an
// explicit Add, resolution failures do not reject the rule: it is
// stored unresolved so the engine can report its status, and the
// failure is logged.
func (reg *Registry) addFromProvider(p Provider, r *rule.Rule) {
	if err := r.ValidateStructure(); err != nil {
		reg.logger.WithProvider(p.Name()).WithRuleUID(r.UID()).WithError(err).
			Warn("Rejecting structurally invalid rule from provider")
		reg.metrics.RecordProviderError(p.Name())
		return
	}

	resolved, changed, err := reg.resolver.resolveRule(r.Copy())
	if err != nil {
		reg.logger.WithProvider(p.Name()).WithRuleUID(r.UID()).WithError(err).
			Warn("Rule failed resolution, storing unresolved")
		reg.metrics.RecordError(string(rule.ClassInvalidConfiguration))
		resolved = r.Copy()
		changed = false
	}

	reg.mu.Lock()
	if existing, exists := reg.entries[resolved.UID()]; exists {
		reg.mu.Unlock()
		owner := "registry"
		if existing.provider != nil {
			owner = existing.provider.Name()
		}
		reg.logger.WithProvider(p.Name()).WithRuleUID(resolved.UID()).
			Warnf("Duplicate rule UID, already provided by %s", owner)
		reg.metrics.RecordProviderError(p.Name())
		return
	}
	reg.entries[resolved.UID()] = &entry{r: resolved, provider: p}
	listeners := reg.snapshotListeners()
	count := len(reg.entries)
	reg.mu.Unlock()

	// Persist the expanded form when the provider is mutable. The
	// provider's update notification re-enters through OnRuleUpdated
	// with the already-resolved rule, which resolves idempotently.
	if changed {
		if managed, ok := p.(ManagedProvider); ok {
			if err := managed.Update(resolved.Copy()); err != nil {
				reg.logger.WithProvider(p.Name()).WithRuleUID(resolved.UID()).WithError(err).
					Warn("Failed to persist resolved rule")
			}
		}
	}

	reg.metrics.SetRulesManaged(float64(count))
	_ = reg.events.PublishRuleAdded(resolved.UID(), p.Name())
	for _, l := range listeners {
		l.RuleAdded(resolved.Copy())
	}
}

// snapshotListeners must be called with reg.mu held.
func (reg *Registry) snapshotListeners() []Listener {
	snapshot := make([]Listener, len(reg.listeners))
	copy(snapshot, reg.listeners)
	return snapshot
}
