package registry

import "github.com/rulekit/rulekit/pkg/rule"

// Provider offers rules to the registry. Providers own their rules'
// storage; the registry only mirrors them. A provider notifies its
// subscribed listeners when its rule set changes.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Rules returns the rules the provider currently offers.
	Rules() []*rule.Rule

	// Subscribe registers a listener for provider changes. Providers
	// must support multiple listeners.
	Subscribe(listener ProviderListener)
}

// ManagedProvider is a provider whose contents the registry itself can
// mutate, for example to persist a template-resolved rule.
type ManagedProvider interface {
	Provider

	// Add stores a new rule with the provider.
	Add(r *rule.Rule) error

	// Update replaces a stored rule. The UID must already exist.
	Update(r *rule.Rule) error

	// Remove deletes the rule with the given UID. Removing an unknown
	// UID is a no-op.
	Remove(uid string) error
}

// ProviderListener receives change notifications from a provider.
type ProviderListener interface {
	// OnRuleAdded is called when the provider starts offering a rule.
	OnRuleAdded(p Provider, r *rule.Rule)

	// OnRuleUpdated is called when the provider replaces a rule.
	OnRuleUpdated(p Provider, old, updated *rule.Rule)

	// OnRuleRemoved is called when the provider stops offering a rule.
	OnRuleRemoved(p Provider, r *rule.Rule)
}

// Listener receives change notifications from the registry itself, after
// template expansion and configuration resolution have been applied.
// The engine subscribes here to activate and deactivate rules.
type Listener interface {
	// RuleAdded is called after a rule has been registered.
	RuleAdded(r *rule.Rule)

	// RuleUpdated is called after a registered rule has been replaced.
	RuleUpdated(old, updated *rule.Rule)

	// RuleRemoved is called after a rule has been removed.
	RuleRemoved(r *rule.Rule)
}

// TemplateProvider resolves template UIDs and notifies a listener when
// templates appear. Template updates and removals do not affect already
// resolved rules, so only additions matter to the registry.
type TemplateProvider interface {
	// Template returns the template with the given UID, or false if it
	// is not (yet) available.
	Template(uid string) (*rule.Template, bool)

	// Subscribe registers a listener for template changes.
	Subscribe(listener TemplateListener)
}

// TemplateListener receives change notifications from a template
// provider.
type TemplateListener interface {
	// TemplateAdded is called when a template becomes available.
	TemplateAdded(t *rule.Template)

	// TemplateUpdated is called when a template is replaced.
	TemplateUpdated(t *rule.Template)

	// TemplateRemoved is called when a template is deleted.
	TemplateRemoved(uid string)
}
