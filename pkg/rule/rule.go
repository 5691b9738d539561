package rule

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Visibility controls whether a rule is shown on user-facing surfaces.
type Visibility string

const (
	// VisibilityVisible is the default visibility.
	VisibilityVisible Visibility = "visible"

	// VisibilityHidden hides the rule from user-facing listings.
	VisibilityHidden Visibility = "hidden"
)

// Validate checks if the visibility is valid.
func (v Visibility) Validate() error {
	switch v {
	case VisibilityVisible, VisibilityHidden:
		return nil
	default:
		return fmt.Errorf("invalid visibility: %s", v)
	}
}

// Rule is a named, tagged collection of triggers, conditions and actions
// plus a rule-level configuration. Rules are created by providers,
// registered with the registry, resolved and validated, and then tracked
// with a status by the engine.
type Rule struct {
	uid                string
	name               string
	description        string
	templateUID        string
	visibility         Visibility
	tags               map[string]struct{}
	configuration      Configuration
	configDescriptions []ConfigDescriptionParameter
	triggers           []*Module
	conditions         []*Module
	actions            []*Module
}

// NewRule creates a rule with the given UID. An empty UID is replaced by
// a generated one.
func NewRule(uid string) *Rule {
	if uid == "" {
		uid = uuid.New().String()
	}
	return &Rule{
		uid:           uid,
		visibility:    VisibilityVisible,
		tags:          map[string]struct{}{},
		configuration: Configuration{},
	}
}

// UID returns the globally unique rule identifier.
func (r *Rule) UID() string { return r.uid }

// Name returns the optional human-readable rule name.
func (r *Rule) Name() string { return r.name }

// SetName sets the rule name.
func (r *Rule) SetName(name string) { r.name = name }

// Description returns the optional rule description.
func (r *Rule) Description() string { return r.description }

// SetDescription sets the rule description.
func (r *Rule) SetDescription(description string) { r.description = description }

// TemplateUID returns the UID of the template this rule is defined by, or
// an empty string for a concrete rule.
func (r *Rule) TemplateUID() string { return r.templateUID }

// SetTemplateUID marks the rule as defined by the given template.
func (r *Rule) SetTemplateUID(templateUID string) { r.templateUID = templateUID }

// Visibility returns the rule visibility.
func (r *Rule) Visibility() Visibility { return r.visibility }

// SetVisibility sets the rule visibility.
func (r *Rule) SetVisibility(v Visibility) { r.visibility = v }

// Tags returns the rule's tags in sorted order.
func (r *Rule) Tags() []string {
	tags := make([]string, 0, len(r.tags))
	for t := range r.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// SetTags replaces the rule's tag set.
func (r *Rule) SetTags(tags ...string) {
	r.tags = make(map[string]struct{}, len(tags))
	for _, t := range tags {
		r.tags[t] = struct{}{}
	}
}

// HasTag reports whether the rule carries the given tag. Matching is
// exact and case-sensitive.
func (r *Rule) HasTag(tag string) bool {
	_, ok := r.tags[tag]
	return ok
}

// HasAllTags reports whether the rule's tag set is a superset of the
// given tags. An empty argument list matches every rule.
func (r *Rule) HasAllTags(tags ...string) bool {
	for _, t := range tags {
		if !r.HasTag(t) {
			return false
		}
	}
	return true
}

// Configuration returns the rule's live configuration.
func (r *Rule) Configuration() Configuration { return r.configuration }

// SetConfiguration replaces the rule configuration. A nil value resets it
// to an empty configuration.
func (r *Rule) SetConfiguration(cfg Configuration) {
	if cfg == nil {
		cfg = Configuration{}
	}
	r.configuration = cfg
}

// ConfigDescriptions returns the declared configuration parameters of the
// rule.
func (r *Rule) ConfigDescriptions() []ConfigDescriptionParameter {
	return r.configDescriptions
}

// SetConfigDescriptions replaces the declared configuration parameters.
func (r *Rule) SetConfigDescriptions(params []ConfigDescriptionParameter) {
	r.configDescriptions = params
}

// Triggers returns the rule's triggers in declaration order.
func (r *Rule) Triggers() []*Module { return r.triggers }

// SetTriggers replaces the rule's trigger list.
func (r *Rule) SetTriggers(triggers ...*Module) { r.triggers = triggers }

// Conditions returns the rule's conditions in declaration order.
func (r *Rule) Conditions() []*Module { return r.conditions }

// SetConditions replaces the rule's condition list.
func (r *Rule) SetConditions(conditions ...*Module) { r.conditions = conditions }

// Actions returns the rule's actions in declaration order.
func (r *Rule) Actions() []*Module { return r.actions }

// SetActions replaces the rule's action list.
func (r *Rule) SetActions(actions ...*Module) { r.actions = actions }

// Modules returns all modules of the rule: triggers, then conditions,
// then actions.
func (r *Rule) Modules() []*Module {
	modules := make([]*Module, 0, len(r.triggers)+len(r.conditions)+len(r.actions))
	modules = append(modules, r.triggers...)
	modules = append(modules, r.conditions...)
	return append(modules, r.actions...)
}

// ModuleByID returns the module with the given id, or nil.
func (r *Rule) ModuleByID(id string) *Module {
	for _, m := range r.Modules() {
		if m.ID() == id {
			return m
		}
	}
	return nil
}

// Copy returns a deep copy of the rule. The registry hands out copies so
// callers can never mutate stored rules in place.
func (r *Rule) Copy() *Rule {
	cp := NewRule(r.uid)
	cp.name = r.name
	cp.description = r.description
	cp.templateUID = r.templateUID
	cp.visibility = r.visibility
	for t := range r.tags {
		cp.tags[t] = struct{}{}
	}
	cp.configuration = r.configuration.Copy()
	if len(r.configDescriptions) > 0 {
		cp.configDescriptions = make([]ConfigDescriptionParameter, len(r.configDescriptions))
		copy(cp.configDescriptions, r.configDescriptions)
	}
	cp.triggers = copyModules(r.triggers)
	cp.conditions = copyModules(r.conditions)
	cp.actions = copyModules(r.actions)
	return cp
}

func copyModules(modules []*Module) []*Module {
	if modules == nil {
		return nil
	}
	cp := make([]*Module, len(modules))
	for i, m := range modules {
		cp[i] = m.Copy()
	}
	return cp
}

// ValidateStructure checks the structural invariants of the rule: every
// module valid on its own and module ids unique across the whole rule.
func (r *Rule) ValidateStructure() error {
	seen := make(map[string]struct{})
	for _, m := range r.Modules() {
		if err := m.Validate(); err != nil {
			if e, ok := err.(*Error); ok {
				return e.WithRule(r.uid)
			}
			return err
		}
		if _, dup := seen[m.ID()]; dup {
			return NewStructureError(
				fmt.Sprintf("duplicate module id %q", m.ID()), nil).
				WithRule(r.uid).WithModule(m.ID())
		}
		seen[m.ID()] = struct{}{}
	}
	return nil
}
