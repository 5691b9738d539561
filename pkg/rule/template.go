package rule

import "fmt"

// Template is a reusable bundle of triggers, conditions and actions that
// a rule can reference instead of declaring its own modules. A rule
// carrying a template UID is expanded into a concrete rule during
// registration.
type Template struct {
	uid                string
	label              string
	description        string
	visibility         Visibility
	tags               map[string]struct{}
	configDescriptions []ConfigDescriptionParameter
	triggers           []*Module
	conditions         []*Module
	actions            []*Module
}

// NewTemplate creates a template with the given UID.
func NewTemplate(uid string) *Template {
	return &Template{
		uid:        uid,
		visibility: VisibilityVisible,
		tags:       map[string]struct{}{},
	}
}

// UID returns the template identifier.
func (t *Template) UID() string { return t.uid }

// Label returns the human-readable template label.
func (t *Template) Label() string { return t.label }

// SetLabel sets the template label.
func (t *Template) SetLabel(label string) { t.label = label }

// Description returns the template description.
func (t *Template) Description() string { return t.description }

// SetDescription sets the template description.
func (t *Template) SetDescription(description string) { t.description = description }

// Visibility returns the template visibility.
func (t *Template) Visibility() Visibility { return t.visibility }

// SetVisibility sets the template visibility.
func (t *Template) SetVisibility(v Visibility) { t.visibility = v }

// Tags returns the template tags.
func (t *Template) Tags() []string {
	tags := make([]string, 0, len(t.tags))
	for tag := range t.tags {
		tags = append(tags, tag)
	}
	return tags
}

// SetTags replaces the template tag set.
func (t *Template) SetTags(tags ...string) {
	t.tags = make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		t.tags[tag] = struct{}{}
	}
}

// ConfigDescriptions returns the configuration parameters declared by the
// template.
func (t *Template) ConfigDescriptions() []ConfigDescriptionParameter {
	return t.configDescriptions
}

// SetConfigDescriptions replaces the declared configuration parameters.
func (t *Template) SetConfigDescriptions(params []ConfigDescriptionParameter) {
	t.configDescriptions = params
}

// Triggers returns the template's triggers.
func (t *Template) Triggers() []*Module { return t.triggers }

// SetTriggers replaces the template's trigger list.
func (t *Template) SetTriggers(triggers ...*Module) { t.triggers = triggers }

// Conditions returns the template's conditions.
func (t *Template) Conditions() []*Module { return t.conditions }

// SetConditions replaces the template's condition list.
func (t *Template) SetConditions(conditions ...*Module) { t.conditions = conditions }

// Actions returns the template's actions.
func (t *Template) Actions() []*Module { return t.actions }

// SetActions replaces the template's action list.
func (t *Template) SetActions(actions ...*Module) { t.actions = actions }

// Instantiate builds a concrete rule from the template. The given rule's
// UID, name, configuration, tags and visibility win over the template's;
// the modules and configuration descriptions come from the template as
// deep copies. The returned rule no longer references the template.
func (t *Template) Instantiate(r *Rule) (*Rule, error) {
	if r.TemplateUID() != t.uid {
		return nil, NewInternalError(
			fmt.Sprintf("rule references template %q, not %q", r.TemplateUID(), t.uid), nil).
			WithRule(r.UID())
	}
	resolved := NewRule(r.UID())
	resolved.SetName(r.Name())
	resolved.SetDescription(r.Description())
	resolved.SetVisibility(r.Visibility())
	resolved.SetTags(r.Tags()...)
	resolved.SetConfiguration(r.Configuration().Copy())
	if len(t.configDescriptions) > 0 {
		params := make([]ConfigDescriptionParameter, len(t.configDescriptions))
		copy(params, t.configDescriptions)
		resolved.SetConfigDescriptions(params)
	}
	resolved.SetTriggers(copyModules(t.triggers)...)
	resolved.SetConditions(copyModules(t.conditions)...)
	resolved.SetActions(copyModules(t.actions)...)
	return resolved, nil
}
