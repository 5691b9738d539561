package rule

import (
	"fmt"
	"strings"
)

// ModuleKind discriminates the three module variants of a rule.
type ModuleKind string

const (
	// KindTrigger marks a module that starts rule execution when it fires.
	KindTrigger ModuleKind = "trigger"

	// KindCondition marks a module that gates execution of the actions.
	KindCondition ModuleKind = "condition"

	// KindAction marks a module executed when all conditions are satisfied.
	KindAction ModuleKind = "action"
)

// Validate checks if the module kind is valid.
func (k ModuleKind) Validate() error {
	switch k {
	case KindTrigger, KindCondition, KindAction:
		return nil
	default:
		return fmt.Errorf("invalid module kind: %s", k)
	}
}

// Module is one trigger, condition or action of a rule. The kind
// discriminator selects the variant; condition and action modules
// additionally carry an input wiring map, triggers never do.
//
// A module is owned by exactly one rule. Mutating a module after its rule
// has been registered has no effect on a running rule until the rule is
// re-submitted through the registry's update path.
type Module struct {
	kind        ModuleKind
	id          string
	typeUID     string
	label       string
	description string
	config      Configuration
	inputs      map[string]string
}

// NewTrigger creates a trigger module. A nil configuration defaults to an
// empty one.
func NewTrigger(id, typeUID string, cfg Configuration) *Module {
	return newModule(KindTrigger, id, typeUID, cfg, nil)
}

// NewCondition creates a condition module. The inputs map wires this
// module's input names to `<moduleId>.<outputName>` references and is
// copied; it cannot be changed after construction.
func NewCondition(id, typeUID string, cfg Configuration, inputs map[string]string) *Module {
	return newModule(KindCondition, id, typeUID, cfg, inputs)
}

// NewAction creates an action module. The inputs map is copied; it cannot
// be changed after construction.
func NewAction(id, typeUID string, cfg Configuration, inputs map[string]string) *Module {
	return newModule(KindAction, id, typeUID, cfg, inputs)
}

func newModule(kind ModuleKind, id, typeUID string, cfg Configuration, inputs map[string]string) *Module {
	if cfg == nil {
		cfg = Configuration{}
	}
	m := &Module{
		kind:    kind,
		id:      id,
		typeUID: typeUID,
		config:  cfg,
	}
	if kind != KindTrigger && len(inputs) > 0 {
		m.inputs = make(map[string]string, len(inputs))
		for k, v := range inputs {
			m.inputs[k] = v
		}
	}
	return m
}

// Kind returns the module variant.
func (m *Module) Kind() ModuleKind { return m.kind }

// ID returns the module id, unique within the owning rule.
func (m *Module) ID() string { return m.id }

// TypeUID returns the UID of the module type metadata describing this
// module's inputs, outputs and configuration parameters.
func (m *Module) TypeUID() string { return m.typeUID }

// Label returns the optional human-readable label.
func (m *Module) Label() string { return m.label }

// SetLabel sets the human-readable label.
func (m *Module) SetLabel(label string) { m.label = label }

// Description returns the optional human-readable description.
func (m *Module) Description() string { return m.description }

// SetDescription sets the human-readable description.
func (m *Module) SetDescription(description string) { m.description = description }

// Configuration returns the module's live configuration. Callers may
// mutate it; changes only take effect on a registered rule after the
// rule is re-submitted through the registry.
func (m *Module) Configuration() Configuration { return m.config }

// SetConfiguration replaces the module configuration. A nil value resets
// it to an empty configuration.
func (m *Module) SetConfiguration(cfg Configuration) {
	if cfg == nil {
		cfg = Configuration{}
	}
	m.config = cfg
}

// Inputs returns a copy of the input wiring map. Triggers have none.
func (m *Module) Inputs() map[string]string {
	if len(m.inputs) == 0 {
		return nil
	}
	cp := make(map[string]string, len(m.inputs))
	for k, v := range m.inputs {
		cp[k] = v
	}
	return cp
}

// Copy returns a deep copy of the module.
func (m *Module) Copy() *Module {
	cp := newModule(m.kind, m.id, m.typeUID, m.config.Copy(), m.inputs)
	cp.label = m.label
	cp.description = m.description
	return cp
}

// Validate checks the structural invariants of a single module: a
// non-empty id without dots, a non-empty type UID and correctly shaped
// input references.
func (m *Module) Validate() error {
	if m.id == "" {
		return NewStructureError("module id must not be empty", nil)
	}
	if strings.Contains(m.id, OutputSeparator) {
		return NewStructureError(
			fmt.Sprintf("module id %q must not contain %q", m.id, OutputSeparator), nil).
			WithModule(m.id)
	}
	if m.typeUID == "" {
		return NewStructureError("module type UID must not be empty", nil).WithModule(m.id)
	}
	if err := m.kind.Validate(); err != nil {
		return NewStructureError(err.Error(), nil).WithModule(m.id)
	}
	for name, ref := range m.inputs {
		if name == "" || ref == "" {
			return NewStructureError(
				fmt.Sprintf("input wiring of module %q must not have empty names or references", m.id), nil).
				WithModule(m.id)
		}
	}
	return nil
}

// OutputSeparator separates module id and output name in wiring
// references and execution context keys.
const OutputSeparator = "."

// ParseOutputRef splits a `<moduleId>.<outputName>` wiring reference.
func ParseOutputRef(ref string) (moduleID, outputName string, err error) {
	idx := strings.Index(ref, OutputSeparator)
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", fmt.Errorf("invalid output reference %q: expected <moduleId>.<outputName>", ref)
	}
	return ref[:idx], ref[idx+1:], nil
}
