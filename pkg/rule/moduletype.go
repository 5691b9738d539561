package rule

// Input describes a named input a condition or action module consumes.
type Input struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Label       string `json:"label,omitempty" yaml:"label,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Output describes a named output a trigger or action module produces.
type Output struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Label       string `json:"label,omitempty" yaml:"label,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ModuleType describes a reusable module implementation: its kind, the
// configuration parameters it declares and the inputs and outputs it
// exposes. Module instances reference a module type by UID.
type ModuleType struct {
	UID                string                        `json:"uid" yaml:"uid" validate:"required"`
	Kind               ModuleKind                    `json:"kind" yaml:"kind" validate:"required"`
	Label              string                        `json:"label,omitempty" yaml:"label,omitempty"`
	Description        string                        `json:"description,omitempty" yaml:"description,omitempty"`
	ConfigDescriptions []ConfigDescriptionParameter  `json:"configDescriptions,omitempty" yaml:"configDescriptions,omitempty"`
	Inputs             []Input                       `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs            []Output                      `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// ModuleTypeProvider resolves module type UIDs to their descriptions.
// The configuration resolver uses it to normalize module configuration
// values against the declared parameter types.
type ModuleTypeProvider interface {
	// ModuleType returns the module type with the given UID, or false if
	// the type is unknown.
	ModuleType(uid string) (*ModuleType, bool)
}
