package rule

// ModuleDocument is the serialized form of one module. The module kind
// is implied by the document section the module appears in.
type ModuleDocument struct {
	ID            string            `json:"id" yaml:"id" validate:"required"`
	Type          string            `json:"type" yaml:"type" validate:"required"`
	Label         string            `json:"label,omitempty" yaml:"label,omitempty"`
	Description   string            `json:"description,omitempty" yaml:"description,omitempty"`
	Configuration map[string]any    `json:"configuration,omitempty" yaml:"configuration,omitempty"`
	Inputs        map[string]string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// Document is the serialized form of a rule, used by file providers and
// the store. It round-trips through JSON and YAML.
type Document struct {
	UID           string                       `json:"uid,omitempty" yaml:"uid,omitempty"`
	Name          string                       `json:"name,omitempty" yaml:"name,omitempty"`
	Description   string                       `json:"description,omitempty" yaml:"description,omitempty"`
	Template      string                       `json:"template,omitempty" yaml:"template,omitempty"`
	Visibility    string                       `json:"visibility,omitempty" yaml:"visibility,omitempty" validate:"omitempty,oneof=visible hidden"`
	Tags          []string                     `json:"tags,omitempty" yaml:"tags,omitempty"`
	Configuration map[string]any               `json:"configuration,omitempty" yaml:"configuration,omitempty"`
	Parameters    []ConfigDescriptionParameter `json:"parameters,omitempty" yaml:"parameters,omitempty" validate:"dive"`
	Triggers      []ModuleDocument             `json:"triggers,omitempty" yaml:"triggers,omitempty" validate:"dive"`
	Conditions    []ModuleDocument             `json:"conditions,omitempty" yaml:"conditions,omitempty" validate:"dive"`
	Actions       []ModuleDocument             `json:"actions,omitempty" yaml:"actions,omitempty" validate:"dive"`
}

// ToRule materializes the document into a rule. The returned rule has
// not been through structure validation or configuration resolution;
// that happens when it is registered.
func (d *Document) ToRule() *Rule {
	r := NewRule(d.UID)
	r.SetName(d.Name)
	r.SetDescription(d.Description)
	r.SetTemplateUID(d.Template)
	if d.Visibility != "" {
		r.SetVisibility(Visibility(d.Visibility))
	}
	r.SetTags(d.Tags...)
	if len(d.Configuration) > 0 {
		r.SetConfiguration(Configuration(d.Configuration).Copy())
	}
	if len(d.Parameters) > 0 {
		params := make([]ConfigDescriptionParameter, len(d.Parameters))
		copy(params, d.Parameters)
		r.SetConfigDescriptions(params)
	}
	r.SetTriggers(documentModules(KindTrigger, d.Triggers)...)
	r.SetConditions(documentModules(KindCondition, d.Conditions)...)
	r.SetActions(documentModules(KindAction, d.Actions)...)
	return r
}

func documentModules(kind ModuleKind, docs []ModuleDocument) []*Module {
	if len(docs) == 0 {
		return nil
	}
	modules := make([]*Module, 0, len(docs))
	for _, d := range docs {
		var m *Module
		cfg := Configuration(d.Configuration).Copy()
		switch kind {
		case KindTrigger:
			m = NewTrigger(d.ID, d.Type, cfg)
		case KindCondition:
			m = NewCondition(d.ID, d.Type, cfg, d.Inputs)
		default:
			m = NewAction(d.ID, d.Type, cfg, d.Inputs)
		}
		m.SetLabel(d.Label)
		m.SetDescription(d.Description)
		modules = append(modules, m)
	}
	return modules
}

// DocumentFromRule serializes a rule into its document form.
func DocumentFromRule(r *Rule) *Document {
	d := &Document{
		UID:         r.UID(),
		Name:        r.Name(),
		Description: r.Description(),
		Template:    r.TemplateUID(),
		Visibility:  string(r.Visibility()),
		Tags:        r.Tags(),
	}
	if cfg := r.Configuration(); len(cfg) > 0 {
		d.Configuration = map[string]any(cfg.Copy())
	}
	if params := r.ConfigDescriptions(); len(params) > 0 {
		d.Parameters = make([]ConfigDescriptionParameter, len(params))
		copy(d.Parameters, params)
	}
	d.Triggers = moduleDocuments(r.Triggers())
	d.Conditions = moduleDocuments(r.Conditions())
	d.Actions = moduleDocuments(r.Actions())
	return d
}

func moduleDocuments(modules []*Module) []ModuleDocument {
	if len(modules) == 0 {
		return nil
	}
	docs := make([]ModuleDocument, 0, len(modules))
	for _, m := range modules {
		doc := ModuleDocument{
			ID:          m.ID(),
			Type:        m.TypeUID(),
			Label:       m.Label(),
			Description: m.Description(),
			Inputs:      m.Inputs(),
		}
		if cfg := m.Configuration(); len(cfg) > 0 {
			doc.Configuration = map[string]any(cfg.Copy())
		}
		docs = append(docs, doc)
	}
	return docs
}
