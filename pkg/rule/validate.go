package rule

import (
	"fmt"
	"strings"
)

// ValidateConfiguration checks configuration values against declared
// parameters. Every declared parameter is consumed from a working copy
// of the values; required parameters must be present, values must match
// the declared type, and multiple-valued parameters must carry a list
// whose every element matches. Any property left over after consuming
// all declared parameters fails validation. An empty configuration is
// valid when no declared parameter is required.
func ValidateConfiguration(cfg Configuration, params []ConfigDescriptionParameter) error {
	remaining := cfg.Copy()
	var problems []string
	for i := range params {
		p := &params[i]
		value, present := remaining.Get(p.Name)
		delete(remaining, p.Name)
		if !present || value == nil {
			if p.Required {
				problems = append(problems, fmt.Sprintf("required parameter %q is missing", p.Name))
			}
			continue
		}
		if err := checkValue(value, p); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(remaining) > 0 {
		problems = append(problems, fmt.Sprintf(
			"extra configuration properties: %s", strings.Join(remaining.Keys(), ", ")))
	}
	if len(problems) > 0 {
		return NewConfigurationError(strings.Join(problems, "; "), nil)
	}
	return nil
}

func checkValue(value any, p *ConfigDescriptionParameter) error {
	if p.Multiple {
		list, ok := value.([]any)
		if !ok {
			return fmt.Errorf("parameter %q requires a list of %s values", p.Name, p.Type)
		}
		for i, element := range list {
			if !p.Type.Accepts(element) {
				return fmt.Errorf("parameter %q element %d is not of type %s", p.Name, i, p.Type)
			}
		}
		return nil
	}
	if !p.Type.Accepts(value) {
		return fmt.Errorf("parameter %q value %v is not of type %s", p.Name, value, p.Type)
	}
	return nil
}
