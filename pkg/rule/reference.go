package rule

import (
	"fmt"
	"regexp"
	"strings"
)

// Module configuration values may reference rule-level configuration
// keys with a ${key} placeholder. A value that is exactly one placeholder
// is replaced by the referenced value with its type preserved; a string
// containing placeholders among other text gets each placeholder
// substituted with the referenced value's string form.
var referencePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// IsReference reports whether the value is exactly one ${key}
// placeholder.
func IsReference(value any) bool {
	_, ok := ReferenceKey(value)
	return ok
}

// ReferenceKey returns the rule configuration key a whole-value
// placeholder names, or false if the value is not a whole-value
// placeholder.
func ReferenceKey(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	match := referencePattern.FindStringSubmatch(s)
	if match == nil || match[0] != s {
		return "", false
	}
	return match[1], true
}

// ResolveValue resolves placeholders in a single configuration value
// against the rule configuration. Non-string values pass through
// unchanged. An error names every referenced key missing from the rule
// configuration.
func ResolveValue(value any, ruleConfig Configuration) (any, error) {
	if key, ok := ReferenceKey(value); ok {
		resolved, present := ruleConfig.Get(key)
		if !present {
			return nil, fmt.Errorf("reference ${%s} does not match any rule configuration key", key)
		}
		return resolved, nil
	}
	s, ok := value.(string)
	if !ok || !strings.Contains(s, "${") {
		return value, nil
	}
	var missing []string
	resolved := referencePattern.ReplaceAllStringFunc(s, func(placeholder string) string {
		key := placeholder[2 : len(placeholder)-1]
		v, present := ruleConfig.Get(key)
		if !present {
			missing = append(missing, key)
			return placeholder
		}
		return fmt.Sprintf("%v", v)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("references do not match any rule configuration key: %s",
			strings.Join(missing, ", "))
	}
	return resolved, nil
}

// ResolveModuleReferences rewrites every placeholder in the module's
// configuration with the rule configuration's current values. The module
// is mutated in place. The returned error aggregates all unresolvable
// references of the module.
func ResolveModuleReferences(m *Module, ruleConfig Configuration) error {
	cfg := m.Configuration()
	var problems []string
	for _, key := range cfg.Keys() {
		value, _ := cfg.Get(key)
		resolved, err := ResolveValue(value, ruleConfig)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		cfg.Put(key, resolved)
	}
	if len(problems) > 0 {
		return NewConfigurationError(strings.Join(problems, "; "), nil).WithModule(m.ID())
	}
	return nil
}
