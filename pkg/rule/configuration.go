package rule

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Configuration holds the configuration values of a rule or module as a
// mapping of string keys to typed values: string, bool, int64, float64 or
// a list of those.
type Configuration map[string]any

// NewConfiguration returns a Configuration with the given initial values.
// A nil argument yields an empty configuration.
func NewConfiguration(values map[string]any) Configuration {
	cfg := make(Configuration, len(values))
	for k, v := range values {
		cfg[k] = v
	}
	return cfg
}

// Keys returns the configuration keys in sorted order.
func (c Configuration) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value for key and whether the key is present.
func (c Configuration) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// Put sets the value for key.
func (c Configuration) Put(key string, value any) {
	c[key] = value
}

// Has reports whether key is present.
func (c Configuration) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Copy returns a deep copy of the configuration. List values are copied;
// scalar values are immutable and shared.
func (c Configuration) Copy() Configuration {
	cp := make(Configuration, len(c))
	for k, v := range c {
		if list, ok := v.([]any); ok {
			lc := make([]any, len(list))
			copy(lc, list)
			cp[k] = lc
		} else {
			cp[k] = v
		}
	}
	return cp
}

// ParameterType is the declared type of a configuration parameter.
type ParameterType string

const (
	// ParameterText accepts string values.
	ParameterText ParameterType = "TEXT"

	// ParameterBoolean accepts boolean values.
	ParameterBoolean ParameterType = "BOOLEAN"

	// ParameterInteger accepts integral numeric values, including a
	// decimal whose fractional part is zero.
	ParameterInteger ParameterType = "INTEGER"

	// ParameterDecimal accepts any real numeric value.
	ParameterDecimal ParameterType = "DECIMAL"
)

// Validate checks if the parameter type is valid.
func (t ParameterType) Validate() error {
	switch t {
	case ParameterText, ParameterBoolean, ParameterInteger, ParameterDecimal:
		return nil
	default:
		return fmt.Errorf("invalid parameter type: %s", t)
	}
}

// Accepts reports whether value conforms to the parameter type. It is the
// strict check used by configuration validation; use NormalizeValue first
// to coerce representation differences away.
func (t ParameterType) Accepts(value any) bool {
	switch t {
	case ParameterText:
		_, ok := value.(string)
		return ok
	case ParameterBoolean:
		_, ok := value.(bool)
		return ok
	case ParameterInteger:
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return math.Trunc(v) == v
		}
		return false
	case ParameterDecimal:
		switch value.(type) {
		case int, int32, int64, float64:
			return true
		}
		return false
	}
	return false
}

// ConfigDescriptionParameter describes one declared configuration
// parameter of a rule or module type. It is externally supplied metadata,
// consumed by normalization and validation but never owned by a rule.
type ConfigDescriptionParameter struct {
	// Name is the configuration key this parameter describes.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Type is the declared value type.
	Type ParameterType `json:"type" yaml:"type" validate:"required,oneof=TEXT BOOLEAN INTEGER DECIMAL"`

	// Required marks the parameter as mandatory.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Multiple marks the parameter as list-valued; every element must
	// conform to Type.
	Multiple bool `json:"multiple,omitempty" yaml:"multiple,omitempty"`

	// Label is an optional human-readable name.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Description is an optional human-readable description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ParameterIndex builds a name lookup over a parameter list.
func ParameterIndex(params []ConfigDescriptionParameter) map[string]*ConfigDescriptionParameter {
	index := make(map[string]*ConfigDescriptionParameter, len(params))
	for i := range params {
		index[params[i].Name] = &params[i]
	}
	return index
}

// NormalizeConfiguration coerces every configuration value toward its
// declared parameter type, in place. Values without a declared parameter
// and values that cannot be coerced are left untouched; validation
// reports those later.
func NormalizeConfiguration(cfg Configuration, params map[string]*ConfigDescriptionParameter) {
	for key, value := range cfg {
		if param, ok := params[key]; ok {
			cfg[key] = NormalizeValue(value, param)
		}
	}
}

// NormalizeValue coerces a single value toward the declared parameter
// type. A nil parameter returns the value unchanged. For list-valued
// parameters a scalar is wrapped into a one-element list and every
// element is normalized.
func NormalizeValue(value any, param *ConfigDescriptionParameter) any {
	if value == nil || param == nil {
		return value
	}
	if param.Multiple {
		list, ok := value.([]any)
		if !ok {
			list = []any{value}
		}
		normalized := make([]any, len(list))
		for i, elem := range list {
			normalized[i] = normalizeScalar(elem, param.Type)
		}
		return normalized
	}
	return normalizeScalar(value, param.Type)
}

func normalizeScalar(value any, t ParameterType) any {
	switch t {
	case ParameterText:
		switch v := value.(type) {
		case string:
			return v
		case bool:
			return strconv.FormatBool(v)
		case int:
			return strconv.Itoa(v)
		case int32:
			return strconv.FormatInt(int64(v), 10)
		case int64:
			return strconv.FormatInt(v, 10)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	case ParameterBoolean:
		switch v := value.(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
	case ParameterInteger:
		switch v := value.(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			if math.Trunc(v) == v {
				return int64(v)
			}
		case string:
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i
			}
		}
	case ParameterDecimal:
		switch v := value.(type) {
		case int:
			return float64(v)
		case int32:
			return float64(v)
		case int64:
			return float64(v)
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return value
}
