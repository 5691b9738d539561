package rule

import (
	"strings"
	"testing"
)

func TestReferenceKey(t *testing.T) {
	if key, ok := ReferenceKey("${host}"); !ok || key != "host" {
		t.Errorf("Expected whole-value reference to yield host, got %q %v", key, ok)
	}
	if _, ok := ReferenceKey("prefix ${host}"); ok {
		t.Error("Expected embedded reference not to count as whole-value")
	}
	if _, ok := ReferenceKey(42); ok {
		t.Error("Expected non-string value not to be a reference")
	}
}

func TestResolveValue_WholeValueKeepsType(t *testing.T) {
	ruleConfig := Configuration{"threshold": int64(21)}

	resolved, err := ResolveValue("${threshold}", ruleConfig)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if resolved != int64(21) {
		t.Errorf("Expected int64(21), got %T %v", resolved, resolved)
	}
}

func TestResolveValue_PatternSubstitution(t *testing.T) {
	ruleConfig := Configuration{"room": "kitchen", "level": int64(40)}

	resolved, err := ResolveValue("dim ${room} to ${level}%", ruleConfig)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if resolved != "dim kitchen to 40%" {
		t.Errorf("Expected substituted string, got %v", resolved)
	}
}

func TestResolveValue_MissingKey(t *testing.T) {
	_, err := ResolveValue("${missing}", Configuration{})
	if err == nil {
		t.Fatal("Expected error for reference to a missing key")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("Expected error to name the key, got: %v", err)
	}
}

func TestResolveValue_NonReferencePassesThrough(t *testing.T) {
	resolved, err := ResolveValue("plain text", Configuration{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if resolved != "plain text" {
		t.Errorf("Expected value unchanged, got %v", resolved)
	}
}

func TestResolveModuleReferences_AggregatesErrors(t *testing.T) {
	m := NewAction("a1", "core.log", Configuration{
		"first":  "${missingA}",
		"second": "${missingB}",
		"third":  "ok",
	}, nil)

	err := ResolveModuleReferences(m, Configuration{})
	if err == nil {
		t.Fatal("Expected aggregated error for unresolvable references")
	}
	if !strings.Contains(err.Error(), "missingA") || !strings.Contains(err.Error(), "missingB") {
		t.Errorf("Expected both missing keys in the error, got: %v", err)
	}
	if !IsInvalidConfiguration(err) {
		t.Errorf("Expected an invalid-configuration error, got %v", err)
	}
	if v, _ := m.Configuration().Get("third"); v != "ok" {
		t.Errorf("Expected untouched value to stay, got %v", v)
	}
}

func TestResolveModuleReferences_RewritesInPlace(t *testing.T) {
	m := NewCondition("c1", "core.compare", Configuration{
		"right": "${threshold}",
	}, map[string]string{"left": "t1.value"})

	err := ResolveModuleReferences(m, Configuration{"threshold": 21.5})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if v, _ := m.Configuration().Get("right"); v != 21.5 {
		t.Errorf("Expected reference replaced with 21.5, got %v", v)
	}
}
