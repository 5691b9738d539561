package rule

import "testing"

func TestStatus_Validate(t *testing.T) {
	for _, s := range []Status{StatusUninitialized, StatusIdle, StatusRunning, StatusDisabled} {
		if err := s.Validate(); err != nil {
			t.Errorf("Expected %s to be valid, got: %v", s, err)
		}
	}
	if err := Status("bogus").Validate(); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestStatus_IsActive(t *testing.T) {
	if !StatusIdle.IsActive() || !StatusRunning.IsActive() {
		t.Error("Expected idle and running to be active")
	}
	if StatusUninitialized.IsActive() || StatusDisabled.IsActive() {
		t.Error("Expected uninitialized and disabled to be inactive")
	}
}

func TestTemplate_Instantiate_Overrides(t *testing.T) {
	tpl := NewTemplate("tpl.motionlight")
	tpl.SetLabel("Motion light")
	tpl.SetConfigDescriptions([]ConfigDescriptionParameter{
		{Name: "sensor", Type: ParameterText, Required: true},
	})
	tpl.SetTriggers(NewTrigger("t1", "core.itemchange", Configuration{"item": "${sensor}"}))
	tpl.SetActions(NewAction("a1", "core.command", Configuration{"item": "light"}, nil))

	r := NewRule("r1")
	r.SetName("hallway motion light")
	r.SetTemplateUID("tpl.motionlight")
	r.SetTags("hallway")
	r.SetConfiguration(Configuration{"sensor": "hallMotion"})

	resolved, err := tpl.Instantiate(r)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if resolved.UID() != "r1" || resolved.Name() != "hallway motion light" {
		t.Error("Expected rule identity to win over the template")
	}
	if resolved.TemplateUID() != "" {
		t.Errorf("Expected resolved rule to drop the template UID, got %q", resolved.TemplateUID())
	}
	if len(resolved.Triggers()) != 1 || len(resolved.Actions()) != 1 {
		t.Fatalf("Expected template modules to be copied, got %d triggers %d actions",
			len(resolved.Triggers()), len(resolved.Actions()))
	}
	if v, _ := resolved.Configuration().Get("sensor"); v != "hallMotion" {
		t.Errorf("Expected rule configuration to carry over, got %v", v)
	}

	// Mutating the resolved copy must not touch the template.
	resolved.Triggers()[0].Configuration().Put("item", "changed")
	if v, _ := tpl.Triggers()[0].Configuration().Get("item"); v != "${sensor}" {
		t.Errorf("Expected template modules untouched, got %v", v)
	}
}

func TestTemplate_Instantiate_WrongTemplate(t *testing.T) {
	tpl := NewTemplate("tpl.a")
	r := NewRule("r1")
	r.SetTemplateUID("tpl.b")

	if _, err := tpl.Instantiate(r); err == nil {
		t.Error("Expected error when the rule references a different template")
	}
}
