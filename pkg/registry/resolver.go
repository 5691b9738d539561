package registry

import (
	"strings"

	"github.com/rulekit/rulekit/pkg/rule"
	"github.com/rulekit/rulekit/pkg/telemetry"
)

// resolver applies template expansion and configuration resolution to
// rules entering the registry.
type resolver struct {
	templates   TemplateProvider
	moduleTypes rule.ModuleTypeProvider
	tracker     *templateTracker
	logger      *telemetry.Logger
	metrics     *telemetry.Metrics
}

// resolveRule runs the full resolution pipeline on a rule. It returns
// the rule to register (a new rule when a template was expanded, the
// original otherwise) and whether expansion replaced it. A rule whose
// template is unavailable is returned unchanged with no error; it stays
// tracked for re-resolution.
func (rs *resolver) resolveRule(r *rule.Rule) (*rule.Rule, bool, error) {
	if r.TemplateUID() == "" {
		return r, false, rs.resolveConfigurations(r)
	}
	// For template-based rules this only normalizes the rule-level
	// configuration; validation waits until after expansion.
	if err := rs.resolveConfigurations(r); err != nil {
		return r, false, err
	}
	return rs.resolveRuleByTemplate(r)
}

// resolveRuleByTemplate expands a template-based rule. A missing
// template is not an error, just a deferred state.
func (rs *resolver) resolveRuleByTemplate(r *rule.Rule) (*rule.Rule, bool, error) {
	templateUID := r.TemplateUID()
	if templateUID == "" {
		return r, false, nil
	}

	t, ok := rs.templates.Template(templateUID)
	if !ok {
		rs.tracker.track(templateUID, r.UID())
		rs.logger.WithRuleUID(r.UID()).WithTemplateUID(templateUID).
			Debug("Template not available yet, resolution deferred")
		rs.metrics.RecordTemplateResolution(templateUID, "deferred")
		rs.metrics.SetUnresolvedRules(float64(rs.tracker.count()))
		return r, false, nil
	}

	resolved, err := t.Instantiate(r)
	if err != nil {
		rs.metrics.RecordTemplateResolution(templateUID, "failed")
		return r, false, err
	}
	if err := rs.resolveConfigurations(resolved); err != nil {
		rs.metrics.RecordTemplateResolution(templateUID, "failed")
		return r, false, err
	}

	rs.tracker.resolved(templateUID, r.UID())
	rs.metrics.RecordTemplateResolution(templateUID, "resolved")
	rs.metrics.SetUnresolvedRules(float64(rs.tracker.count()))
	return resolved, true, nil
}

// resolveConfigurations normalizes the rule configuration, validates it
// against the declared parameters, substitutes module references to
// rule configuration keys and normalizes the module configurations
// against their module types. Template-based rules are skipped; their
// resolution happens after expansion.
func (rs *resolver) resolveConfigurations(r *rule.Rule) error {
	params := rule.ParameterIndex(r.ConfigDescriptions())
	rule.NormalizeConfiguration(r.Configuration(), params)

	if r.TemplateUID() != "" {
		return nil
	}

	if err := rule.ValidateConfiguration(r.Configuration(), r.ConfigDescriptions()); err != nil {
		if e, ok := err.(*rule.Error); ok {
			return e.WithRule(r.UID())
		}
		return err
	}

	if err := rs.resolveModuleReferences(r); err != nil {
		return err
	}

	rs.normalizeModuleConfigurations(r)
	return nil
}

// resolveModuleReferences substitutes ${key} references in every module
// configuration. Failures are collected per module into one aggregated
// error instead of failing fast.
func (rs *resolver) resolveModuleReferences(r *rule.Rule) error {
	var problems []string
	for _, m := range r.Modules() {
		if err := rule.ResolveModuleReferences(m, r.Configuration()); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return rule.NewConfigurationError(strings.Join(problems, "; "), nil).WithRule(r.UID())
	}
	return nil
}

// normalizeModuleConfigurations coerces module configuration values
// against the parameters declared by each module's type. Modules with
// unknown types are left as-is; the engine reports missing handlers.
func (rs *resolver) normalizeModuleConfigurations(r *rule.Rule) {
	if rs.moduleTypes == nil {
		return
	}
	for _, m := range r.Modules() {
		mt, ok := rs.moduleTypes.ModuleType(m.TypeUID())
		if !ok {
			continue
		}
		rule.NormalizeConfiguration(m.Configuration(), rule.ParameterIndex(mt.ConfigDescriptions))
	}
}
