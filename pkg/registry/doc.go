// Package registry implements the rule registry: the authoritative
// collection of rules assembled from providers, with template expansion
// and configuration resolution applied exactly once per add or update.
//
// Rules enter the registry either through an explicit Add call or through
// an attached Provider. Either way the registry expands template-based
// rules, validates and resolves configurations, and notifies listeners of
// every change. Rules whose template is not yet available are tracked and
// re-resolved automatically once the template appears.
package registry
