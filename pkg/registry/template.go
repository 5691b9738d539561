package registry

import (
	"sync"

	"github.com/rulekit/rulekit/pkg/rule"
)

// TemplateRegistry is an in-memory TemplateProvider. Templates are
// typically loaded at startup and added while the system runs; the
// registry subscribes to learn when a template a rule is waiting for
// becomes available.
type TemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]*rule.Template
	listeners []TemplateListener
}

// NewTemplateRegistry creates an empty template registry.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		templates: make(map[string]*rule.Template),
	}
}

// Template returns the template with the given UID.
func (tr *TemplateRegistry) Template(uid string) (*rule.Template, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	t, ok := tr.templates[uid]
	return t, ok
}

// All returns every registered template.
func (tr *TemplateRegistry) All() []*rule.Template {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	all := make([]*rule.Template, 0, len(tr.templates))
	for _, t := range tr.templates {
		all = append(all, t)
	}
	return all
}

// Add registers a template and notifies listeners. An existing template
// with the same UID is replaced and reported as an update.
func (tr *TemplateRegistry) Add(t *rule.Template) {
	tr.mu.Lock()
	_, existed := tr.templates[t.UID()]
	tr.templates[t.UID()] = t
	listeners := tr.snapshotListeners()
	tr.mu.Unlock()

	for _, l := range listeners {
		if existed {
			l.TemplateUpdated(t)
		} else {
			l.TemplateAdded(t)
		}
	}
}

// Remove deletes a template and notifies listeners. Removing an unknown
// UID is a no-op.
func (tr *TemplateRegistry) Remove(uid string) {
	tr.mu.Lock()
	_, existed := tr.templates[uid]
	delete(tr.templates, uid)
	listeners := tr.snapshotListeners()
	tr.mu.Unlock()

	if !existed {
		return
	}
	for _, l := range listeners {
		l.TemplateRemoved(uid)
	}
}

// Subscribe registers a listener for template changes.
func (tr *TemplateRegistry) Subscribe(listener TemplateListener) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.listeners = append(tr.listeners, listener)
}

// snapshotListeners must be called with tr.mu held.
func (tr *TemplateRegistry) snapshotListeners() []TemplateListener {
	snapshot := make([]TemplateListener, len(tr.listeners))
	copy(snapshot, tr.listeners)
	return snapshot
}
