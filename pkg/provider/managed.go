package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rulekit/rulekit/pkg/registry"
	"github.com/rulekit/rulekit/pkg/rule"
	"github.com/rulekit/rulekit/pkg/stores"
	"github.com/rulekit/rulekit/pkg/telemetry"
)

// ManagedOptions configures a ManagedProvider.
type ManagedOptions struct {
	// Name identifies the provider; defaults to "managed".
	Name string

	// Store persists the rule definitions. Required.
	Store stores.Store

	// Telemetry carries the logger. When nil a quiet default is used.
	Telemetry *telemetry.Telemetry
}

// ManagedProvider is a store-backed provider the registry can write
// into. Rules added, updated or removed through it are persisted as
// JSON documents and mirrored in memory; the registry's write-back of
// template-resolved rules goes through Update.
type ManagedProvider struct {
	name   string
	store  stores.Store
	logger *telemetry.Logger

	mu        sync.Mutex
	rules     map[string]*rule.Rule
	listeners []registry.ProviderListener
}

// NewManagedProvider creates a managed provider over the given store.
// Call Load before attaching it to the registry to surface persisted
// rules.
func NewManagedProvider(opts ManagedOptions) (*ManagedProvider, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	name := opts.Name
	if name == "" {
		name = "managed"
	}
	logger := quietLogger(opts.Telemetry).NewComponentLogger("managed-provider").WithProvider(name)

	return &ManagedProvider{
		name:   name,
		store:  opts.Store,
		logger: logger,
		rules:  make(map[string]*rule.Rule),
	}, nil
}

// Name implements registry.Provider.
func (p *ManagedProvider) Name() string { return p.name }

// Rules implements registry.Provider.
func (p *ManagedProvider) Rules() []*rule.Rule {
	p.mu.Lock()
	defer p.mu.Unlock()
	rules := make([]*rule.Rule, 0, len(p.rules))
	for _, r := range p.rules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].UID() < rules[j].UID() })
	return rules
}

// Subscribe implements registry.Provider.
func (p *ManagedProvider) Subscribe(listener registry.ProviderListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, listener)
}

// Load reads all persisted rules into memory. Documents that fail to
// decode are logged and skipped.
func (p *ManagedProvider) Load(ctx context.Context) error {
	stored, err := p.store.ListRules(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to list stored rules: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sr := range stored {
		doc := &rule.Document{}
		if err := json.Unmarshal([]byte(sr.Document), doc); err != nil {
			p.logger.WithRuleUID(sr.UID).WithError(err).
				Warn("Skipping undecodable stored rule")
			continue
		}
		p.rules[sr.UID] = doc.ToRule()
	}
	p.logger.Infof("Loaded %d rules from store", len(p.rules))
	return nil
}

// Add implements registry.ManagedProvider.
func (p *ManagedProvider) Add(r *rule.Rule) error {
	if r == nil {
		return fmt.Errorf("rule must not be nil")
	}

	p.mu.Lock()
	if _, exists := p.rules[r.UID()]; exists {
		p.mu.Unlock()
		return fmt.Errorf("rule %s already exists", r.UID())
	}
	p.mu.Unlock()

	if err := p.persist(r); err != nil {
		return err
	}

	p.mu.Lock()
	p.rules[r.UID()] = r
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	for _, l := range listeners {
		l.OnRuleAdded(p, r)
	}
	return nil
}

// Update implements registry.ManagedProvider.
func (p *ManagedProvider) Update(r *rule.Rule) error {
	if r == nil {
		return fmt.Errorf("rule must not be nil")
	}

	p.mu.Lock()
	old, exists := p.rules[r.UID()]
	p.mu.Unlock()
	if !exists {
		return fmt.Errorf("rule %s does not exist", r.UID())
	}

	if err := p.persist(r); err != nil {
		return err
	}

	p.mu.Lock()
	p.rules[r.UID()] = r
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	for _, l := range listeners {
		l.OnRuleUpdated(p, old, r)
	}
	return nil
}

// Remove implements registry.ManagedProvider.
func (p *ManagedProvider) Remove(uid string) error {
	p.mu.Lock()
	r, exists := p.rules[uid]
	if exists {
		delete(p.rules, uid)
	}
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	if !exists {
		return nil
	}

	if err := p.store.DeleteRule(context.Background(), uid); err != nil {
		p.logger.WithRuleUID(uid).WithError(err).
			Warn("Failed to delete stored rule")
	}

	for _, l := range listeners {
		l.OnRuleRemoved(p, r)
	}
	return nil
}

func (p *ManagedProvider) persist(r *rule.Rule) error {
	document, err := json.Marshal(rule.DocumentFromRule(r))
	if err != nil {
		return fmt.Errorf("failed to serialize rule %s: %w", r.UID(), err)
	}
	if err := p.store.SaveRule(context.Background(), &stores.StoredRule{
		UID:      r.UID(),
		Name:     r.Name(),
		Document: string(document),
	}); err != nil {
		return fmt.Errorf("failed to persist rule %s: %w", r.UID(), err)
	}
	return nil
}

// snapshotListeners must be called with p.mu held.
func (p *ManagedProvider) snapshotListeners() []registry.ProviderListener {
	snapshot := make([]registry.ProviderListener, len(p.listeners))
	copy(snapshot, p.listeners)
	return snapshot
}

var _ registry.ManagedProvider = (*ManagedProvider)(nil)
