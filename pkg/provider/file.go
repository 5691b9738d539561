package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rulekit/rulekit/pkg/registry"
	"github.com/rulekit/rulekit/pkg/rule"
	"github.com/rulekit/rulekit/pkg/telemetry"
)

// FileOptions configures a FileProvider.
type FileOptions struct {
	// Name identifies the provider; defaults to "file".
	Name string

	// Directory holds the YAML rule documents. Each .yaml/.yml file may
	// carry one or more documents separated by "---".
	Directory string

	// Watch reloads files on change.
	Watch bool

	// Telemetry carries the logger. When nil a quiet default is used.
	Telemetry *telemetry.Telemetry
}

// FileProvider reads rules from a directory of YAML documents and, with
// Watch enabled, follows changes to those files. Documents that fail to
// decode or validate are logged and skipped; a broken file never takes
// down the provider.
type FileProvider struct {
	name      string
	dir       string
	watch     bool
	logger    *telemetry.Logger
	validator *validator.Validate

	mu        sync.Mutex
	rules     map[string]*rule.Rule
	byFile    map[string][]string
	listeners []registry.ProviderListener

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

// NewFileProvider creates a file provider for the given directory.
func NewFileProvider(opts FileOptions) (*FileProvider, error) {
	if opts.Directory == "" {
		return nil, fmt.Errorf("rule directory is required")
	}
	name := opts.Name
	if name == "" {
		name = "file"
	}
	logger := quietLogger(opts.Telemetry).NewComponentLogger("file-provider").WithProvider(name)

	return &FileProvider{
		name:      name,
		dir:       opts.Directory,
		watch:     opts.Watch,
		logger:    logger,
		validator: validator.New(),
		rules:     make(map[string]*rule.Rule),
		byFile:    make(map[string][]string),
	}, nil
}

// Name implements registry.Provider.
func (p *FileProvider) Name() string { return p.name }

// Rules implements registry.Provider.
func (p *FileProvider) Rules() []*rule.Rule {
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
func (p *FileProvider) Subscribe(listener registry.ProviderListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, listener)
}

// Start scans the directory and, with Watch enabled, begins following
// file changes. Attach the provider to the registry before calling
// Start so change notifications are not lost.
func (p *FileProvider) Start(ctx context.Context) error {
	if err := p.scanAll(); err != nil {
		return err
	}
	if !p.watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(p.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", p.dir, err)
	}
	p.watcher = watcher

	ctx, p.cancel = context.WithCancel(ctx)
	go p.processEvents(ctx)

	p.logger.Infof("Watching rule directory %s", p.dir)
	return nil
}

// Close stops the watcher.
func (p *FileProvider) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

func isRuleFile(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// scanAll loads every rule file in the directory.
func (p *FileProvider) scanAll() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("failed to read rule directory %s: %w", p.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isRuleFile(entry.Name()) {
			continue
		}
		p.loadFile(filepath.Join(p.dir, entry.Name()))
	}
	return nil
}

// loadFile reads one file, diffs its rules against the previous load
// and notifies listeners about adds, updates and removals.
func (p *FileProvider) loadFile(path string) {
	docs, err := p.readDocuments(path)
	if err != nil {
		p.logger.WithField("path", path).WithError(err).
			Warn("Failed to load rule file")
		return
	}

	loaded := make(map[string]*rule.Rule, len(docs))
	for _, doc := range docs {
		if err := p.validator.Struct(doc); err != nil {
			p.logger.WithField("path", path).WithError(err).
				Warn("Skipping invalid rule document")
			continue
		}
		r := doc.ToRule()
		if _, dup := loaded[r.UID()]; dup {
			p.logger.WithField("path", path).WithRuleUID(r.UID()).
				Warn("Skipping duplicate rule uid in file")
			continue
		}
		loaded[r.UID()] = r
	}

	p.mu.Lock()
	previous := p.byFile[path]
	previousSet := make(map[string]*rule.Rule, len(previous))
	for _, uid := range previous {
		previousSet[uid] = p.rules[uid]
	}

	var added, updated [][2]*rule.Rule
	var removed []*rule.Rule

	uids := make([]string, 0, len(loaded))
	for uid, r := range loaded {
		uids = append(uids, uid)
		if old, ok := previousSet[uid]; ok {
			p.rules[uid] = r
			updated = append(updated, [2]*rule.Rule{old, r})
		} else {
			p.rules[uid] = r
			added = append(added, [2]*rule.Rule{nil, r})
		}
	}
	for _, uid := range previous {
		if _, ok := loaded[uid]; !ok {
			removed = append(removed, p.rules[uid])
			delete(p.rules, uid)
		}
	}
	sort.Strings(uids)
	p.byFile[path] = uids
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	for _, l := range listeners {
		for _, pair := range added {
			l.OnRuleAdded(p, pair[1])
		}
		for _, pair := range updated {
			l.OnRuleUpdated(p, pair[0], pair[1])
		}
		for _, r := range removed {
			l.OnRuleRemoved(p, r)
		}
	}

	p.logger.WithField("path", path).
		Debugf("Loaded %d rules (%d added, %d updated, %d removed)",
			len(loaded), len(added), len(updated), len(removed))
}

// removeFile drops all rules that came from the given file.
func (p *FileProvider) removeFile(path string) {
	p.mu.Lock()
	var removed []*rule.Rule
	for _, uid := range p.byFile[path] {
		if r, ok := p.rules[uid]; ok {
			removed = append(removed, r)
			delete(p.rules, uid)
		}
	}
	delete(p.byFile, path)
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	for _, l := range listeners {
		for _, r := range removed {
			l.OnRuleRemoved(p, r)
		}
	}

	if len(removed) > 0 {
		p.logger.WithField("path", path).
			Debugf("Removed %d rules from deleted file", len(removed))
	}
}

// readDocuments decodes a multi-document YAML file.
func (p *FileProvider) readDocuments(path string) ([]*rule.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var docs []*rule.Document
	decoder := yaml.NewDecoder(f)
	for {
		doc := &rule.Document{}
		if err := decoder.Decode(doc); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// processEvents follows file system events with a per-file debounce.
func (p *FileProvider) processEvents(ctx context.Context) {
	const reloadDelay = 200 * time.Millisecond
	timers := make(map[string]*time.Timer)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if !isRuleFile(event.Name) {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				path := event.Name
				if t, ok := timers[path]; ok {
					t.Stop()
				}
				timers[path] = time.AfterFunc(reloadDelay, func() {
					p.loadFile(path)
				})
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if t, ok := timers[event.Name]; ok {
					t.Stop()
					delete(timers, event.Name)
				}
				p.removeFile(event.Name)
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.WithError(err).Error("Watcher error")
		}
	}
}

// snapshotListeners must be called with p.mu held.
func (p *FileProvider) snapshotListeners() []registry.ProviderListener {
	snapshot := make([]registry.ProviderListener, len(p.listeners))
	copy(snapshot, p.listeners)
	return snapshot
}

// quietLogger returns the telemetry logger or a stderr default.
func quietLogger(tel *telemetry.Telemetry) *telemetry.Logger {
	if tel != nil && tel.Logger != nil {
		return tel.Logger
	}
	logger, _ := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	})
	return logger
}

var _ registry.Provider = (*FileProvider)(nil)
