package notebook

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/storage"
)

// Event kinds delivered to the change callback.
const (
	EventCardSaved   = "card.saved"
	EventCardDeleted = "card.deleted"
	EventReloaded    = "notebook.reloaded"
)

// EventCallback is invoked after a mutation or reload. path is the
// notebook-relative primary path for card events and "" for reloads.
type EventCallback func(kind, path string)

// Notebook is the collaborator-facing surface of the engine. Rendering, UI,
// and grading layers consume these operations and never reach the storage
// backend directly.
type Notebook struct {
	store  storage.Backend
	log    *slog.Logger
	ledger *Ledger
	onEvnt EventCallback

	mu    sync.RWMutex
	graph *Graph
	reg   *registry.Registry

	// reloading makes reload non-reentrant: observer batches arriving
	// while a reload runs are dropped wholesale.
	reloading atomic.Bool
}

// Option configures a Notebook.
type Option func(*Notebook)

// WithEventCallback registers the change callback.
func WithEventCallback(cb EventCallback) Option {
	return func(n *Notebook) { n.onEvnt = cb }
}

// WithLedger substitutes the recent-save ledger, typically to shorten the
// expiry window.
func WithLedger(l *Ledger) Option {
	return func(n *Notebook) { n.ledger = l }
}

// Open builds the extension registry (built-ins merged with any user
// override file), performs the initial full load, and returns the notebook.
func Open(store storage.Backend, log *slog.Logger, opts ...Option) (*Notebook, error) {
	n := &Notebook{
		store:  store,
		log:    log,
		ledger: NewLedger(DefaultLedgerWindow),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.reg = buildRegistry(store, log)

	g, err := NewLoader(store, n.reg, log).Load()
	if err != nil {
		return nil, err
	}
	n.graph = g
	return n, nil
}

// buildRegistry merges the built-in providers with the user override file
// from the configuration directory. A malformed override file is logged and
// ignored rather than failing the open.
func buildRegistry(store storage.Backend, log *slog.Logger) *registry.Registry {
	base := registry.Builtin()
	file, err := store.ReadFile(path.Join(ConfigDir, ExtensionsFile))
	if err != nil {
		if !apperr.IsNotFound(err) {
			log.Warn("registry: override read failed",
				slog.String("error", err.Error()))
		}
		return base
	}
	overrides, err := registry.ParseOverrides(file.Content)
	if err != nil {
		log.Warn("registry: malformed override file ignored",
			slog.String("error", err.Error()))
		return base
	}
	return registry.Merge(base, overrides)
}

// Graph returns the current graph snapshot. The snapshot is immutable by
// convention: reloads swap in a whole new graph instead of mutating it.
func (n *Notebook) Graph() *Graph {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.graph
}

// Sections returns the content sections of the current graph.
func (n *Notebook) Sections() []*Section {
	return n.Graph().Sections
}

// Section returns the named section, or nil.
func (n *Notebook) Section(name string) *Section {
	return n.Graph().Section(name)
}

// Card returns the card with the given id in the named section, or nil.
func (n *Notebook) Card(section, id string) *Card {
	return n.Graph().Card(section, id)
}

// Settings returns the current normalized settings document.
func (n *Notebook) Settings() Settings {
	return n.Graph().Settings
}

// Extensions returns the active extension registry's configs.
func (n *Notebook) Extensions() []registry.ExtensionConfig {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.reg.Configs()
}

// Registry returns the active registry.
func (n *Notebook) Registry() *registry.Registry {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.reg
}

// Ledger exposes the recent-save ledger to the change observer.
func (n *Notebook) Ledger() *Ledger {
	return n.ledger
}

// Reload runs a full loader pass and replaces the in-memory graph
// wholesale. External changes always win: unsaved in-memory state is
// discarded. Reload is non-reentrant; a call arriving while another reload
// runs is dropped. When notify is true the reload event fires on success.
func (n *Notebook) Reload(notify bool) error {
	if !n.reloading.CompareAndSwap(false, true) {
		return nil
	}
	defer n.reloading.Store(false)

	g, err := NewLoader(n.store, n.reg, n.log).Load()
	if err != nil {
		return fmt.Errorf("notebook: reload: %w", err)
	}

	n.mu.Lock()
	n.graph = g
	n.mu.Unlock()

	n.log.Debug("notebook: reloaded",
		slog.Int("sections", len(g.Sections)))
	if notify {
		n.emit(EventReloaded, "")
	}
	return nil
}

// HandleChanges applies the observer reconciliation policy to one batch of
// changed notebook-relative paths. It returns the number of
// relevant external paths; a positive count means a reload ran.
func (n *Notebook) HandleChanges(paths []string) int {
	if n.reloading.Load() {
		// A reload is already rebuilding the graph from disk; this
		// batch's changes will be picked up by it or by the next one.
		return 0
	}

	relevant := 0
	for _, p := range paths {
		if n.ledger.Recent(p) {
			n.log.Debug("observer: self-echo suppressed", slog.String("path", p))
			continue
		}
		if !n.isRelevant(p) {
			continue
		}
		relevant++
	}
	if relevant == 0 {
		return 0
	}
	if err := n.Reload(true); err != nil {
		n.log.Error("observer: reload failed", slog.String("error", err.Error()))
	}
	return relevant
}

// isRelevant filters out editor swap files, OS metadata, and extensions the
// active registry does not know about.
func (n *Notebook) isRelevant(p string) bool {
	base := path.Base(p)
	if base == "" || base == "." {
		return false
	}
	// Hidden files (editor swap files, OS metadata, the backend's own
	// atomic-write temp files) never trigger a reload.
	if base[0] == '.' {
		return false
	}
	if path.Dir(p) == ConfigDir {
		return base == SettingsFile || base == ExtensionsFile || base == ThemeFile
	}
	// Reserved directories never hold cards, so churn inside them
	// (asset writes, dependency installs) is ignored.
	first := p
	if i := strings.IndexByte(p, '/'); i >= 0 {
		first = p[:i]
	}
	if _, ok := reservedDirs[first]; ok {
		return false
	}
	// Paths without a dot are directory events (creations, removals);
	// those always matter because empty subdirectories are part of the
	// graph.
	if !containsDot(base) {
		return true
	}
	n.mu.RLock()
	reg := n.reg
	n.mu.RUnlock()
	if _, ok := reg.Resolve(base); ok {
		return true
	}
	if _, _, ok := reg.CompanionMatch(base); ok {
		return true
	}
	return false
}

func containsDot(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return true
		}
	}
	return false
}

func (n *Notebook) emit(kind, path string) {
	if n.onEvnt != nil {
		n.onEvnt(kind, path)
	}
}
