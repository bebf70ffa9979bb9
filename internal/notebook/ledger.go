package notebook

import (
	"sync"
	"time"
)

// DefaultLedgerWindow is how long a recorded write counts as the origin of
// an observed filesystem event.
const DefaultLedgerWindow = 2 * time.Second

// Ledger is the recent-save ledger: an ephemeral path → timestamp map used
// only to classify an observed filesystem event as self- versus
// externally-originated. It is the sole mechanism preventing
// write → notify → reload → rewrite loops.
type Ledger struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// NewLedger creates a ledger with the given expiry window; zero or negative
// selects the default.
func NewLedger(window time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultLedgerWindow
	}
	return &Ledger{
		window:  window,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Record notes that the engine itself just wrote path.
func (l *Ledger) Record(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[path] = l.now()
	l.prune()
}

// Recent reports whether path was written by the engine within the expiry
// window. Expired entries are dropped as a side effect.
func (l *Ledger) Recent(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune()
	_, ok := l.entries[path]
	return ok
}

// prune drops expired entries; callers hold the lock.
func (l *Ledger) prune() {
	cutoff := l.now().Add(-l.window)
	for p, ts := range l.entries {
		if ts.Before(cutoff) {
			delete(l.entries, p)
		}
	}
}
