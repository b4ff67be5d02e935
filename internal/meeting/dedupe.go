package meeting

import "sync"

// Dedupe tracks the set of already-processed signal message identifiers
// for one room session. The transport delivers at least once and readiness
// signals are intentionally resent, so every consumer runs behind this.
type Dedupe struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupe() *Dedupe {
	return &Dedupe{seen: make(map[string]struct{})}
}

// Seen marks id as processed and reports whether it had been seen before.
// Messages without an identifier are never suppressed.
func (d *Dedupe) Seen(id string) bool {
	if id == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

// Len returns the number of tracked identifiers.
func (d *Dedupe) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
