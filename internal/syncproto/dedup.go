package syncproto

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long an identical signature is suppressed.
const DefaultDedupWindow = 100 * time.Millisecond

// Deduper suppresses signatures seen within a short window. Expired
// signatures are swept on access. Safe for concurrent use.
type Deduper struct {
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	seen      map[string]time.Time
	lastSweep time.Time
}

// NewDeduper returns a deduper; window <= 0 selects the default and a nil
// clock selects time.Now.
func NewDeduper(window time.Duration, now func() time.Time) *Deduper {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Deduper{window: window, now: now, seen: make(map[string]time.Time)}
}

// Duplicate records sig and reports whether it was already seen within
// the window.
func (d *Deduper) Duplicate(sig string) bool {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if now.Sub(d.lastSweep) > d.window {
		for k, at := range d.seen {
			if now.Sub(at) >= d.window {
				delete(d.seen, k)
			}
		}
		d.lastSweep = now
	}

	last, ok := d.seen[sig]
	d.seen[sig] = now
	return ok && now.Sub(last) < d.window
}

// Len returns the number of remembered signatures.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
