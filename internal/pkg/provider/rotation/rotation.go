// Package rotation hands out API keys and model names least-recently-used
// first, enforcing a minimum interval between two uses of the same entry and
// parking entries that got rate limited.
package rotation

import (
	"sync"
	"time"
)

const (
	// DefaultKeyInterval is the minimum delay between two uses of the same API key.
	DefaultKeyInterval = 3 * time.Second

	// DefaultModelCooldown is the minimum delay between two uses of the same model.
	DefaultModelCooldown = 750 * time.Millisecond

	// DefaultParkWindow is how long an entry stays out of selection after a 429.
	DefaultParkWindow = 60 * time.Second
)

type entry struct {
	name        string
	lastUsed    time.Time
	parkedUntil time.Time
}

// Rotator selects entries least-recently-used first. An entry can be parked
// for a fixed window, removing it from selection; when every entry is parked
// the one closest to expiry is returned anyway, with the remaining wait.
type Rotator struct {
	mu       sync.Mutex
	entries  []*entry
	interval time.Duration
	window   time.Duration

	// nowFunc is used to fetch the current time; it defaults to time.Now,
	// but can be overridden for testing.
	nowFunc func() time.Time
}

// New returns a Rotator over the given names with the given minimum reuse
// interval. Duplicate names are kept as-is, order only matters for ties.
func New(names []string, interval time.Duration) *Rotator {
	entries := make([]*entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, &entry{name: name})
	}

	return &Rotator{
		entries:  entries,
		interval: interval,
		window:   DefaultParkWindow,
		nowFunc:  time.Now,
	}
}

// Len returns the number of entries in the rotator.
func (r *Rotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Names returns the entry names in their original order.
func (r *Rotator) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.name)
	}
	return names
}

// Acquire returns the least recently used non-parked entry and how long the
// caller must wait before using it. The entry is reserved immediately, so
// concurrent callers never collide on the same slot. If every entry is
// parked, the one with the least remaining park time is returned and the
// wait covers the rest of its window.
func (r *Rotator) Acquire() (string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) == 0 {
		return "", 0
	}

	now := r.nowFunc()

	var best *entry
	for _, e := range r.entries {
		if e.parkedUntil.After(now) {
			continue
		}
		if best == nil || e.lastUsed.Before(best.lastUsed) {
			best = e
		}
	}

	// Everything is parked, fall back to the entry closest to expiry.
	if best == nil {
		for _, e := range r.entries {
			if best == nil || e.parkedUntil.Before(best.parkedUntil) {
				best = e
			}
		}

		wait := best.parkedUntil.Sub(now)
		if sinceWait := r.interval - now.Sub(best.lastUsed); sinceWait > wait {
			wait = sinceWait
		}
		best.lastUsed = now.Add(wait)
		best.parkedUntil = time.Time{}
		return best.name, wait
	}

	wait := r.interval - now.Sub(best.lastUsed)
	if wait < 0 || best.lastUsed.IsZero() {
		wait = 0
	}
	best.lastUsed = now.Add(wait)
	return best.name, wait
}

// Reserve marks the named entry as used and returns how long the caller must
// wait before actually using it, honoring the minimum reuse interval. Used
// when the entry was chosen by an outer policy (round-robin key assignment)
// rather than by Acquire.
func (r *Rotator) Reserve(name string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	for _, e := range r.entries {
		if e.name != name {
			continue
		}
		wait := r.interval - now.Sub(e.lastUsed)
		if wait < 0 || e.lastUsed.IsZero() {
			wait = 0
		}
		e.lastUsed = now.Add(wait)
		return wait
	}
	return 0
}

// Park removes the named entry from selection for the park window. Used when
// a provider answers HTTP 429 for a key/model pair.
func (r *Rotator) Park(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := r.nowFunc().Add(r.window)
	for _, e := range r.entries {
		if e.name == name {
			e.parkedUntil = until
			return
		}
	}
}

// Parked reports whether the named entry is currently out of selection.
func (r *Rotator) Parked(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	for _, e := range r.entries {
		if e.name == name {
			return e.parkedUntil.After(now)
		}
	}
	return false
}
