// pkg/history/ring.go
package history

import (
	"sync"

	"github.com/aleka07/twinsync/pkg/model"
)

// DefaultCapacity is the number of readings kept when no capacity is configured.
const DefaultCapacity = 100

// Ring is a fixed-capacity, insertion-ordered history of readings.
// When full, Append evicts the oldest entry. There is no delete.
type Ring struct {
	mu    sync.RWMutex
	buf   []model.HistoryEntry
	start int // index of the oldest entry
	n     int
}

// New returns an empty ring. A non-positive capacity means DefaultCapacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]model.HistoryEntry, capacity)}
}

// Append adds e as the newest entry.
func (r *Ring) Append(e model.HistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendLocked(e)
}

func (r *Ring) appendLocked(e model.HistoryEntry) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = e
		r.n++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

// Seed appends restored entries, oldest first, under the same eviction rule.
func (r *Ring) Seed(entries []model.HistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.appendLocked(e)
	}
}

// Snapshot returns a copy of the last n entries in observation order.
// n is clamped to [0, Len()].
func (r *Ring) Snapshot(n int) []model.HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n > r.n {
		n = r.n
	}
	if n < 0 {
		n = 0
	}
	out := make([]model.HistoryEntry, n)
	first := r.start + r.n - n
	for i := range out {
		out[i] = r.buf[(first+i)%len(r.buf)]
	}
	return out
}

// Len is the number of entries held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.n
}

// Cap is the configured capacity.
func (r *Ring) Cap() int { return len(r.buf) }
