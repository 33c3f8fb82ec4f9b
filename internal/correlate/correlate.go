// Package correlate implements the correlation table (C5): a bounded map
// from a backend-bound request's correlation token back to the envelope
// that originated it, so the eventual backend response can be rewrapped as
// a response to the original client. Grounded on the teacher's
// container/list-backed draw-order queues in session/room.go — same
// eviction-ordered-list idiom, applied here to correlation-entry age
// instead of client draw order.
package correlate

import (
	"container/list"
	"sync"

	"go.uber.org/zap"

	"github.com/netology-group/conferences/internal/envelope"
	"github.com/netology-group/conferences/internal/logging"
	"github.com/netology-group/conferences/internal/store"
)

// DefaultCap is used when no capacity is configured.
const DefaultCap = 16384

// Entry is what a correlation token resolves to: the tag identifying which
// continuation handler rewraps the eventual response, and the inbound
// request being continued.
type Entry struct {
	Tag     string
	Request envelope.Inbound
}

// Table is a sync.Mutex-protected map plus a FIFO eviction list, grounded
// on the teacher's container/list-backed queues.
type Table struct {
	mu      sync.Mutex
	cap     int
	entries map[store.CorrelationToken]Entry
	order   *list.List
	elems   map[store.CorrelationToken]*list.Element
}

// NewTable returns a Table bounded at capacity entries. capacity <= 0 falls
// back to DefaultCap.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Table{
		cap:     capacity,
		entries: make(map[store.CorrelationToken]Entry),
		order:   list.New(),
		elems:   make(map[store.CorrelationToken]*list.Element),
	}
}

// Insert records entry under token, evicting the oldest entry first if the
// table is at capacity. Insert never blocks. Callers must call Insert
// before the outbound request it corresponds to is published, so the
// eventual response can never race ahead of the entry it needs (§5).
func (t *Table) Insert(token store.CorrelationToken, entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[token]; exists {
		t.entries[token] = entry
		return
	}

	if len(t.entries) >= t.cap {
		t.evictOldestLocked()
	}

	t.entries[token] = entry
	t.elems[token] = t.order.PushBack(token)
}

// Take removes and returns the entry for token, if any. A response that
// arrives for an unknown token (evicted or never issued) reports !ok; the
// caller logs and drops it per §7's "no matching correlation" policy.
func (t *Table) Take(token store.CorrelationToken) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[token]
	if !ok {
		return Entry{}, false
	}
	delete(t.entries, token)
	if elem, ok := t.elems[token]; ok {
		t.order.Remove(elem)
		delete(t.elems, token)
	}
	return entry, true
}

// Len reports the current number of live entries, bounded by cap (§8
// invariant 5).
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Table) evictOldestLocked() {
	oldest := t.order.Front()
	if oldest == nil {
		return
	}
	token := oldest.Value.(store.CorrelationToken)
	t.order.Remove(oldest)
	delete(t.elems, token)
	delete(t.entries, token)
	logging.Warn(nil, "correlation table at capacity, evicting oldest entry",
		zap.String("evicted_token", string(token)), zap.Int("capacity", t.cap))
}
