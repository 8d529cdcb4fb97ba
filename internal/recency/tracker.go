// Package recency maintains the bounded, deduplicated log of recently viewed
// item identifiers.
package recency

import (
	"iter"

	"tasktrack/pkg/domain"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCapacity is the canonical bound on the number of tracked identifiers.
const DefaultCapacity = 10

// Tracker is an order-preserving log of identifiers, oldest first. Promote,
// insert, and remove are O(1) through the LRU's linked list plus index map.
// A Tracker is not safe for concurrent use; the coordinator owns it.
type Tracker struct {
	entries  *simplelru.LRU[int64, struct{}]
	capacity int
}

// New returns an empty tracker bounded to capacity entries. A non-positive
// capacity selects DefaultCapacity.
func New(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, err := simplelru.NewLRU[int64, struct{}](capacity, nil)
	if err != nil {
		// NewLRU only rejects non-positive sizes.
		panic(err)
	}
	return &Tracker{entries: entries, capacity: capacity}
}

// FromIDs builds a tracker by recording ids in order, so only the most recent
// capacity entries survive.
func FromIDs(capacity int, ids []int64) *Tracker {
	t := New(capacity)
	for _, id := range ids {
		t.RecordView(id)
	}
	return t
}

// Capacity returns the configured bound.
func (t *Tracker) Capacity() int { return t.capacity }

// Len returns the number of tracked identifiers.
func (t *Tracker) Len() int { return t.entries.Len() }

// Contains reports whether id is tracked without changing its position.
func (t *Tracker) Contains(id int64) bool { return t.entries.Contains(id) }

// RecordView moves id to the most-recent end, inserting it when absent. When
// the insert pushes the log past capacity the least recently viewed entry is
// dropped and returned.
func (t *Tracker) RecordView(id int64) (evicted int64, ok bool) {
	if t.entries.Contains(id) {
		// Get promotes the existing node instead of allocating a new one.
		t.entries.Get(id)
		return 0, false
	}
	if t.entries.Len() >= t.capacity {
		evicted, _, ok = t.entries.RemoveOldest()
	}
	t.entries.Add(id, struct{}{})
	return evicted, ok
}

// Remove drops id and reports whether it was present.
func (t *Tracker) Remove(id int64) bool {
	return t.entries.Remove(id)
}

// RemoveFunc drops every identifier matching pred and returns how many were removed.
func (t *Tracker) RemoveFunc(pred func(id int64) bool) int {
	removed := 0
	for _, id := range t.entries.Keys() {
		if pred(id) && t.entries.Remove(id) {
			removed++
		}
	}
	return removed
}

// RemoveAllOfKind drops every identifier whose item has the given kind.
// kindOf resolves identifiers to kinds; identifiers it cannot resolve are kept.
func (t *Tracker) RemoveAllOfKind(kind domain.Kind, kindOf func(id int64) (domain.Kind, bool)) int {
	return t.RemoveFunc(func(id int64) bool {
		k, ok := kindOf(id)
		return ok && k == kind
	})
}

// List yields tracked identifiers oldest first. Each iteration walks the
// current state afresh and never mutates it.
func (t *Tracker) List() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for _, id := range t.entries.Keys() {
			if !yield(id) {
				return
			}
		}
	}
}

// IDs returns the tracked identifiers oldest first.
func (t *Tracker) IDs() []int64 {
	return t.entries.Keys()
}

// Clone returns an independent copy with the same order and capacity.
func (t *Tracker) Clone() *Tracker {
	return FromIDs(t.capacity, t.entries.Keys())
}
