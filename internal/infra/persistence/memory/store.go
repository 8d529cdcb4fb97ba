// Package memory provides an in-memory implementation of the item store used
// for tests, ephemeral environments, and as the working set of the flat-file
// backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tasktrack/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type memoryState struct {
	items   map[int64]domain.Item
	lastID  int64
	history []int64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Items   []domain.Item `json:"items"`
	LastID  int64         `json:"last_id"`
	History []int64       `json:"history"`
}

func newMemoryState() memoryState {
	return memoryState{items: make(map[int64]domain.Item)}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		items:   make(map[int64]domain.Item, len(s.items)),
		lastID:  s.lastID,
		history: append([]int64(nil), s.history...),
	}
	for id, item := range s.items {
		cloned.items[id] = item.Clone()
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	snap := Snapshot{
		Items:   make([]domain.Item, 0, len(state.items)),
		LastID:  state.lastID,
		History: append([]int64(nil), state.history...),
	}
	for _, id := range sortedIDs(state.items, "") {
		snap.Items = append(snap.Items, decorate(&state, state.items[id]))
	}
	return snap
}

func memoryStateFromSnapshot(snap Snapshot) memoryState {
	state := newMemoryState()
	for _, item := range snap.Items {
		cp := item.Clone()
		cp.ChildIDs = nil
		state.items[cp.ID] = cp
	}
	state.lastID = snap.LastID
	state.history = append([]int64(nil), snap.History...)
	return state
}

// normalizeSnapshot repairs a snapshot loaded from an external source: items
// with invalid identifiers are dropped, subtasks whose epic is missing are
// dropped, epic statuses are re-derived, history entries that reference
// missing items or repeat are dropped, and the id counter never trails the
// highest stored id.
func normalizeSnapshot(snap Snapshot) Snapshot {
	byID := make(map[int64]domain.Item, len(snap.Items))
	for _, item := range snap.Items {
		if item.ID <= 0 || !item.Kind.Valid() {
			continue
		}
		byID[item.ID] = item
	}
	for id, item := range byID {
		if item.Kind != domain.KindSubtask {
			item.ParentID = 0
			byID[id] = item
			continue
		}
		parent, ok := byID[item.ParentID]
		if !ok || parent.Kind != domain.KindEpic {
			delete(byID, id)
		}
	}
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := Snapshot{LastID: snap.LastID, Items: make([]domain.Item, 0, len(ids))}
	for _, id := range ids {
		item := byID[id]
		if item.Kind == domain.KindEpic {
			item.Status = domain.DeriveStatus(childStatusesInOrder(byID, ids, id))
		}
		out.Items = append(out.Items, item)
		if id > out.LastID {
			out.LastID = id
		}
	}
	seen := make(map[int64]struct{}, len(snap.History))
	for _, id := range snap.History {
		if _, ok := byID[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out.History = append(out.History, id)
	}
	return out
}

func childStatusesInOrder(byID map[int64]domain.Item, sortedIDs []int64, parentID int64) []domain.Status {
	var out []domain.Status
	for _, id := range sortedIDs {
		if item := byID[id]; item.Kind == domain.KindSubtask && item.ParentID == parentID {
			out = append(out, item.Status)
		}
	}
	return out
}

// sortedIDs returns identifiers of the given kind (all kinds when empty) in ascending order.
func sortedIDs(items map[int64]domain.Item, kind domain.Kind) []int64 {
	ids := make([]int64, 0, len(items))
	for id, item := range items {
		if kind == "" || item.Kind == kind {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func childIDs(state *memoryState, parentID int64) []int64 {
	var ids []int64
	for id, item := range state.items {
		if item.Kind == domain.KindSubtask && item.ParentID == parentID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func decorate(state *memoryState, item domain.Item) domain.Item {
	cp := item.Clone()
	if cp.Kind == domain.KindEpic {
		cp.ChildIDs = childIDs(state, cp.ID)
	}
	return cp
}

// Store provides an in-memory transactional item store.
type Store struct {
	mu    sync.RWMutex
	state memoryState
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{state: newMemoryState()}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot after normalizing it.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(normalizeSnapshot(snapshot))
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the committed state only when fn returns nil.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only copy of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(transactionView{state: &snapshot})
}

// transactionView exposes a read-only view of a state.
type transactionView struct {
	state *memoryState
}

// Get returns the item with id.
func (v transactionView) Get(id int64) (domain.Item, error) {
	item, ok := v.state.items[id]
	if !ok {
		return domain.Item{}, domain.NotFoundError{ID: id}
	}
	return decorate(v.state, item), nil
}

// ExistsByIDAndKind reports whether id is stored with kind.
func (v transactionView) ExistsByIDAndKind(id int64, kind domain.Kind) (bool, error) {
	item, ok := v.state.items[id]
	return ok && item.Kind == kind, nil
}

// ListByKind returns items of kind in ascending id order.
func (v transactionView) ListByKind(kind domain.Kind) ([]domain.Item, error) {
	ids := sortedIDs(v.state.items, kind)
	out := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, decorate(v.state, v.state.items[id]))
	}
	return out, nil
}

// ChildStatuses returns the statuses of parentID's subtasks in child order.
func (v transactionView) ChildStatuses(parentID int64) ([]domain.Status, error) {
	ids := childIDs(v.state, parentID)
	out := make([]domain.Status, 0, len(ids))
	for _, id := range ids {
		out = append(out, v.state.items[id].Status)
	}
	return out, nil
}

// History returns the persisted recency log.
func (v transactionView) History() ([]int64, error) {
	return append([]int64(nil), v.state.history...), nil
}

// transaction mutates a private copy of the store state.
type transaction struct {
	state memoryState
}

func (tx *transaction) view() transactionView { return transactionView{state: &tx.state} }

// Get exposes lookup within the transaction scope.
func (tx *transaction) Get(id int64) (domain.Item, error) { return tx.view().Get(id) }

// ExistsByIDAndKind exposes the existence check within the transaction scope.
func (tx *transaction) ExistsByIDAndKind(id int64, kind domain.Kind) (bool, error) {
	return tx.view().ExistsByIDAndKind(id, kind)
}

// ListByKind exposes listing within the transaction scope.
func (tx *transaction) ListByKind(kind domain.Kind) ([]domain.Item, error) {
	return tx.view().ListByKind(kind)
}

// ChildStatuses exposes child status lookup within the transaction scope.
func (tx *transaction) ChildStatuses(parentID int64) ([]domain.Status, error) {
	return tx.view().ChildStatuses(parentID)
}

// History exposes the recency log within the transaction scope.
func (tx *transaction) History() ([]int64, error) { return tx.view().History() }

// Insert stores a new item under the next global identifier.
func (tx *transaction) Insert(item domain.Item) (domain.Item, error) {
	if err := item.Validate(); err != nil {
		return domain.Item{}, err
	}
	tx.state.lastID++
	item = item.Clone()
	item.ID = tx.state.lastID
	item.ChildIDs = nil
	if _, exists := tx.state.items[item.ID]; exists {
		return domain.Item{}, fmt.Errorf("item %d already exists", item.ID)
	}
	tx.state.items[item.ID] = item
	return decorate(&tx.state, item), nil
}

// Put overwrites an existing item.
func (tx *transaction) Put(item domain.Item) error {
	current, ok := tx.state.items[item.ID]
	if !ok {
		return domain.NotFoundError{Kind: item.Kind, ID: item.ID}
	}
	if current.Kind != item.Kind {
		return domain.InvalidError{Field: "kind", Reason: fmt.Sprintf("item %d is %s, not %s", item.ID, current.Kind, item.Kind)}
	}
	item = item.Clone()
	item.ChildIDs = nil
	if err := item.Validate(); err != nil {
		return err
	}
	tx.state.items[item.ID] = item
	return nil
}

// Delete removes id from the transaction state.
func (tx *transaction) Delete(id int64) (bool, error) {
	if _, ok := tx.state.items[id]; !ok {
		return false, nil
	}
	delete(tx.state.items, id)
	return true, nil
}

// SetHistory replaces the recency log.
func (tx *transaction) SetHistory(ids []int64) error {
	tx.state.history = append([]int64(nil), ids...)
	return nil
}
