package domain

import "context"

// TransactionView provides read-only access to the item population within a
// transaction or a read snapshot. Epics returned by any method carry ChildIDs.
type TransactionView interface {
	// Get returns the item with id or a NotFoundError.
	Get(id int64) (Item, error)
	// ExistsByIDAndKind reports whether id is stored with the given kind.
	ExistsByIDAndKind(id int64, kind Kind) (bool, error)
	// ListByKind returns every item of kind in ascending identifier order.
	ListByKind(kind Kind) ([]Item, error)
	// ChildStatuses returns the statuses of the epic's subtasks in child order.
	ChildStatuses(parentID int64) ([]Status, error)
	// History returns the persisted recency log, oldest first.
	History() ([]int64, error)
}

// Transaction exposes the mutations a backend must support within an atomic
// scope. Nothing written through a Transaction is visible outside it until the
// enclosing RunInTransaction returns without error.
type Transaction interface {
	TransactionView
	// Insert assigns the next global identifier to item and stores it.
	Insert(item Item) (Item, error)
	// Put overwrites an existing item; it fails with NotFoundError when absent.
	Put(item Item) error
	// Delete removes id and reports whether it existed.
	Delete(id int64) (bool, error)
	// SetHistory replaces the persisted recency log.
	SetHistory(ids []int64) error
}

// PersistentStore is the narrow contract the coordinator consumes. Begin,
// commit, and rollback are expressed through RunInTransaction: fn runs against
// a private working state that is committed when fn returns nil and discarded
// otherwise.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error
	View(ctx context.Context, fn func(view TransactionView) error) error
	Close() error
}
