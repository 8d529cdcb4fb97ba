// Package sqlstore implements domain.PersistentStore on a relational schema
// through database/sql. Every RunInTransaction call maps to one database
// transaction; View runs inside a transaction that is always rolled back.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tasktrack/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	sequenceName = "items"
	itemColumns  = "id, kind, name, description, status, viewed, parent_id"
)

// Store is a relational item store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New applies the dialect schema to db, seeds the id sequence, and returns a
// store that owns db.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: nil db")
	}
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	seed := s.dialect.Rebind(`INSERT INTO item_sequence(name, value) VALUES(?, ?) ON CONFLICT(name) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, seed, sequenceName, 0); err != nil {
		return fmt.Errorf("seed sequence: %w", err)
	}
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the dialect the store was opened with.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// RunInTransaction executes fn inside BEGIN/COMMIT, rolling back when fn or
// the commit fails.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()
	if err := fn(&transaction{ctx: ctx, tx: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// View executes fn inside a transaction that is rolled back afterwards.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin view: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(&transaction{ctx: ctx, tx: sqlTx, dialect: s.dialect})
}

type transaction struct {
	ctx     context.Context
	tx      *sql.Tx
	dialect Dialect
}

func (t *transaction) exec(query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, t.dialect.Rebind(query), args...)
}

func (t *transaction) query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(t.ctx, t.dialect.Rebind(query), args...)
}

func (t *transaction) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, t.dialect.Rebind(query), args...)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (domain.Item, error) {
	var (
		item         domain.Item
		kind, status string
	)
	if err := row.Scan(&item.ID, &kind, &item.Name, &item.Description, &status, &item.Viewed, &item.ParentID); err != nil {
		return domain.Item{}, err
	}
	item.Kind = domain.Kind(kind)
	item.Status = domain.Status(status)
	return item, nil
}

func (t *transaction) childIDs(parentID int64) ([]int64, error) {
	rows, err := t.query(`SELECT id FROM items WHERE kind = ? AND parent_id = ? ORDER BY id`, string(domain.KindSubtask), parentID)
	if err != nil {
		return nil, fmt.Errorf("select children: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Get returns the item with id.
func (t *transaction) Get(id int64) (domain.Item, error) {
	item, err := scanItem(t.queryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, domain.NotFoundError{ID: id}
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("select item %d: %w", id, err)
	}
	if item.Kind == domain.KindEpic {
		if item.ChildIDs, err = t.childIDs(id); err != nil {
			return domain.Item{}, err
		}
	}
	return item, nil
}

// ExistsByIDAndKind reports whether id is stored with kind.
func (t *transaction) ExistsByIDAndKind(id int64, kind domain.Kind) (bool, error) {
	var n int
	if err := t.queryRow(`SELECT COUNT(*) FROM items WHERE id = ? AND kind = ?`, id, string(kind)).Scan(&n); err != nil {
		return false, fmt.Errorf("count item %d: %w", id, err)
	}
	return n > 0, nil
}

// ListByKind returns items of kind in ascending id order.
func (t *transaction) ListByKind(kind domain.Kind) ([]domain.Item, error) {
	rows, err := t.query(`SELECT `+itemColumns+` FROM items WHERE kind = ? ORDER BY id`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("select %s items: %w", kind, err)
	}
	items := make([]domain.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	_ = rows.Close()
	if kind != domain.KindEpic {
		return items, nil
	}
	for i := range items {
		if items[i].ChildIDs, err = t.childIDs(items[i].ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// ChildStatuses returns the statuses of parentID's subtasks in child order.
func (t *transaction) ChildStatuses(parentID int64) ([]domain.Status, error) {
	rows, err := t.query(`SELECT status FROM items WHERE kind = ? AND parent_id = ? ORDER BY id`, string(domain.KindSubtask), parentID)
	if err != nil {
		return nil, fmt.Errorf("select child statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()
	statuses := make([]domain.Status, 0)
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses = append(statuses, domain.Status(status))
	}
	return statuses, rows.Err()
}

// History returns the persisted recency log.
func (t *transaction) History() ([]int64, error) {
	rows, err := t.query(`SELECT item_id FROM history ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Insert stores a new item under the next value of the global sequence.
func (t *transaction) Insert(item domain.Item) (domain.Item, error) {
	if err := item.Validate(); err != nil {
		return domain.Item{}, err
	}
	if _, err := t.exec(`UPDATE item_sequence SET value = value + 1 WHERE name = ?`, sequenceName); err != nil {
		return domain.Item{}, fmt.Errorf("advance sequence: %w", err)
	}
	var id int64
	if err := t.queryRow(`SELECT value FROM item_sequence WHERE name = ?`, sequenceName).Scan(&id); err != nil {
		return domain.Item{}, fmt.Errorf("read sequence: %w", err)
	}
	item = item.Clone()
	item.ID = id
	item.ChildIDs = nil
	if _, err := t.exec(`INSERT INTO items(`+itemColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.Kind), item.Name, item.Description, string(item.Status), item.Viewed, item.ParentID); err != nil {
		return domain.Item{}, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

// Put overwrites an existing item.
func (t *transaction) Put(item domain.Item) error {
	var kind string
	err := t.queryRow(`SELECT kind FROM items WHERE id = ?`, item.ID).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Kind: item.Kind, ID: item.ID}
	}
	if err != nil {
		return fmt.Errorf("select item %d: %w", item.ID, err)
	}
	if domain.Kind(kind) != item.Kind {
		return domain.InvalidError{Field: "kind", Reason: fmt.Sprintf("item %d is %s, not %s", item.ID, kind, item.Kind)}
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if _, err := t.exec(`UPDATE items SET name = ?, description = ?, status = ?, viewed = ?, parent_id = ? WHERE id = ?`,
		item.Name, item.Description, string(item.Status), item.Viewed, item.ParentID, item.ID); err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	return nil
}

// Delete removes id.
func (t *transaction) Delete(id int64) (bool, error) {
	res, err := t.exec(`DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SetHistory replaces the recency log.
func (t *transaction) SetHistory(ids []int64) error {
	if _, err := t.exec(`DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	for pos, id := range ids {
		if _, err := t.exec(`INSERT INTO history(position, item_id) VALUES(?, ?)`, pos, id); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return nil
}
