package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tasktrack/internal/blob"
	"tasktrack/internal/infra/persistence/file"
	"tasktrack/internal/infra/persistence/memory"
	"tasktrack/internal/infra/persistence/sqlite"
	"tasktrack/pkg/domain"

	"github.com/stretchr/testify/require"
)

var errDiskGone = errors.New("disk gone")

// faultyStore wraps a real store and fails the selected transaction method.
type faultyStore struct {
	domain.PersistentStore
	failOn string
	txRuns int
}

func (f *faultyStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	f.txRuns++
	return f.PersistentStore.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return fn(&faultyTx{Transaction: tx, failOn: f.failOn})
	})
}

type faultyTx struct {
	domain.Transaction
	failOn string
}

func (t *faultyTx) Put(item domain.Item) error {
	if t.failOn == "put" {
		return errDiskGone
	}
	return t.Transaction.Put(item)
}

func (t *faultyTx) Delete(id int64) (bool, error) {
	if t.failOn == "delete" {
		return false, errDiskGone
	}
	return t.Transaction.Delete(id)
}

func (t *faultyTx) SetHistory(ids []int64) error {
	if t.failOn == "history" {
		return errDiskGone
	}
	return t.Transaction.SetHistory(ids)
}

func (t *faultyTx) ChildStatuses(parentID int64) ([]domain.Status, error) {
	if t.failOn == "children" {
		return nil, errDiskGone
	}
	return t.Transaction.ChildStatuses(parentID)
}

func newMemoryService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), memory.NewStore(), opts...)
	require.NoError(t, err)
	return svc
}

// backends returns a fresh instance of every store implementation.
func backends(t *testing.T) map[string]domain.PersistentStore {
	t.Helper()
	ctx := context.Background()
	fileStore, err := file.NewStore(ctx, blob.NewMemory())
	require.NoError(t, err)
	sqliteStore, err := sqlite.NewStore(ctx, filepath.Join(t.TempDir(), "items.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })
	return map[string]domain.PersistentStore{
		"memory": memory.NewStore(),
		"file":   fileStore,
		"sqlite": sqliteStore,
	}
}

func mustCreate(t *testing.T, svc *Service, kind domain.Kind, name string, status domain.Status, parent int64) domain.Item {
	t.Helper()
	ctx := context.Background()
	item := domain.Item{Name: name, Status: status, ParentID: parent}
	var (
		created domain.Item
		err     error
	)
	switch kind {
	case domain.KindTask:
		created, err = svc.CreateTask(ctx, item)
	case domain.KindEpic:
		created, err = svc.CreateEpic(ctx, item)
	default:
		created, err = svc.CreateSubtask(ctx, item)
	}
	require.NoError(t, err)
	return created
}

func mustView(t *testing.T, svc *Service, kind domain.Kind, id int64) domain.Item {
	t.Helper()
	item, err := svc.View(context.Background(), kind, id)
	require.NoError(t, err)
	return item
}

func statusOf(t *testing.T, svc *Service, id int64) domain.Status {
	t.Helper()
	var status domain.Status
	require.NoError(t, svc.Store().View(context.Background(), func(v domain.TransactionView) error {
		item, err := v.Get(id)
		status = item.Status
		return err
	}))
	return status
}

func exists(t *testing.T, svc *Service, id int64) bool {
	t.Helper()
	var found bool
	require.NoError(t, svc.Store().View(context.Background(), func(v domain.TransactionView) error {
		_, err := v.Get(id)
		if domain.IsNotFound(err) {
			return nil
		}
		found = err == nil
		return err
	}))
	return found
}
