package file

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"tasktrack/internal/blob"
	"tasktrack/pkg/domain"

	"github.com/stretchr/testify/require"
)

type failingBlobs struct {
	blob.Store
	failPut bool
	failKey string
}

func (f *failingBlobs) Put(ctx context.Context, key string, r io.Reader) (blob.Info, error) {
	if f.failPut || (f.failKey != "" && key == f.failKey) {
		return blob.Info{}, errors.New("disk full")
	}
	return f.Store.Put(ctx, key, r)
}

func readBlob(t *testing.T, blobs blob.Store, key string) string {
	t.Helper()
	_, rc, err := blobs.Get(context.Background(), key)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func seed(t *testing.T, s *Store) (task, epic, sub domain.Item) {
	t.Helper()
	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		if task, err = tx.Insert(domain.Item{Kind: domain.KindTask, Name: "task", Status: domain.StatusNew}); err != nil {
			return err
		}
		if epic, err = tx.Insert(domain.Item{Kind: domain.KindEpic, Name: "epic", Status: domain.StatusDone}); err != nil {
			return err
		}
		if sub, err = tx.Insert(domain.Item{Kind: domain.KindSubtask, Name: "sub", Status: domain.StatusDone, ParentID: epic.ID}); err != nil {
			return err
		}
		return tx.SetHistory([]int64{sub.ID, task.ID})
	})
	require.NoError(t, err)
	return task, epic, sub
}

func TestStorePersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	s, err := NewStore(ctx, blobs)
	require.NoError(t, err)
	task, epic, sub := seed(t, s)

	require.Equal(t, "id,type,name,status,description,epic\n1,TASK,task,NEW,,\n2,EPIC,epic,DONE,,\n3,SUBTASK,sub,DONE,,2\n", readBlob(t, blobs, ItemsKey))
	require.Equal(t, "3,SUBTASK,sub,DONE,,2\n1,TASK,task,NEW,,\n", readBlob(t, blobs, HistoryKey))
	require.Equal(t, "3\n", readBlob(t, blobs, SequenceKey))

	reloaded, err := NewStore(ctx, blobs)
	require.NoError(t, err)
	err = reloaded.View(ctx, func(v domain.TransactionView) error {
		got, err := v.Get(epic.ID)
		require.NoError(t, err)
		require.Equal(t, []int64{sub.ID}, got.ChildIDs)
		require.False(t, got.Viewed)

		got, err = v.Get(task.ID)
		require.NoError(t, err)
		require.True(t, got.Viewed, "history entries are marked viewed on load")

		history, err := v.History()
		require.NoError(t, err)
		require.Equal(t, []int64{sub.ID, task.ID}, history)
		return nil
	})
	require.NoError(t, err)

	err = reloaded.RunInTransaction(ctx, func(tx domain.Transaction) error {
		next, err := tx.Insert(domain.Item{Kind: domain.KindTask, Name: "next", Status: domain.StatusNew})
		require.NoError(t, err)
		require.Equal(t, int64(4), next.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestStoreRestoresWorkingSetWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	blobs := &failingBlobs{Store: blob.NewMemory()}
	s, err := NewStore(ctx, blobs)
	require.NoError(t, err)
	task, _, _ := seed(t, s)

	blobs.failPut = true
	err = s.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.Delete(task.ID)
		return err
	})
	require.ErrorContains(t, err, "disk full")

	err = s.View(ctx, func(v domain.TransactionView) error {
		_, err := v.Get(task.ID)
		return err
	})
	require.NoError(t, err)
}

func TestStoreRestoresBlobsWhenLaterWriteFails(t *testing.T) {
	ctx := context.Background()
	blobs := &failingBlobs{Store: blob.NewMemory()}
	s, err := NewStore(ctx, blobs)
	require.NoError(t, err)
	task, _, _ := seed(t, s)
	itemsBefore := readBlob(t, blobs, ItemsKey)

	blobs.failKey = HistoryKey
	err = s.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.Delete(task.ID)
		return err
	})
	require.ErrorContains(t, err, "disk full")
	require.Equal(t, itemsBefore, readBlob(t, blobs, ItemsKey))

	blobs.failKey = ""
	reloaded, err := NewStore(ctx, blobs)
	require.NoError(t, err)
	err = reloaded.View(ctx, func(v domain.TransactionView) error {
		_, err := v.Get(task.ID)
		return err
	})
	require.NoError(t, err)
}

func TestStoreNeverReissuesIDsAfterRestart(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	s, err := NewStore(ctx, blobs)
	require.NoError(t, err)

	var second domain.Item
	err = s.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.Insert(domain.Item{Kind: domain.KindTask, Name: "first", Status: domain.StatusNew}); err != nil {
			return err
		}
		var err error
		second, err = tx.Insert(domain.Item{Kind: domain.KindTask, Name: "second", Status: domain.StatusNew})
		return err
	})
	require.NoError(t, err)
	err = s.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.Delete(second.ID)
		return err
	})
	require.NoError(t, err)

	reopened, err := NewStore(ctx, blobs)
	require.NoError(t, err)
	err = reopened.RunInTransaction(ctx, func(tx domain.Transaction) error {
		next, err := tx.Insert(domain.Item{Kind: domain.KindTask, Name: "third", Status: domain.StatusNew})
		if err != nil {
			return err
		}
		require.Greater(t, next.ID, second.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestStoreRejectsCorruptSequence(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	_, err := blobs.Put(ctx, ItemsKey, strings.NewReader("id,type,name,status,description,epic\n"))
	require.NoError(t, err)
	_, err = blobs.Put(ctx, SequenceKey, strings.NewReader("nope\n"))
	require.NoError(t, err)
	_, err = NewStore(ctx, blobs)
	require.Error(t, err)
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	_, err := blobs.Put(ctx, ItemsKey, strings.NewReader("id,type,name,status,description,epic\n1,TASK,a,WAT,,\n"))
	require.NoError(t, err)
	_, err = NewStore(ctx, blobs)
	require.Error(t, err)
}

func TestNewStoreRequiresBlobs(t *testing.T) {
	_, err := NewStore(context.Background(), nil)
	require.Error(t, err)
}
