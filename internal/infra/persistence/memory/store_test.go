package memory

import (
	"context"
	"errors"
	"testing"

	"tasktrack/pkg/domain"
)

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	var epicID int64
	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.Get(42); !domain.IsNotFound(err) {
			t.Fatalf("expected not found for missing item, got %v", err)
		}
		epic, err := tx.Insert(domain.Item{Kind: domain.KindEpic, Name: "release", Status: domain.StatusNew})
		if err != nil {
			return err
		}
		epicID = epic.ID
		if _, err := tx.Insert(domain.Item{Kind: domain.KindSubtask, Name: "tag", Status: domain.StatusDone, ParentID: epic.ID}); err != nil {
			return err
		}
		got, err := tx.Get(epic.ID)
		if err != nil {
			return err
		}
		if len(got.ChildIDs) != 1 {
			t.Fatalf("expected derived child ids, got %v", got.ChildIDs)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	snapshot := store.ExportState()
	if len(snapshot.Items) != 2 || snapshot.LastID != 2 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	store.ImportState(Snapshot{})
	if err := store.View(ctx, func(v domain.TransactionView) error {
		_, err := v.Get(epicID)
		return err
	}); !domain.IsNotFound(err) {
		t.Fatalf("expected cleared state, got %v", err)
	}
	store.ImportState(snapshot)
	if err := store.View(ctx, func(v domain.TransactionView) error {
		_, err := v.Get(epicID)
		return err
	}); err != nil {
		t.Fatalf("expected restored state: %v", err)
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")
	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.Insert(domain.Item{Kind: domain.KindTask, Name: "lost", Status: domain.StatusNew}); err != nil {
			return err
		}
		if err := tx.SetHistory([]int64{1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	snap := store.ExportState()
	if len(snap.Items) != 0 || snap.LastID != 0 || len(snap.History) != 0 {
		t.Fatalf("expected untouched state after rollback, got %+v", snap)
	}
}

func TestStoreIdentifiersAreGlobalAndNeverReused(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	var ids []int64
	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, kind := range []domain.Kind{domain.KindTask, domain.KindEpic, domain.KindTask} {
			item, err := tx.Insert(domain.Item{Kind: kind, Name: "x", Status: domain.StatusNew})
			if err != nil {
				return err
			}
			ids = append(ids, item.ID)
		}
		_, err := tx.Delete(ids[2])
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("expected global sequence 1..3, got %v", ids)
	}
	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		item, err := tx.Insert(domain.Item{Kind: domain.KindTask, Name: "y", Status: domain.StatusNew})
		if err != nil {
			return err
		}
		if item.ID != 4 {
			t.Fatalf("expected id 4 after deleting 3, got %d", item.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestTransactionPutGuards(t *testing.T) {
	store := NewStore()
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.Put(domain.Item{ID: 9, Kind: domain.KindTask, Name: "x", Status: domain.StatusNew}); !domain.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		task, err := tx.Insert(domain.Item{Kind: domain.KindTask, Name: "x", Status: domain.StatusNew})
		if err != nil {
			return err
		}
		task.Kind = domain.KindEpic
		if err := tx.Put(task); !domain.IsInvalid(err) {
			t.Fatalf("expected kind change to be invalid, got %v", err)
		}
		task.Kind = domain.KindTask
		task.Name = " "
		if err := tx.Put(task); !domain.IsInvalid(err) {
			t.Fatalf("expected blank name to be invalid, got %v", err)
		}
		if _, err := tx.Insert(domain.Item{Kind: domain.KindTask, Status: domain.StatusNew}); !domain.IsInvalid(err) {
			t.Fatalf("expected blank insert to be invalid, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestListByKindAndChildStatuses(t *testing.T) {
	store := NewStore()
	var epic domain.Item
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		epic, err = tx.Insert(domain.Item{Kind: domain.KindEpic, Name: "e", Status: domain.StatusNew})
		if err != nil {
			return err
		}
		for _, st := range []domain.Status{domain.StatusDone, domain.StatusNew} {
			if _, err := tx.Insert(domain.Item{Kind: domain.KindSubtask, Name: "s", Status: st, ParentID: epic.ID}); err != nil {
				return err
			}
		}
		_, err = tx.Insert(domain.Item{Kind: domain.KindTask, Name: "t", Status: domain.StatusNew})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	err = store.View(context.Background(), func(v domain.TransactionView) error {
		subs, err := v.ListByKind(domain.KindSubtask)
		if err != nil {
			return err
		}
		if len(subs) != 2 || subs[0].ID >= subs[1].ID {
			t.Fatalf("expected two subtasks in id order, got %+v", subs)
		}
		statuses, err := v.ChildStatuses(epic.ID)
		if err != nil {
			return err
		}
		if len(statuses) != 2 || statuses[0] != domain.StatusDone || statuses[1] != domain.StatusNew {
			t.Fatalf("unexpected child statuses %v", statuses)
		}
		ok, err := v.ExistsByIDAndKind(epic.ID, domain.KindTask)
		if err != nil || ok {
			t.Fatalf("epic must not exist as task: ok=%v err=%v", ok, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestImportStateNormalizesSnapshot(t *testing.T) {
	store := NewStore()
	store.ImportState(Snapshot{
		LastID: 1,
		Items: []domain.Item{
			{ID: 2, Kind: domain.KindEpic, Name: "e", Status: domain.StatusNew},
			{ID: 3, Kind: domain.KindSubtask, Name: "ok", Status: domain.StatusDone, ParentID: 2},
			{ID: 4, Kind: domain.KindSubtask, Name: "orphan", Status: domain.StatusNew, ParentID: 99},
			{ID: 0, Kind: domain.KindTask, Name: "bad id", Status: domain.StatusNew},
		},
		History: []int64{3, 4, 3, 2},
	})
	snap := store.ExportState()
	if snap.LastID != 3 {
		t.Fatalf("expected counter raised to max id, got %d", snap.LastID)
	}
	if len(snap.Items) != 2 {
		t.Fatalf("expected orphan and invalid items dropped, got %+v", snap.Items)
	}
	if snap.Items[0].Status != domain.StatusDone {
		t.Fatalf("expected epic status re-derived, got %s", snap.Items[0].Status)
	}
	if len(snap.History) != 2 || snap.History[0] != 3 || snap.History[1] != 2 {
		t.Fatalf("unexpected history %v", snap.History)
	}
}

func TestCanceledContextIsRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewStore()
	if err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if err := store.View(ctx, func(domain.TransactionView) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
