// Package file persists the item store as two CSV files (items and history)
// plus an identifier sequence in a blob store. The working set lives in a
// memory.Store; every committed transaction rewrites all three blobs.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"tasktrack/internal/blob"
	"tasktrack/internal/infra/persistence/memory"
	"tasktrack/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	// ItemsKey is the blob key of the items file.
	ItemsKey = "items.csv"
	// HistoryKey is the blob key of the history file.
	HistoryKey = "history.csv"
	// SequenceKey is the blob key holding the last issued identifier.
	SequenceKey = "sequence"
)

// Store is a flat-file backed persistent store.
//
// A commit that fails part way through rewrites the blobs from the state
// before the transaction, so a reload never sees a rolled-back change.
type Store struct {
	mem   *memory.Store
	blobs blob.Store
	mu    sync.Mutex
}

// NewStore loads any existing files from blobs and returns a ready store.
func NewStore(ctx context.Context, blobs blob.Store) (*Store, error) {
	if blobs == nil {
		return nil, fmt.Errorf("file store: blob store required")
	}
	s := &Store{mem: memory.NewStore(), blobs: blobs}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Blobs exposes the underlying blob store.
func (s *Store) Blobs() blob.Store { return s.blobs }

func (s *Store) load(ctx context.Context) error {
	var items []domain.Item
	found, err := s.read(ctx, ItemsKey, func(r io.Reader) error {
		var derr error
		items, derr = DecodeItems(r)
		return derr
	})
	if err != nil || !found {
		return err
	}
	var history []int64
	if _, err := s.read(ctx, HistoryKey, func(r io.Reader) error {
		var derr error
		history, derr = DecodeHistory(r)
		return derr
	}); err != nil {
		return err
	}
	viewed := make(map[int64]struct{}, len(history))
	for _, id := range history {
		viewed[id] = struct{}{}
	}
	for i := range items {
		if _, ok := viewed[items[i].ID]; ok {
			items[i].Viewed = true
		}
	}
	var lastID int64
	if _, err := s.read(ctx, SequenceKey, func(r io.Reader) error {
		var derr error
		lastID, derr = DecodeSequence(r)
		return derr
	}); err != nil {
		return err
	}
	s.mem.ImportState(memory.Snapshot{Items: items, LastID: lastID, History: history})
	return nil
}

func (s *Store) read(ctx context.Context, key string, decode func(io.Reader) error) (bool, error) {
	_, rc, err := s.blobs.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	if err := decode(rc); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// RunInTransaction applies fn to the working set and rewrites the blobs. If
// any blob cannot be written, both the working set and the blobs are restored
// to their state before fn ran.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.mem.ExportState()
	if err := s.mem.RunInTransaction(ctx, fn); err != nil {
		return err
	}
	if err := s.persist(ctx, s.mem.ExportState()); err != nil {
		s.mem.ImportState(before)
		if rerr := s.persist(ctx, before); rerr != nil {
			return errors.Join(err, fmt.Errorf("restore: %w", rerr))
		}
		return err
	}
	return nil
}

// View runs fn against a read-only view of the working set.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	return s.mem.View(ctx, fn)
}

// Close is a no-op; every commit is already durable.
func (s *Store) Close() error { return nil }

func (s *Store) persist(ctx context.Context, snap memory.Snapshot) error {
	byID := make(map[int64]domain.Item, len(snap.Items))
	for _, item := range snap.Items {
		byID[item.ID] = item
	}
	history := make([]domain.Item, 0, len(snap.History))
	for _, id := range snap.History {
		if item, ok := byID[id]; ok {
			history = append(history, item)
		}
	}

	var items, hist, seq bytes.Buffer
	if err := EncodeItems(&items, snap.Items); err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	if err := EncodeHistory(&hist, history); err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := EncodeSequence(&seq, snap.LastID); err != nil {
		return fmt.Errorf("encode sequence: %w", err)
	}
	for _, w := range []struct {
		key  string
		body *bytes.Buffer
	}{{ItemsKey, &items}, {HistoryKey, &hist}, {SequenceKey, &seq}} {
		if _, err := s.blobs.Put(ctx, w.key, w.body); err != nil {
			return fmt.Errorf("write %s: %w", w.key, err)
		}
	}
	return nil
}
