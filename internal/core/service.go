package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tasktrack/internal/recency"
	"tasktrack/pkg/domain"

	"github.com/google/uuid"
)

// Service is the consistency coordinator. Every public operation runs as one
// atomic unit: store writes, epic status recomputation, and recency updates
// either all become visible or none do. Units are serialized by an internal
// mutex.
type Service struct {
	store    domain.PersistentStore
	mu       sync.Mutex
	tracker  *recency.Tracker
	capacity int

	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
}

// NewService constructs a service backed by store and rebuilds the recency
// log from the history the store persisted. History entries that no longer
// resolve to an item are dropped.
func NewService(ctx context.Context, store domain.PersistentStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("core: persistent store required")
	}
	s := &Service{
		store:    store,
		capacity: recency.DefaultCapacity,
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	var history []int64
	err := store.View(ctx, func(v domain.TransactionView) error {
		ids, err := v.History()
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := v.Get(id); err != nil {
				if domain.IsNotFound(err) {
					continue
				}
				return err
			}
			history = append(history, id)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("load_history", err)
	}
	s.tracker = recency.FromIDs(s.capacity, history)
	s.logger.Info("service ready", "history_size", s.tracker.Len(), "history_capacity", s.capacity)
	return s, nil
}

// Store returns the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Close flushes the logger when it buffers and releases the underlying store.
func (s *Service) Close() error {
	if syncer, ok := s.logger.(interface{ Sync() }); ok {
		syncer.Sync()
	}
	return s.store.Close()
}

// unit is the working state of one atomic unit: the open store transaction
// plus a private copy of the recency log that replaces the live one only
// after the store commits.
type unit struct {
	tx      domain.Transaction
	tracker *recency.Tracker
	touched bool
}

func (u *unit) recordView(id int64) {
	u.tracker.RecordView(id)
	u.touched = true
}

func (u *unit) forget(id int64) {
	if u.tracker.Remove(id) {
		u.touched = true
	}
}

func (u *unit) forgetKind(kind domain.Kind, kindOf func(int64) (domain.Kind, bool)) {
	if u.tracker.RemoveAllOfKind(kind, kindOf) > 0 {
		u.touched = true
	}
}

// run executes fn as one atomic unit. check runs first and must not touch the
// store; a failing check rejects the unit before a transaction is opened.
func (s *Service) run(ctx context.Context, op string, check func() error, fn func(u *unit) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unitID := uuid.NewString()
	ctx = withUnitID(ctx, unitID)
	ctx, span := s.tracer.Start(ctx, op)
	started := s.clock.Now()

	var err error
	if check != nil {
		err = check()
	}
	if err == nil {
		working := s.tracker.Clone()
		err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			u := &unit{tx: tx, tracker: working}
			if err := fn(u); err != nil {
				return err
			}
			if u.touched {
				return tx.SetHistory(working.IDs())
			}
			return nil
		})
		err = classify(op, err)
		if err == nil {
			s.tracker = working
		}
	}
	s.finish(ctx, span, op, unitID, started, err)
	return err
}

// read executes fn against a read-only view; the recency log is not changed.
func (s *Service) read(ctx context.Context, op string, check func() error, fn func(v domain.TransactionView) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unitID := uuid.NewString()
	ctx = withUnitID(ctx, unitID)
	ctx, span := s.tracer.Start(ctx, op)
	started := s.clock.Now()

	var err error
	if check != nil {
		err = check()
	}
	if err == nil {
		err = classify(op, s.store.View(ctx, fn))
	}
	s.finish(ctx, span, op, unitID, started, err)
	return err
}

func (s *Service) finish(ctx context.Context, span TraceSpan, op, unitID string, started time.Time, err error) {
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, s.clock.Now().Sub(started))
	if gauge, ok := s.metrics.(HistoryGauge); ok {
		gauge.SetHistorySize(s.tracker.Len())
	}
	switch {
	case err == nil:
		s.logger.Debug("unit committed", "unit", unitID, "operation", op)
	case domain.IsNotFound(err):
		s.logger.Info("unit rolled back", "unit", unitID, "operation", op, "error", err)
	case domain.IsInvalid(err):
		s.logger.Warn("unit rejected", "unit", unitID, "operation", op, "error", err)
	default:
		s.logger.Error("unit failed", "unit", unitID, "operation", op, "error", err)
	}
}

// classify maps any error that is not a business outcome to a storage failure.
func classify(op string, err error) error {
	if err == nil || domain.IsNotFound(err) || domain.IsInvalid(err) {
		return err
	}
	return domain.NewStorageError(op, err)
}

// HistoryIDs returns the recency log, oldest first.
func (s *Service) HistoryIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.IDs()
}
