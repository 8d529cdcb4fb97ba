package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"tasktrack/pkg/domain"
)

// Outcome labels for a finished atomic unit.
const (
	OutcomeCommitted      = "committed"
	OutcomeNotFound       = "not_found"
	OutcomeInvalid        = "invalid"
	OutcomeStorageFailure = "storage_failure"
)

// OutcomeOf names the failure class of a unit's final error.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeCommitted
	case domain.IsNotFound(err):
		return OutcomeNotFound
	case domain.IsInvalid(err):
		return OutcomeInvalid
	default:
		return OutcomeStorageFailure
	}
}

var expvarSeq uint64

// OperationStats aggregates the units run for one service operation.
type OperationStats struct {
	Units    int64   `json:"units"`
	Failures int64   `json:"failures"`
	TotalMS  float64 `json:"total_ms"`
	MaxMS    float64 `json:"max_ms"`
}

// ExpvarMetricsSnapshot is what the expvar endpoint serves for a recorder.
type ExpvarMetricsSnapshot struct {
	Operations  map[string]OperationStats `json:"operations"`
	HistorySize int                       `json:"history_size"`
	TakenAt     time.Time                 `json:"taken_at"`
}

// ExpvarMetricsRecorder keeps per-operation unit counts and latency in
// process and serves them through expvar.
type ExpvarMetricsRecorder struct {
	name        string
	mu          sync.Mutex
	ops         map[string]OperationStats
	historySize int
}

// NewExpvarMetricsRecorder publishes a recorder under name. An empty or
// taken name gets a numeric suffix.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" || expvar.Get(name) != nil {
		prefix := name
		if prefix == "" {
			prefix = "tasktrack_units"
		}
		for {
			name = fmt.Sprintf("%s_%d", prefix, atomic.AddUint64(&expvarSeq, 1))
			if expvar.Get(name) == nil {
				break
			}
		}
	}
	rec := &ExpvarMetricsRecorder{name: name, ops: make(map[string]OperationStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name is the expvar key the recorder is published under.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot copies the current counters.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make(map[string]OperationStats, len(r.ops))
	for op, st := range r.ops {
		ops[op] = st
	}
	return ExpvarMetricsSnapshot{Operations: ops, HistorySize: r.historySize, TakenAt: time.Now().UTC()}
}

// Observe counts one finished unit of operation.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.ops[operation]
	st.Units++
	if !success {
		st.Failures++
	}
	st.TotalMS += ms
	if ms > st.MaxMS {
		st.MaxMS = ms
	}
	r.ops[operation] = st
}

// SetHistorySize records the recency log length after a unit.
func (r *ExpvarMetricsRecorder) SetHistorySize(n int) {
	r.mu.Lock()
	r.historySize = n
	r.mu.Unlock()
}

// JSONTraceEntry is one finished unit as written by JSONTraceTracer.
type JSONTraceEntry struct {
	UnitID     string    `json:"unit_id,omitempty"`
	Operation  string    `json:"operation"`
	Outcome    string    `json:"outcome"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes one JSON line per unit and keeps the entries.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer returns a tracer writing to w. A nil w only retains entries.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns the units traced so far, in completion order.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start opens a span for the unit carried by ctx.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	unitID, _ := UnitIDFromContext(ctx)
	return ctx, &jsonTraceSpan{tracer: t, unitID: unitID, operation: operation, started: time.Now().UTC()}
}

func (t *JSONTraceTracer) record(entry JSONTraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	if t.enc != nil {
		_ = t.enc.Encode(entry)
	}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	unitID    string
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		UnitID:     s.unitID,
		Operation:  s.operation,
		Outcome:    OutcomeOf(err),
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.tracer.record(entry)
}
