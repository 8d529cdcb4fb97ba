// Package domain defines the work item records, status values, error taxonomy,
// and persistence contract shared by every tasktrack backend.
package domain

import (
	"fmt"
	"strings"
)

// Kind identifies the type of work item stored in the tracker.
type Kind string

// Supported item kinds. The string values double as the flat-file encoding.
const (
	// KindTask identifies a standalone task.
	KindTask Kind = "TASK"
	// KindEpic identifies a grouping item whose status is derived from its subtasks.
	KindEpic Kind = "EPIC"
	// KindSubtask identifies a child item bound to exactly one epic.
	KindSubtask Kind = "SUBTASK"
)

// Kinds lists every supported kind in canonical order.
func Kinds() []Kind {
	return []Kind{KindTask, KindEpic, KindSubtask}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTask, KindEpic, KindSubtask:
		return true
	default:
		return false
	}
}

// ParseKind converts the textual representation into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", InvalidError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", s)}
	}
	return k, nil
}

// Status enumerates the workflow states of an item.
type Status string

// Canonical statuses.
const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// ParseStatus converts the textual representation into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", InvalidError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return st, nil
}

// Item is a task, epic, or subtask record.
//
// Epics reference their children only by identifier (ChildIDs) and subtasks
// reference their epic only by identifier (ParentID); resolution always goes
// through the store. ChildIDs is derived by the store from subtask parent
// links and is ignored on writes.
type Item struct {
	ID          int64   `json:"id"`
	Kind        Kind    `json:"kind"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      Status  `json:"status"`
	Viewed      bool    `json:"viewed"`
	ParentID    int64   `json:"parent_id,omitempty"`
	ChildIDs    []int64 `json:"child_ids,omitempty"`
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	cp := i
	if i.ChildIDs != nil {
		cp.ChildIDs = append([]int64(nil), i.ChildIDs...)
	}
	return cp
}

// Validate checks the invariants every stored item must satisfy regardless of
// the operation that produced it.
func (i Item) Validate() error {
	if !i.Kind.Valid() {
		return InvalidError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", i.Kind)}
	}
	if strings.TrimSpace(i.Name) == "" {
		return InvalidError{Field: "name", Reason: "must not be blank"}
	}
	if !i.Status.Valid() {
		return InvalidError{Field: "status", Reason: fmt.Sprintf("unknown status %q", i.Status)}
	}
	switch i.Kind {
	case KindSubtask:
		if i.ParentID <= 0 {
			return InvalidError{Field: "parent_id", Reason: "subtask requires a positive epic identifier"}
		}
	default:
		if i.ParentID != 0 {
			return InvalidError{Field: "parent_id", Reason: fmt.Sprintf("%s cannot have a parent", i.Kind)}
		}
	}
	return nil
}

// ValidateID rejects non-positive identifiers.
func ValidateID(id int64) error {
	if id <= 0 {
		return InvalidError{Field: "id", Reason: fmt.Sprintf("identifier must be positive, got %d", id)}
	}
	return nil
}
