package core

import (
	"context"
	"fmt"
	"strings"

	"tasktrack/pkg/domain"
)

// CreateTask stores a new task.
func (s *Service) CreateTask(ctx context.Context, item Item) (Item, error) {
	return s.create(ctx, "create_task", domain.KindTask, item)
}

// CreateEpic stores a new epic. Its status always starts as NEW.
func (s *Service) CreateEpic(ctx context.Context, item Item) (Item, error) {
	return s.create(ctx, "create_epic", domain.KindEpic, item)
}

// CreateSubtask stores a new subtask under item.ParentID and recomputes the
// epic's status.
func (s *Service) CreateSubtask(ctx context.Context, item Item) (Item, error) {
	return s.create(ctx, "create_subtask", domain.KindSubtask, item)
}

func (s *Service) create(ctx context.Context, op string, kind domain.Kind, item Item) (Item, error) {
	var created Item
	err := s.run(ctx, op, func() error { return prepareCreate(&item, kind) }, func(u *unit) error {
		if kind == domain.KindSubtask {
			ok, err := u.tx.ExistsByIDAndKind(item.ParentID, domain.KindEpic)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFoundError{Kind: domain.KindEpic, ID: item.ParentID}
			}
		}
		var err error
		if created, err = u.tx.Insert(item); err != nil {
			return err
		}
		if kind == domain.KindSubtask {
			return recomputeEpic(u.tx, item.ParentID)
		}
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return created, nil
}

// prepareCreate fills creation defaults and validates the input.
func prepareCreate(item *Item, kind domain.Kind) error {
	if item.Kind == "" {
		item.Kind = kind
	}
	if item.Kind != kind {
		return domain.InvalidError{Field: "kind", Reason: fmt.Sprintf("expected %s, got %s", kind, item.Kind)}
	}
	item.ID = 0
	item.ChildIDs = nil
	item.Viewed = false
	if item.Status == "" || kind == domain.KindEpic {
		item.Status = domain.StatusNew
	}
	return item.Validate()
}

// View returns the item addressed by kind and id, marks it viewed, and
// records it in the recency log.
func (s *Service) View(ctx context.Context, kind Kind, id int64) (Item, error) {
	var viewed Item
	err := s.run(ctx, "view", func() error { return checkAddress(kind, id) }, func(u *unit) error {
		item, err := lookup(u.tx, kind, id)
		if err != nil {
			return err
		}
		if viewed, err = markViewed(u.tx, item); err != nil {
			return err
		}
		u.recordView(id)
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return viewed, nil
}

// ViewAll returns every item of kind in id order, marking each viewed and
// recording each in the recency log in listing order.
func (s *Service) ViewAll(ctx context.Context, kind Kind) ([]Item, error) {
	var out []Item
	err := s.run(ctx, "view_all", func() error { return checkKind(kind) }, func(u *unit) error {
		items, err := u.tx.ListByKind(kind)
		if err != nil {
			return err
		}
		out = make([]Item, 0, len(items))
		for _, item := range items {
			viewed, err := markViewed(u.tx, item)
			if err != nil {
				return err
			}
			u.recordView(item.ID)
			out = append(out, viewed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func markViewed(tx domain.Transaction, item Item) (Item, error) {
	if item.Viewed {
		return item, nil
	}
	item.Viewed = true
	if err := tx.Put(item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Update overwrites the name, description, status, and viewed flag of an
// existing item. Identifier, kind, and a subtask's epic are kept from the
// stored record; an epic's status stays derived. A false viewed flag removes
// the item from the recency log.
func (s *Service) Update(ctx context.Context, item Item) (Item, error) {
	var updated Item
	err := s.run(ctx, "update", func() error { return checkUpdate(item) }, func(u *unit) error {
		current, err := lookup(u.tx, item.Kind, item.ID)
		if err != nil {
			return err
		}
		if item.Kind == domain.KindSubtask {
			if item.ParentID != 0 && item.ParentID != current.ParentID {
				return domain.InvalidError{Field: "parent_id", Reason: fmt.Sprintf("subtask %d belongs to epic %d", item.ID, current.ParentID)}
			}
			ok, err := u.tx.ExistsByIDAndKind(current.ParentID, domain.KindEpic)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFoundError{Kind: domain.KindEpic, ID: current.ParentID}
			}
		}
		next := current
		next.Name = item.Name
		next.Description = item.Description
		next.Viewed = current.Viewed && item.Viewed
		if item.Kind != domain.KindEpic {
			next.Status = item.Status
		}
		if err := u.tx.Put(next); err != nil {
			return err
		}
		if !item.Viewed {
			u.forget(item.ID)
		}
		if item.Kind == domain.KindSubtask {
			if err := recomputeEpic(u.tx, current.ParentID); err != nil {
				return err
			}
		}
		updated, err = u.tx.Get(item.ID)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return updated, nil
}

func checkUpdate(item Item) error {
	if err := checkAddress(item.Kind, item.ID); err != nil {
		return err
	}
	if strings.TrimSpace(item.Name) == "" {
		return domain.InvalidError{Field: "name", Reason: "must not be blank"}
	}
	if item.Kind != domain.KindEpic && !item.Status.Valid() {
		return domain.InvalidError{Field: "status", Reason: fmt.Sprintf("unknown status %q", item.Status)}
	}
	return nil
}

// Delete removes the item addressed by kind and id. Deleting an epic deletes
// its subtasks first; deleting a subtask recomputes its epic's status. Every
// removed identifier leaves the recency log.
func (s *Service) Delete(ctx context.Context, kind Kind, id int64) error {
	return s.run(ctx, "delete", func() error { return checkAddress(kind, id) }, func(u *unit) error {
		item, err := lookup(u.tx, kind, id)
		if err != nil {
			return err
		}
		for _, childID := range item.ChildIDs {
			if err := deleteOne(u, childID); err != nil {
				return err
			}
		}
		if err := deleteOne(u, id); err != nil {
			return err
		}
		if kind == domain.KindSubtask {
			return recomputeEpic(u.tx, item.ParentID)
		}
		return nil
	})
}

// DeleteAll removes every item of kind and reports how many were removed.
// Deleting all epics also deletes all subtasks; deleting all subtasks resets
// every epic to NEW.
func (s *Service) DeleteAll(ctx context.Context, kind Kind) (int, error) {
	var count int
	err := s.run(ctx, "delete_all", func() error { return checkKind(kind) }, func(u *unit) error {
		items, err := u.tx.ListByKind(kind)
		if err != nil {
			return err
		}
		removed := make(map[int64]domain.Kind)
		for _, item := range items {
			for _, childID := range item.ChildIDs {
				if _, err := u.tx.Delete(childID); err != nil {
					return err
				}
				removed[childID] = domain.KindSubtask
			}
			if _, err := u.tx.Delete(item.ID); err != nil {
				return err
			}
			removed[item.ID] = item.Kind
		}
		kindOf := func(id int64) (domain.Kind, bool) {
			k, ok := removed[id]
			return k, ok
		}
		u.forgetKind(kind, kindOf)
		if kind == domain.KindEpic {
			u.forgetKind(domain.KindSubtask, kindOf)
		}
		if kind == domain.KindSubtask {
			if err := resetEpics(u.tx); err != nil {
				return err
			}
		}
		count = len(items)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Subtasks returns the subtasks of epicID in child order without touching the
// recency log.
func (s *Service) Subtasks(ctx context.Context, epicID int64) ([]Item, error) {
	var out []Item
	err := s.read(ctx, "subtasks", func() error { return domain.ValidateID(epicID) }, func(v domain.TransactionView) error {
		epic, err := lookup(v, domain.KindEpic, epicID)
		if err != nil {
			return err
		}
		out = make([]Item, 0, len(epic.ChildIDs))
		for _, id := range epic.ChildIDs {
			child, err := v.Get(id)
			if err != nil {
				return err
			}
			out = append(out, child)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// History returns the items in the recency log, oldest first.
func (s *Service) History(ctx context.Context) ([]Item, error) {
	var out []Item
	err := s.read(ctx, "history", nil, func(v domain.TransactionView) error {
		out = make([]Item, 0, s.tracker.Len())
		for id := range s.tracker.List() {
			item, err := v.Get(id)
			if err != nil {
				return err
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkKind(kind Kind) error {
	if !kind.Valid() {
		return domain.InvalidError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", kind)}
	}
	return nil
}

func checkAddress(kind Kind, id int64) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	return domain.ValidateID(id)
}

// lookup returns id only when it is stored with kind.
func lookup(v domain.TransactionView, kind Kind, id int64) (Item, error) {
	ok, err := v.ExistsByIDAndKind(id, kind)
	if err != nil {
		return Item{}, err
	}
	if !ok {
		return Item{}, domain.NotFoundError{Kind: kind, ID: id}
	}
	return v.Get(id)
}

func deleteOne(u *unit, id int64) error {
	ok, err := u.tx.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFoundError{ID: id}
	}
	u.forget(id)
	return nil
}

// recomputeEpic rewrites the epic's status from its current children.
func recomputeEpic(tx domain.Transaction, epicID int64) error {
	statuses, err := tx.ChildStatuses(epicID)
	if err != nil {
		return err
	}
	epic, err := tx.Get(epicID)
	if err != nil {
		return err
	}
	derived := domain.DeriveStatus(statuses)
	if epic.Status == derived {
		return nil
	}
	epic.Status = derived
	return tx.Put(epic)
}

func resetEpics(tx domain.Transaction) error {
	epics, err := tx.ListByKind(domain.KindEpic)
	if err != nil {
		return err
	}
	for _, epic := range epics {
		if epic.Status == domain.StatusNew {
			continue
		}
		epic.Status = domain.StatusNew
		if err := tx.Put(epic); err != nil {
			return err
		}
	}
	return nil
}
