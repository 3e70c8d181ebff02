package lifecycle

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"tendo/internal/store"
	"tendo/internal/task"
)

// effects collects what one toggle unit did, so reminders can be
// reconciled once, after the whole cascade commits.
type effects struct {
	completed   []task.Task
	uncompleted []task.Task
	spawned     []task.Task
}

// ToggleCompletion flips a task's completion state and settles every
// consequence inside one mutation unit: forced completion of subtasks
// (recursively, each re-running the full rule), duplicate-suppressed
// spawning of the next recurring instance, and re-evaluation of every
// ancestor up the parent chain. Concurrent readers see either none of it
// or all of it. Reminders are reconciled after the unit commits.
func (m *Manager) ToggleCompletion(ctx context.Context, id uuid.UUID) (task.Task, error) {
	var result task.Task
	var eff effects

	err := m.store.Apply(ctx, func(tx *store.Tx) error {
		eff = effects{}
		t, ok := tx.GetTask(id)
		if !ok {
			return store.ErrNotFound
		}
		if t.Completed {
			if err := m.uncomplete(tx, t, &eff); err != nil {
				return err
			}
		} else {
			if err := m.complete(tx, t, &eff); err != nil {
				return err
			}
		}
		if err := m.reevaluateAncestors(tx, t.ParentID, &eff); err != nil {
			return err
		}
		result, _ = tx.GetTask(id)
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}

	for _, t := range eff.completed {
		m.reminders.CancelFor(t.ID)
	}
	for _, t := range eff.uncompleted {
		m.reminders.ScheduleFor(t)
	}
	for _, t := range eff.spawned {
		m.reminders.ScheduleFor(t)
	}
	return result, nil
}

// complete marks t completed, forces its subtasks completed under the
// same rule, and spawns the next instance of a recurring series unless
// one with that due date already exists.
func (m *Manager) complete(tx *store.Tx, t task.Task, eff *effects) error {
	if t.Completed {
		return nil
	}
	t.Completed = true
	t.UpdatedAt = m.now()
	if err := tx.PutTask(t); err != nil {
		return err
	}
	eff.completed = append(eff.completed, t)

	for _, child := range tx.ChildrenOf(t.ID) {
		if err := m.complete(tx, child, eff); err != nil {
			return err
		}
	}
	return m.spawnNext(tx, t, eff)
}

func (m *Manager) uncomplete(tx *store.Tx, t task.Task, eff *effects) error {
	if !t.Completed {
		return nil
	}
	t.Completed = false
	t.UpdatedAt = m.now()
	if err := tx.PutTask(t); err != nil {
		return err
	}
	eff.uncompleted = append(eff.uncompleted, t)
	return nil
}

// spawnNext clones a just-completed recurring task into the next instance
// of its series. An instance already holding that due date makes this a
// benign no-op, so replaying a completion never multiplies tasks. A
// recurring task without a due date has nothing to anchor on and spawns
// nothing.
func (m *Manager) spawnNext(tx *store.Tx, t task.Task, eff *effects) error {
	if !t.IsRecurring() || !t.Due.Valid {
		return nil
	}
	next := task.NextDueDate(t.Due.Time, t.Recurrence)
	if _, exists := tx.SeriesInstance(t.SeriesID, next); exists {
		return nil
	}
	now := m.now()
	clone := task.Task{
		ID:         m.newID(),
		SeriesID:   t.SeriesID,
		Title:      t.Title,
		Notes:      t.Notes,
		Priority:   t.Priority,
		Due:        sql.NullTime{Time: next, Valid: true},
		Recurrence: t.Recurrence,
		CategoryID: t.CategoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.PutTask(clone); err != nil {
		return err
	}
	eff.spawned = append(eff.spawned, clone)
	return nil
}

// reevaluateAncestors walks up the parent chain. An ancestor whose direct
// subtasks are now all completed is auto-completed (spawning its next
// recurring instance like any other completion); one that is completed
// while a subtask is open is auto-uncompleted. The walk stops at the
// first ancestor whose state does not change, or at a root.
func (m *Manager) reevaluateAncestors(tx *store.Tx, parentID uuid.UUID, eff *effects) error {
	for parentID != uuid.Nil {
		p, ok := tx.GetTask(parentID)
		if !ok {
			return nil
		}
		kids := tx.ChildrenOf(p.ID)
		if len(kids) == 0 {
			return nil
		}
		all := true
		for _, k := range kids {
			if !k.Completed {
				all = false
				break
			}
		}
		switch {
		case all && !p.Completed:
			if err := m.complete(tx, p, eff); err != nil {
				return err
			}
		case !all && p.Completed:
			if err := m.uncomplete(tx, p, eff); err != nil {
				return err
			}
		default:
			return nil
		}
		parentID = p.ParentID
	}
	return nil
}
