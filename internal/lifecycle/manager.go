package lifecycle

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"tendo/internal/store"
	"tendo/internal/task"
)

// Reminders is the slice of the notification scheduler the manager needs.
// Calls happen strictly after a mutation unit commits; their failures
// never unwind the committed data.
type Reminders interface {
	ScheduleFor(t task.Task)
	CancelFor(id uuid.UUID)
}

type noopReminders struct{}

func (noopReminders) ScheduleFor(task.Task) {}
func (noopReminders) CancelFor(uuid.UUID)   {}

// Manager owns every task and category mutation: creation defaults,
// reference and cycle validation, cascading completion, recurrence
// spawning, and keeping reminders consistent with committed state.
type Manager struct {
	store     *store.Store
	reminders Reminders
	now       func() time.Time
	newID     func() uuid.UUID
}

type Option func(*Manager)

// WithClock overrides the manager's clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDs overrides id generation.
func WithIDs(newID func() uuid.UUID) Option {
	return func(m *Manager) { m.newID = newID }
}

func New(st *store.Store, reminders Reminders, opts ...Option) *Manager {
	if reminders == nil {
		reminders = noopReminders{}
	}
	m := &Manager{
		store:     st,
		reminders: reminders,
		now:       time.Now,
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateFields are the caller-supplied parts of a new task. A nil
// Priority means the default (medium). Due may be nil for an undated
// task. CategoryID and ParentID use uuid.Nil for "unset".
type CreateFields struct {
	Title      string
	Notes      string
	Priority   *task.Priority
	Due        *time.Time
	Recurrence task.Recurrence
	CategoryID uuid.UUID
	ParentID   uuid.UUID
}

// UpdateFields patch an existing task. Nil pointers leave a field
// untouched. Due with Valid=false clears the due date; CategoryID or
// ParentID pointing at uuid.Nil clears the reference.
type UpdateFields struct {
	Title      *string
	Notes      *string
	Priority   *task.Priority
	Due        *sql.NullTime
	Recurrence *task.Recurrence
	CategoryID *uuid.UUID
	ParentID   *uuid.UUID
}

// Create validates fields, inserts the task with defaults, and schedules
// a reminder when the due date is set and in the future. The new task's
// own id doubles as its series id.
func (m *Manager) Create(ctx context.Context, f CreateFields) (task.Task, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return task.Task{}, &task.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	priority := task.PriorityMedium
	if f.Priority != nil {
		priority = *f.Priority
	}
	now := m.now()
	t := task.Task{
		ID:         m.newID(),
		Title:      title,
		Notes:      f.Notes,
		Priority:   priority,
		Recurrence: f.Recurrence,
		CategoryID: f.CategoryID,
		ParentID:   f.ParentID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	t.SeriesID = t.ID
	if f.Due != nil {
		t.Due = sql.NullTime{Time: *f.Due, Valid: true}
	}

	err := m.store.Apply(ctx, func(tx *store.Tx) error {
		if t.HasCategory() {
			if _, ok := tx.GetCategory(t.CategoryID); !ok {
				return &task.ValidationError{Field: "category", Reason: "does not exist"}
			}
		}
		if t.HasParent() {
			if _, ok := tx.GetTask(t.ParentID); !ok {
				return &task.ValidationError{Field: "parent", Reason: "does not exist"}
			}
		}
		return tx.PutTask(t)
	})
	if err != nil {
		return task.Task{}, err
	}
	m.reminders.ScheduleFor(t)
	return t, nil
}

// Update applies field changes and bumps UpdatedAt. When the due date,
// title, or notes change, the reminder is cancelled and rescheduled; a
// cleared or past due date leaves it cancelled.
func (m *Manager) Update(ctx context.Context, id uuid.UUID, f UpdateFields) (task.Task, error) {
	var updated task.Task
	var reminderStale bool

	err := m.store.Apply(ctx, func(tx *store.Tx) error {
		t, ok := tx.GetTask(id)
		if !ok {
			return store.ErrNotFound
		}
		reminderStale = false
		if f.Title != nil {
			title := strings.TrimSpace(*f.Title)
			if title == "" {
				return &task.ValidationError{Field: "title", Reason: "must not be empty"}
			}
			if title != t.Title {
				reminderStale = true
			}
			t.Title = title
		}
		if f.Notes != nil {
			if *f.Notes != t.Notes {
				reminderStale = true
			}
			t.Notes = *f.Notes
		}
		if f.Priority != nil {
			t.Priority = *f.Priority
		}
		if f.Due != nil {
			if !sameDue(t.Due, *f.Due) {
				reminderStale = true
			}
			t.Due = *f.Due
		}
		if f.Recurrence != nil {
			t.Recurrence = *f.Recurrence
		}
		if f.CategoryID != nil {
			if *f.CategoryID != uuid.Nil {
				if _, ok := tx.GetCategory(*f.CategoryID); !ok {
					return &task.ValidationError{Field: "category", Reason: "does not exist"}
				}
			}
			t.CategoryID = *f.CategoryID
		}
		if f.ParentID != nil {
			if err := validateParent(tx, t.ID, *f.ParentID); err != nil {
				return err
			}
			t.ParentID = *f.ParentID
		}
		t.UpdatedAt = m.now()
		updated = t
		return tx.PutTask(t)
	})
	if err != nil {
		return task.Task{}, err
	}
	if reminderStale {
		m.reminders.CancelFor(updated.ID)
		m.reminders.ScheduleFor(updated)
	}
	return updated, nil
}

// Delete removes the record and cancels its reminder. Direct subtasks
// become root-level tasks; later instances of a recurring series are left
// alone. Orphaning is deliberate, not a cascade bug.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	err := m.store.Apply(ctx, func(tx *store.Tx) error {
		if _, ok := tx.GetTask(id); !ok {
			return store.ErrNotFound
		}
		now := m.now()
		for _, child := range tx.ChildrenOf(id) {
			child.ParentID = uuid.Nil
			child.UpdatedAt = now
			if err := tx.PutTask(child); err != nil {
				return err
			}
		}
		return tx.DeleteTask(id)
	})
	if err != nil {
		return err
	}
	m.reminders.CancelFor(id)
	return nil
}

// validateParent rejects a missing parent, self-parenting, and any
// assignment that would close a cycle in the parent chain.
func validateParent(tx *store.Tx, id, parentID uuid.UUID) error {
	if parentID == uuid.Nil {
		return nil
	}
	if parentID == id {
		return &task.ValidationError{Field: "parent", Reason: "task cannot be its own parent"}
	}
	if _, ok := tx.GetTask(parentID); !ok {
		return &task.ValidationError{Field: "parent", Reason: "does not exist"}
	}
	cycle := false
	tx.WalkParents(parentID, func(ancestor task.Task) bool {
		if ancestor.ID == id {
			cycle = true
			return false
		}
		return true
	})
	if cycle {
		return &task.ValidationError{Field: "parent", Reason: "would create a cycle"}
	}
	return nil
}

func sameDue(a, b sql.NullTime) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Time.Equal(b.Time)
}
