// Package repo is the single entry point external consumers use: typed
// predicate queries over committed snapshots, mutations forwarded to the
// lifecycle manager, and change subscriptions with snapshot replay.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tendo/internal/lifecycle"
	"tendo/internal/notify"
	"tendo/internal/store"
	"tendo/internal/task"
)

type Repository struct {
	store *store.Store
	mgr   *lifecycle.Manager
	sched *notify.Scheduler
	now   func() time.Time
}

type Option func(*Repository)

// WithClock overrides the clock used by the date-relative queries.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func New(st *store.Store, mgr *lifecycle.Manager, sched *notify.Scheduler, opts ...Option) *Repository {
	r := &Repository{store: st, mgr: mgr, sched: sched, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Task returns one committed record.
func (r *Repository) Task(id uuid.UUID) (task.Task, bool) {
	return r.store.Task(id)
}

// Tasks returns every task in default order.
func (r *Repository) Tasks() []task.Task {
	return sorted(r.store.Tasks())
}

func (r *Repository) TasksInCategory(id uuid.UUID) []task.Task {
	return r.where(func(t task.Task) bool { return t.CategoryID == id })
}

func (r *Repository) Subtasks(parentID uuid.UUID) []task.Task {
	kids := r.store.TasksWhere(func(t task.Task) bool { return t.ParentID == parentID })
	task.SortDefault(kids)
	return kids
}

func (r *Repository) Completed() []task.Task {
	return r.where(func(t task.Task) bool { return t.Completed })
}

func (r *Repository) Incomplete() []task.Task {
	return r.where(func(t task.Task) bool { return !t.Completed })
}

func (r *Repository) Overdue() []task.Task {
	now := r.now()
	return r.where(func(t task.Task) bool { return t.Overdue(now) })
}

func (r *Repository) DueToday() []task.Task {
	return r.dueOn(r.now())
}

func (r *Repository) DueTomorrow() []task.Task {
	return r.dueOn(r.now().AddDate(0, 0, 1))
}

func (r *Repository) dueOn(day time.Time) []task.Task {
	y, m, d := day.Date()
	return r.where(func(t task.Task) bool {
		if !t.Due.Valid {
			return false
		}
		dy, dm, dd := t.Due.Time.In(day.Location()).Date()
		return dy == y && dm == m && dd == d
	})
}

// Search matches a case-insensitive substring against title or notes.
func (r *Repository) Search(query string) []task.Task {
	return r.where(func(t task.Task) bool { return t.Matches(query) })
}

// Categories returns every category, sort order ascending.
func (r *Repository) Categories() []task.Category {
	cats := r.store.Categories()
	task.SortCategories(cats)
	return cats
}

func (r *Repository) Category(id uuid.UUID) (task.Category, bool) {
	return r.store.Category(id)
}

// PendingReminderIDs reports which tasks currently hold a scheduled
// reminder.
func (r *Repository) PendingReminderIDs() []uuid.UUID {
	if r.sched == nil {
		return nil
	}
	return r.sched.PendingIDs()
}

func (r *Repository) CreateTask(ctx context.Context, f lifecycle.CreateFields) (task.Task, error) {
	return r.mgr.Create(ctx, f)
}

func (r *Repository) UpdateTask(ctx context.Context, id uuid.UUID, f lifecycle.UpdateFields) (task.Task, error) {
	return r.mgr.Update(ctx, id, f)
}

func (r *Repository) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return r.mgr.Delete(ctx, id)
}

func (r *Repository) ToggleCompletion(ctx context.Context, id uuid.UUID) (task.Task, error) {
	return r.mgr.ToggleCompletion(ctx, id)
}

func (r *Repository) CreateCategory(ctx context.Context, name, colorHex, icon string) (task.Category, error) {
	return r.mgr.CreateCategory(ctx, name, colorHex, icon)
}

func (r *Repository) UpdateCategory(ctx context.Context, id uuid.UUID, f lifecycle.CategoryFields) (task.Category, error) {
	return r.mgr.UpdateCategory(ctx, id, f)
}

func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return r.mgr.DeleteCategory(ctx, id)
}

// Subscribe emits the current snapshot immediately and a fresh one after
// every committed mutation, always in default order. The channel closes
// when ctx ends.
func (r *Repository) Subscribe(ctx context.Context) <-chan []task.Task {
	return r.SubscribeMatching(ctx, nil)
}

// SubscribeMatching is Subscribe narrowed to a predicate fixed at
// subscription time.
func (r *Repository) SubscribeMatching(ctx context.Context, pred func(task.Task) bool) <-chan []task.Task {
	in := r.store.SubscribeTasks(ctx)
	out := make(chan []task.Task)
	go func() {
		defer close(out)
		for snap := range in {
			if pred != nil {
				filtered := snap[:0:0]
				for _, t := range snap {
					if pred(t) {
						filtered = append(filtered, t)
					}
				}
				snap = filtered
			}
			task.SortDefault(snap)
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (r *Repository) where(pred func(task.Task) bool) []task.Task {
	return sorted(r.store.TasksWhere(pred))
}

func sorted(ts []task.Task) []task.Task {
	task.SortDefault(ts)
	return ts
}
