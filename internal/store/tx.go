package store

import (
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"tendo/internal/task"
)

// Tx is the view a mutation unit works against: committed state overlaid
// with the unit's own staged changes. A nil staged entry is a tombstone.
// Writes go straight through to the SQLite transaction, so a failed unit
// rolls back the database and drops the staging maps together.
type Tx struct {
	s     *Store
	sql   *sql.Tx
	tasks map[uuid.UUID]*task.Task
	cats  map[uuid.UUID]*task.Category
}

func (tx *Tx) GetTask(id uuid.UUID) (task.Task, bool) {
	if staged, ok := tx.tasks[id]; ok {
		if staged == nil {
			return task.Task{}, false
		}
		return *staged, true
	}
	t, ok := tx.s.tasks[id]
	return t, ok
}

func (tx *Tx) GetCategory(id uuid.UUID) (task.Category, bool) {
	if staged, ok := tx.cats[id]; ok {
		if staged == nil {
			return task.Category{}, false
		}
		return *staged, true
	}
	c, ok := tx.s.cats[id]
	return c, ok
}

// PutTask inserts or replaces a record.
func (tx *Tx) PutTask(t task.Task) error {
	if err := tx.upsertTask(t); err != nil {
		return &StorageError{Op: "put task", Err: err}
	}
	staged := t
	tx.tasks[t.ID] = &staged
	return nil
}

func (tx *Tx) DeleteTask(id uuid.UUID) error {
	if _, err := tx.sql.Exec(`DELETE FROM tasks WHERE id = ?;`, id.String()); err != nil {
		return &StorageError{Op: "delete task", Err: err}
	}
	tx.tasks[id] = nil
	return nil
}

func (tx *Tx) PutCategory(c task.Category) error {
	if err := tx.upsertCategory(c); err != nil {
		return &StorageError{Op: "put category", Err: err}
	}
	staged := c
	tx.cats[c.ID] = &staged
	return nil
}

func (tx *Tx) DeleteCategory(id uuid.UUID) error {
	if _, err := tx.sql.Exec(`DELETE FROM categories WHERE id = ?;`, id.String()); err != nil {
		return &StorageError{Op: "delete category", Err: err}
	}
	tx.cats[id] = nil
	return nil
}

// TasksWhere scans committed state overlaid with staged changes.
func (tx *Tx) TasksWhere(pred func(task.Task) bool) []task.Task {
	var out []task.Task
	for id, t := range tx.s.tasks {
		if _, staged := tx.tasks[id]; staged {
			continue
		}
		if pred(t) {
			out = append(out, t)
		}
	}
	for _, t := range tx.tasks {
		if t != nil && pred(*t) {
			out = append(out, *t)
		}
	}
	return out
}

// Categories returns every category visible to the unit.
func (tx *Tx) Categories() []task.Category {
	var out []task.Category
	for id, c := range tx.s.cats {
		if _, staged := tx.cats[id]; staged {
			continue
		}
		out = append(out, c)
	}
	for _, c := range tx.cats {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// ChildrenOf returns the direct subtasks of id, oldest first.
func (tx *Tx) ChildrenOf(id uuid.UUID) []task.Task {
	kids := tx.TasksWhere(func(t task.Task) bool { return t.ParentID == id })
	sort.Slice(kids, func(i, j int) bool {
		if !kids[i].CreatedAt.Equal(kids[j].CreatedAt) {
			return kids[i].CreatedAt.Before(kids[j].CreatedAt)
		}
		return kids[i].ID.String() < kids[j].ID.String()
	})
	return kids
}

// SeriesInstance looks for an instance of the series with exactly this
// due date. Used to keep recurrence spawning idempotent.
func (tx *Tx) SeriesInstance(seriesID uuid.UUID, due time.Time) (task.Task, bool) {
	hits := tx.TasksWhere(func(t task.Task) bool {
		return t.SeriesID == seriesID && t.Due.Valid && t.Due.Time.Equal(due)
	})
	if len(hits) == 0 {
		return task.Task{}, false
	}
	return hits[0], true
}

// WalkParents follows the parent chain upward from id, calling visit for
// each ancestor. Returns false if the chain revisits a node, which means
// the stored forest would contain a cycle.
func (tx *Tx) WalkParents(id uuid.UUID, visit func(task.Task) bool) bool {
	seen := map[uuid.UUID]bool{id: true}
	cur, ok := tx.GetTask(id)
	for ok && cur.HasParent() {
		if seen[cur.ParentID] {
			return false
		}
		seen[cur.ParentID] = true
		cur, ok = tx.GetTask(cur.ParentID)
		if ok && visit != nil && !visit(cur) {
			break
		}
	}
	return true
}
