package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"tendo/internal/task"
)

const timeLayout = time.RFC3339Nano

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	series_id TEXT NOT NULL,
	title TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 1,
	due TEXT DEFAULT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	recurrence TEXT NOT NULL DEFAULT 'none',
	category_id TEXT DEFAULT NULL,
	parent_id TEXT DEFAULT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_category ON tasks(category_id);
CREATE INDEX IF NOT EXISTS idx_tasks_series ON tasks(series_id);
CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	color_hex TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}
	return s.ensureTaskColumns()
}

// ensureTaskColumns adds columns introduced after the first release to
// databases created before them.
func (s *Store) ensureTaskColumns() error {
	required := map[string]string{
		"notes":      "ALTER TABLE tasks ADD COLUMN notes TEXT NOT NULL DEFAULT '';",
		"recurrence": "ALTER TABLE tasks ADD COLUMN recurrence TEXT NOT NULL DEFAULT 'none';",
		"series_id":  "ALTER TABLE tasks ADD COLUMN series_id TEXT NOT NULL DEFAULT '';",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(tasks);`)
	if err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return &StorageError{Op: "migrate", Err: err}
		}
		existing[name] = struct{}{}
	}
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return &StorageError{Op: "migrate", Err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}
	return nil
}

func (s *Store) loadAll() error {
	rows, err := s.db.Query(`SELECT id, series_id, title, notes, priority, due, completed, recurrence, category_id, parent_id, created_at, updated_at FROM tasks;`)
	if err != nil {
		return &StorageError{Op: "load tasks", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return &StorageError{Op: "load tasks", Err: err}
		}
		s.tasks[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return &StorageError{Op: "load tasks", Err: err}
	}

	crows, err := s.db.Query(`SELECT id, name, color_hex, icon, sort_order, created_at FROM categories;`)
	if err != nil {
		return &StorageError{Op: "load categories", Err: err}
	}
	defer crows.Close()
	for crows.Next() {
		var c task.Category
		var id, createdStr string
		if err := crows.Scan(&id, &c.Name, &c.ColorHex, &c.Icon, &c.SortOrder, &createdStr); err != nil {
			return &StorageError{Op: "load categories", Err: err}
		}
		c.ID, err = uuid.Parse(id)
		if err != nil {
			return &StorageError{Op: "load categories", Err: err}
		}
		if created, err := time.Parse(timeLayout, createdStr); err == nil {
			c.CreatedAt = created
		}
		s.cats[c.ID] = c
	}
	if err := crows.Err(); err != nil {
		return &StorageError{Op: "load categories", Err: err}
	}
	return nil
}

func scanTask(rows *sql.Rows) (task.Task, error) {
	var t task.Task
	var id, seriesID, createdStr, updatedStr, recurrence string
	var completed, priority int
	var dueStr, categoryID, parentID sql.NullString

	if err := rows.Scan(&id, &seriesID, &t.Title, &t.Notes, &priority, &dueStr, &completed, &recurrence, &categoryID, &parentID, &createdStr, &updatedStr); err != nil {
		return task.Task{}, err
	}
	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return task.Task{}, err
	}
	if t.SeriesID, err = uuid.Parse(seriesID); err != nil {
		return task.Task{}, err
	}
	t.Priority = task.Priority(priority)
	t.Completed = completed == 1
	t.Recurrence = task.Recurrence(recurrence)
	if dueStr.Valid {
		if parsed, err := time.Parse(timeLayout, dueStr.String); err == nil {
			t.Due = sql.NullTime{Time: parsed, Valid: true}
		}
	}
	if categoryID.Valid && categoryID.String != "" {
		if ref, err := uuid.Parse(categoryID.String); err == nil {
			t.CategoryID = ref
		}
	}
	if parentID.Valid && parentID.String != "" {
		if ref, err := uuid.Parse(parentID.String); err == nil {
			t.ParentID = ref
		}
	}
	if created, err := time.Parse(timeLayout, createdStr); err == nil {
		t.CreatedAt = created
	}
	if updated, err := time.Parse(timeLayout, updatedStr); err == nil {
		t.UpdatedAt = updated
	}
	return t, nil
}

func (tx *Tx) upsertTask(t task.Task) error {
	due := sql.NullString{}
	if t.Due.Valid {
		due = sql.NullString{String: t.Due.Time.UTC().Format(timeLayout), Valid: true}
	}
	completed := 0
	if t.Completed {
		completed = 1
	}
	_, err := tx.sql.Exec(`
INSERT INTO tasks (id, series_id, title, notes, priority, due, completed, recurrence, category_id, parent_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	series_id = excluded.series_id,
	title = excluded.title,
	notes = excluded.notes,
	priority = excluded.priority,
	due = excluded.due,
	completed = excluded.completed,
	recurrence = excluded.recurrence,
	category_id = excluded.category_id,
	parent_id = excluded.parent_id,
	updated_at = excluded.updated_at;`,
		t.ID.String(), t.SeriesID.String(), t.Title, t.Notes, int(t.Priority), due, completed,
		string(t.Recurrence), nullableID(t.CategoryID), nullableID(t.ParentID),
		t.CreatedAt.UTC().Format(timeLayout), t.UpdatedAt.UTC().Format(timeLayout))
	return err
}

func (tx *Tx) upsertCategory(c task.Category) error {
	_, err := tx.sql.Exec(`
INSERT INTO categories (id, name, color_hex, icon, sort_order, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	color_hex = excluded.color_hex,
	icon = excluded.icon,
	sort_order = excluded.sort_order;`,
		c.ID.String(), c.Name, c.ColorHex, c.Icon, c.SortOrder, c.CreatedAt.UTC().Format(timeLayout))
	return err
}

func nullableID(id uuid.UUID) sql.NullString {
	if id == uuid.Nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}
