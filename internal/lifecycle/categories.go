package lifecycle

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"tendo/internal/store"
	"tendo/internal/task"
)

// CategoryFields patch an existing category; nil pointers leave a field
// untouched.
type CategoryFields struct {
	Name      *string
	ColorHex  *string
	Icon      *string
	SortOrder *int
}

// CreateCategory inserts a category at the end of the sort order.
func (m *Manager) CreateCategory(ctx context.Context, name, colorHex, icon string) (task.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return task.Category{}, &task.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	c := task.Category{
		ID:        m.newID(),
		Name:      name,
		ColorHex:  colorHex,
		Icon:      icon,
		CreatedAt: m.now(),
	}
	err := m.store.Apply(ctx, func(tx *store.Tx) error {
		for _, existing := range tx.Categories() {
			if existing.SortOrder >= c.SortOrder {
				c.SortOrder = existing.SortOrder + 1
			}
		}
		return tx.PutCategory(c)
	})
	if err != nil {
		return task.Category{}, err
	}
	return c, nil
}

func (m *Manager) UpdateCategory(ctx context.Context, id uuid.UUID, f CategoryFields) (task.Category, error) {
	var updated task.Category
	err := m.store.Apply(ctx, func(tx *store.Tx) error {
		c, ok := tx.GetCategory(id)
		if !ok {
			return store.ErrNotFound
		}
		if f.Name != nil {
			name := strings.TrimSpace(*f.Name)
			if name == "" {
				return &task.ValidationError{Field: "name", Reason: "must not be empty"}
			}
			c.Name = name
		}
		if f.ColorHex != nil {
			c.ColorHex = *f.ColorHex
		}
		if f.Icon != nil {
			c.Icon = *f.Icon
		}
		if f.SortOrder != nil {
			c.SortOrder = *f.SortOrder
		}
		updated = c
		return tx.PutCategory(c)
	})
	if err != nil {
		return task.Category{}, err
	}
	return updated, nil
}

// DeleteCategory removes the category and clears the reference on every
// task that pointed at it, in the same unit. The tasks themselves stay.
func (m *Manager) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return m.store.Apply(ctx, func(tx *store.Tx) error {
		if _, ok := tx.GetCategory(id); !ok {
			return store.ErrNotFound
		}
		now := m.now()
		for _, t := range tx.TasksWhere(func(t task.Task) bool { return t.CategoryID == id }) {
			t.CategoryID = uuid.Nil
			t.UpdatedAt = now
			if err := tx.PutTask(t); err != nil {
				return err
			}
		}
		return tx.DeleteCategory(id)
	})
}
