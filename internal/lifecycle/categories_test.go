package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"tendo/internal/store"
	"tendo/internal/task"
)

func TestCreateCategory_AppendsSortOrder(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	a, err := m.CreateCategory(ctx, "home", "#ff0000", "house")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := m.CreateCategory(ctx, "work", "#0000ff", "briefcase")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.SortOrder <= a.SortOrder {
		t.Errorf("sort order not appended: %d then %d", a.SortOrder, b.SortOrder)
	}

	var verr *task.ValidationError
	if _, err := m.CreateCategory(ctx, "  ", "", ""); !errors.As(err, &verr) {
		t.Errorf("empty name: expected ValidationError, got %v", err)
	}
}

func TestUpdateCategory(t *testing.T) {
	m, s, _ := newManager(t)
	ctx := context.Background()

	c, err := m.CreateCategory(ctx, "home", "#ff0000", "house")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	name := "household"
	order := 9
	if _, err := m.UpdateCategory(ctx, c.ID, CategoryFields{Name: &name, SortOrder: &order}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.Category(c.ID)
	if got.Name != "household" || got.SortOrder != 9 {
		t.Errorf("update lost: %+v", got)
	}

	if _, err := m.UpdateCategory(ctx, uuid.New(), CategoryFields{Name: &name}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCategory_ClearsReferencesKeepsTasks(t *testing.T) {
	m, s, _ := newManager(t)
	ctx := context.Background()

	c, err := m.CreateCategory(ctx, "errands", "", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = mustCreate(t, m, CreateFields{Title: "errand", CategoryID: c.ID}).ID
	}

	if err := m.DeleteCategory(ctx, c.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	if _, ok := s.Category(c.ID); ok {
		t.Fatal("category still exists")
	}
	for _, id := range ids {
		got, ok := s.Task(id)
		if !ok {
			t.Fatalf("task %v deleted with its category", id)
		}
		if got.HasCategory() {
			t.Errorf("task %v still references deleted category", id)
		}
	}
}
