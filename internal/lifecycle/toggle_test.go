package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"tendo/internal/task"
)

func TestToggle_DailySpawnIsIdempotent(t *testing.T) {
	m, s, rem := newManager(t)

	due := time.Date(2030, time.March, 1, 9, 0, 0, 0, time.UTC)
	tk := mustCreate(t, m, CreateFields{Title: "stand-up", Due: &due, Recurrence: task.RecurrenceDaily})

	mustToggle(t, m, tk.ID)

	next := due.AddDate(0, 0, 1)
	inSeries := func(x task.Task) bool { return x.SeriesID == tk.ID }
	instances := s.TasksWhere(inSeries)
	if len(instances) != 2 {
		t.Fatalf("expected original + 1 spawned, got %d", len(instances))
	}
	var spawned task.Task
	for _, x := range instances {
		if x.ID != tk.ID {
			spawned = x
		}
	}
	if spawned.Completed {
		t.Error("spawned instance must start open")
	}
	if !spawned.Due.Valid || !spawned.Due.Time.Equal(next) {
		t.Errorf("spawned due: got %v, want %v", spawned.Due, next)
	}
	if spawned.SeriesID != tk.SeriesID {
		t.Error("spawned instance left the series")
	}
	if !rem.scheduledIDs()[spawned.ID] {
		t.Error("spawned instance should get a reminder")
	}

	// Replay: un-complete and complete again. The D+1 instance already
	// exists, so nothing new may appear.
	mustToggle(t, m, tk.ID)
	mustToggle(t, m, tk.ID)
	if got := len(s.TasksWhere(inSeries)); got != 2 {
		t.Fatalf("duplicate suppression failed: %d instances", got)
	}
}

func TestToggle_CloneCopiesFields(t *testing.T) {
	m, s, _ := newManager(t)

	cat, err := m.CreateCategory(context.Background(), "work", "#00ff00", "briefcase")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	due := time.Date(2030, time.March, 1, 9, 0, 0, 0, time.UTC)
	high := task.PriorityHigh
	tk := mustCreate(t, m, CreateFields{
		Title:      "report",
		Notes:      "weekly numbers",
		Priority:   &high,
		Due:        &due,
		Recurrence: task.RecurrenceWeekly,
		CategoryID: cat.ID,
	})

	mustToggle(t, m, tk.ID)

	spawned := s.TasksWhere(func(x task.Task) bool { return x.SeriesID == tk.ID && x.ID != tk.ID })
	if len(spawned) != 1 {
		t.Fatalf("expected 1 spawned instance, got %d", len(spawned))
	}
	got := spawned[0]
	if got.Title != "report" || got.Notes != "weekly numbers" || got.Priority != task.PriorityHigh {
		t.Errorf("clone fields wrong: %+v", got)
	}
	if got.Recurrence != task.RecurrenceWeekly || got.CategoryID != cat.ID {
		t.Errorf("clone settings wrong: %+v", got)
	}
	if got.ID == tk.ID {
		t.Error("clone must get a fresh id")
	}
}

func TestToggle_ParentAutoCompletesOnLastSubtask(t *testing.T) {
	m, s, _ := newManager(t)

	parent := mustCreate(t, m, CreateFields{Title: "release"})
	subs := make([]task.Task, 3)
	for i := range subs {
		subs[i] = mustCreate(t, m, CreateFields{Title: "step", ParentID: parent.ID})
	}

	mustToggle(t, m, subs[0].ID)
	mustToggle(t, m, subs[1].ID)
	if p, _ := s.Task(parent.ID); p.Completed {
		t.Fatal("parent completed before all subtasks")
	}

	mustToggle(t, m, subs[2].ID)
	if p, _ := s.Task(parent.ID); !p.Completed {
		t.Fatal("parent should auto-complete with the last subtask")
	}

	// Reopening any one subtask reopens the parent.
	mustToggle(t, m, subs[1].ID)
	if p, _ := s.Task(parent.ID); p.Completed {
		t.Fatal("parent should auto-uncomplete when a subtask reopens")
	}
}

func TestToggle_CompletingParentForcesSubtasksRecursively(t *testing.T) {
	m, s, _ := newManager(t)

	root := mustCreate(t, m, CreateFields{Title: "root"})
	mid := mustCreate(t, m, CreateFields{Title: "mid", ParentID: root.ID})
	leaf := mustCreate(t, m, CreateFields{Title: "leaf", ParentID: mid.ID})

	mustToggle(t, m, root.ID)

	for _, id := range []uuid.UUID{root.ID, mid.ID, leaf.ID} {
		if got, _ := s.Task(id); !got.Completed {
			t.Errorf("task %v not forced completed", id)
		}
	}
}

func TestToggle_AncestorWalkClimbsMultipleLevels(t *testing.T) {
	m, s, _ := newManager(t)

	grand := mustCreate(t, m, CreateFields{Title: "grand"})
	parent := mustCreate(t, m, CreateFields{Title: "parent", ParentID: grand.ID})
	leaf := mustCreate(t, m, CreateFields{Title: "leaf", ParentID: parent.ID})

	mustToggle(t, m, leaf.ID)

	if p, _ := s.Task(parent.ID); !p.Completed {
		t.Fatal("parent should auto-complete")
	}
	if g, _ := s.Task(grand.ID); !g.Completed {
		t.Fatal("grandparent should auto-complete in the same walk")
	}
}

func TestToggle_LeafWithoutSubtasksNeverAutoToggles(t *testing.T) {
	m, s, _ := newManager(t)

	a := mustCreate(t, m, CreateFields{Title: "solo a"})
	b := mustCreate(t, m, CreateFields{Title: "solo b"})

	mustToggle(t, m, a.ID)
	if got, _ := s.Task(b.ID); got.Completed {
		t.Fatal("unrelated task toggled")
	}
}

func TestToggle_RecurringAncestorSpawnsOnAutoComplete(t *testing.T) {
	m, s, _ := newManager(t)

	due := time.Date(2030, time.May, 5, 8, 0, 0, 0, time.UTC)
	parent := mustCreate(t, m, CreateFields{Title: "chores", Due: &due, Recurrence: task.RecurrenceWeekly})
	child := mustCreate(t, m, CreateFields{Title: "dishes", ParentID: parent.ID})

	mustToggle(t, m, child.ID)

	if p, _ := s.Task(parent.ID); !p.Completed {
		t.Fatal("parent should auto-complete")
	}
	spawned := s.TasksWhere(func(x task.Task) bool { return x.SeriesID == parent.ID && x.ID != parent.ID })
	if len(spawned) != 1 {
		t.Fatalf("auto-completed recurring ancestor should spawn, got %d", len(spawned))
	}

	// Reopening the child reopens the parent but never retracts the
	// already-spawned next instance.
	mustToggle(t, m, child.ID)
	if p, _ := s.Task(parent.ID); p.Completed {
		t.Fatal("parent should auto-uncomplete")
	}
	if got := len(s.TasksWhere(func(x task.Task) bool { return x.SeriesID == parent.ID && x.ID != parent.ID })); got != 1 {
		t.Fatalf("spawned instance retracted: %d left", got)
	}
}

func TestToggle_CascadeCommitsAsOneUnit(t *testing.T) {
	m, s, _ := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	parent := mustCreate(t, m, CreateFields{Title: "parent"})
	for i := 0; i < 3; i++ {
		mustCreate(t, m, CreateFields{Title: "sub", ParentID: parent.ID})
	}

	sub := s.SubscribeTasks(ctx)
	deadline := time.After(2 * time.Second)
	// Every snapshot must show the cascade either untouched or fully
	// settled: a completed parent with an open subtask would be a
	// partially visible cascade.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case snap, ok := <-sub:
				if !ok {
					return
				}
				var parentDone bool
				open := 0
				for _, x := range snap {
					if x.ID == parent.ID {
						parentDone = x.Completed
					} else if !x.Completed {
						open++
					}
				}
				if parentDone && open > 0 {
					t.Error("observed partial cascade state")
					return
				}
				if parentDone && open == 0 {
					return
				}
			case <-deadline:
				t.Error("never observed settled cascade")
				return
			}
		}
	}()

	mustToggle(t, m, parent.ID)
	<-done
}

func TestToggle_UndatedRecurringSpawnsNothing(t *testing.T) {
	m, s, _ := newManager(t)

	tk := mustCreate(t, m, CreateFields{Title: "someday", Recurrence: task.RecurrenceMonthly})
	mustToggle(t, m, tk.ID)

	if got := len(s.TasksWhere(func(x task.Task) bool { return x.SeriesID == tk.ID })); got != 1 {
		t.Fatalf("undated recurring task spawned: %d instances", got)
	}
}
