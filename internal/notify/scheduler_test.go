package notify

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"tendo/internal/task"
)

type fakePlatform struct {
	mu         sync.Mutex
	granted    bool
	permErr    error
	deliverErr error
	delivered  []Notification
}

func (p *fakePlatform) RequestPermission(ctx context.Context) (bool, error) {
	return p.granted, p.permErr
}

func (p *fakePlatform) Deliver(n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delivered = append(p.delivered, n)
	return p.deliverErr
}

func (p *fakePlatform) deliveries() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notification, len(p.delivered))
	copy(out, p.delivered)
	return out
}

func futureTask(title string, in time.Duration) task.Task {
	id := uuid.New()
	return task.Task{
		ID:       id,
		SeriesID: id,
		Title:    title,
		Due:      sql.NullTime{Time: time.Now().Add(in), Valid: true},
	}
}

func TestScheduleFor_OnePendingPerID(t *testing.T) {
	s := New(&fakePlatform{granted: true}, nil)
	tk := futureTask("remind me", time.Hour)

	s.ScheduleFor(tk)
	s.ScheduleFor(tk)

	ids := s.PendingIDs()
	if len(ids) != 1 || ids[0] != tk.ID {
		t.Fatalf("expected exactly one pending reminder for %v, got %v", tk.ID, ids)
	}
}

func TestScheduleFor_IneligibleTasksAreNoOps(t *testing.T) {
	s := New(&fakePlatform{granted: true}, nil)

	undated := task.Task{ID: uuid.New(), Title: "undated"}
	past := futureTask("past", -time.Hour)
	done := futureTask("done", time.Hour)
	done.Completed = true

	s.ScheduleFor(undated)
	s.ScheduleFor(past)
	s.ScheduleFor(done)

	if ids := s.PendingIDs(); len(ids) != 0 {
		t.Fatalf("expected no pending reminders, got %v", ids)
	}
}

func TestCancelFor_SafeWhenAbsent(t *testing.T) {
	s := New(&fakePlatform{granted: true}, nil)
	s.CancelFor(uuid.New())

	tk := futureTask("r", time.Hour)
	s.ScheduleFor(tk)
	s.CancelFor(tk.ID)
	if ids := s.PendingIDs(); len(ids) != 0 {
		t.Fatalf("expected cancel to clear, got %v", ids)
	}
}

func TestCancelAll(t *testing.T) {
	s := New(&fakePlatform{granted: true}, nil)
	for i := 0; i < 3; i++ {
		s.ScheduleFor(futureTask("r", time.Hour))
	}
	s.CancelAll()
	if ids := s.PendingIDs(); len(ids) != 0 {
		t.Fatalf("expected no pending after CancelAll, got %v", ids)
	}
}

func TestFire_DeliversSnapshot(t *testing.T) {
	p := &fakePlatform{granted: true}
	s := New(p, nil)

	tk := futureTask("original title", 20*time.Millisecond)
	tk.Notes = "original notes"
	s.ScheduleFor(tk)

	// Edits after scheduling must not leak into the pending snapshot.
	tk.Title = "renamed"

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(p.deliveries()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	got := p.deliveries()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].Title != "original title" || got[0].Notes != "original notes" {
		t.Errorf("snapshot not preserved: %+v", got[0])
	}
	if ids := s.PendingIDs(); len(ids) != 0 {
		t.Errorf("fired reminder still pending: %v", ids)
	}
}

func TestPermissionDenied_ReportedNoOp(t *testing.T) {
	p := &fakePlatform{granted: false}
	s := New(p, nil)
	s.Start(context.Background())

	s.ScheduleFor(futureTask("blocked", time.Hour))
	if ids := s.PendingIDs(); len(ids) != 0 {
		t.Fatalf("denied permission must suppress scheduling, got %v", ids)
	}
}

func TestPermissionError_TreatedAsDenied(t *testing.T) {
	p := &fakePlatform{granted: true, permErr: errors.New("platform down")}
	s := New(p, nil)
	s.Start(context.Background())

	s.ScheduleFor(futureTask("blocked", time.Hour))
	if ids := s.PendingIDs(); len(ids) != 0 {
		t.Fatalf("permission error must suppress scheduling, got %v", ids)
	}
}
