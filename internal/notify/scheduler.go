package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tendo/internal/task"
)

// Notification is the snapshot carried by a reminder. Title and notes are
// captured when the reminder is scheduled, not looked up at fire time.
type Notification struct {
	TaskID uuid.UUID
	Title  string
	Notes  string
	At     time.Time
}

// Platform is the local notification service the scheduler drives. Its
// failures are reported, never propagated into the mutation that asked
// for the reminder.
type Platform interface {
	RequestPermission(ctx context.Context) (bool, error)
	Deliver(n Notification) error
}

// Scheduler keeps at most one pending reminder per task id, replacing on
// reschedule and cancelling on mutation or completion.
type Scheduler struct {
	platform Platform
	log      *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending map[uuid.UUID]*entry
	granted bool
}

type entry struct {
	timer *time.Timer
	n     Notification
}

type Option func(*Scheduler)

// WithClock overrides the scheduler's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(platform Platform, log *slog.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		platform: platform,
		log:      log,
		now:      time.Now,
		pending:  make(map[uuid.UUID]*entry),
		granted:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start asks the platform for permission. Denial makes every later
// ScheduleFor a reported no-op; it never fails the caller.
func (s *Scheduler) Start(ctx context.Context) {
	granted, err := s.platform.RequestPermission(ctx)
	if err != nil {
		s.log.Warn("reminder permission request failed", "err", err)
	}
	s.mu.Lock()
	s.granted = granted && err == nil
	s.mu.Unlock()
	if !granted {
		s.log.Warn("reminders disabled: permission denied")
	}
}

// ScheduleFor registers a reminder at the task's due date. It is a no-op
// unless the due date is set, in the future, and the task is open. Any
// reminder already pending for the id is replaced, never duplicated.
func (s *Scheduler) ScheduleFor(t task.Task) {
	if !t.Due.Valid || t.Completed || !t.Due.Time.After(s.now()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.granted {
		s.log.Warn("reminder suppressed: no permission", "task", t.ID)
		return
	}
	if prev, ok := s.pending[t.ID]; ok {
		prev.timer.Stop()
		delete(s.pending, t.ID)
	}
	n := Notification{TaskID: t.ID, Title: t.Title, Notes: t.Notes, At: t.Due.Time}
	id := t.ID
	timer := time.AfterFunc(t.Due.Time.Sub(s.now()), func() { s.fire(id) })
	s.pending[id] = &entry{timer: timer, n: n}
}

func (s *Scheduler) fire(id uuid.UUID) {
	s.mu.Lock()
	e, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := s.platform.Deliver(e.n); err != nil {
		s.log.Warn("reminder delivery failed", "task", id, "err", err)
	}
}

// CancelFor drops any pending reminder for the id. Safe when none exists.
func (s *Scheduler) CancelFor(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.pending[id]; ok {
		e.timer.Stop()
		delete(s.pending, id)
	}
}

// CancelAll drops every pending reminder. Used by bulk data clears.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, id)
	}
}

// PendingIDs lists the ids with a scheduled reminder, for diagnostics.
func (s *Scheduler) PendingIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, 0, len(s.pending))
	for id := range s.pending {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
