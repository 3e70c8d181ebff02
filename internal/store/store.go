package store

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tendo/internal/task"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrClosed   = errors.New("store is closed")
)

// StorageError wraps a failure of the underlying database. The mutation
// that hit it was rolled back; committed state is unchanged.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store holds every Task and Category record. Committed state is mirrored
// in id-indexed maps and written through to SQLite. All mutations are
// serialized through a single writer goroutine; reads see committed state
// only, never a mutation unit in flight.
type Store struct {
	db *sql.DB

	mu      sync.RWMutex
	tasks   map[uuid.UUID]task.Task
	cats    map[uuid.UUID]task.Category
	subs    map[int]*subscriber
	nextSub int

	reqs    chan applyReq
	closing chan struct{}
	stopped chan struct{}
	once    sync.Once
}

type applyReq struct {
	fn   func(*Tx) error
	done chan error
}

// Open opens (creating if needed) the database at path, ensures the
// schema, and loads all records into memory.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:      db,
		tasks:   make(map[uuid.UUID]task.Task),
		cats:    make(map[uuid.UUID]task.Category),
		subs:    make(map[int]*subscriber),
		reqs:    make(chan applyReq),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, err
	}
	go s.writer()
	return s, nil
}

// Close stops the writer and closes the database. In-flight work finishes
// first; subscriptions end.
func (s *Store) Close() error {
	s.once.Do(func() { close(s.closing) })
	<-s.stopped
	return s.db.Close()
}

// Apply submits one mutation unit to the writer queue and waits for its
// result. The unit runs alone: it sees committed state plus its own staged
// changes, and either commits whole or leaves no trace. ctx applies only
// while waiting to enter the queue; an accepted unit runs to completion.
func (s *Store) Apply(ctx context.Context, fn func(*Tx) error) error {
	req := applyReq{fn: fn, done: make(chan error, 1)}
	select {
	case s.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closing:
		return ErrClosed
	}
	return <-req.done
}

func (s *Store) writer() {
	defer close(s.stopped)
	for {
		select {
		case <-s.closing:
			// reqs is unbuffered, so anything still handed over gets
			// answered here rather than stranding the caller.
			for {
				select {
				case req := <-s.reqs:
					req.done <- ErrClosed
				default:
					return
				}
			}
		case req := <-s.reqs:
			req.done <- s.run(req.fn)
		}
	}
}

func (s *Store) run(fn func(*Tx) error) error {
	sqlTx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Op: "begin", Err: err}
	}
	tx := &Tx{
		s:     s,
		sql:   sqlTx,
		tasks: make(map[uuid.UUID]*task.Task),
		cats:  make(map[uuid.UUID]*task.Category),
	}
	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}

	s.mu.Lock()
	for id, t := range tx.tasks {
		if t == nil {
			delete(s.tasks, id)
		} else {
			s.tasks[id] = *t
		}
	}
	for id, c := range tx.cats {
		if c == nil {
			delete(s.cats, id)
		} else {
			s.cats[id] = *c
		}
	}
	snap := s.taskSliceLocked()
	subs := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.publish(snap)
	}
	return nil
}

// Task returns a committed record by id.
func (s *Store) Task(id uuid.UUID) (task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Category returns a committed record by id.
func (s *Store) Category(id uuid.UUID) (task.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cats[id]
	return c, ok
}

// Tasks returns a copy of every committed task, in no particular order.
func (s *Store) Tasks() []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taskSliceLocked()
}

// TasksWhere returns every committed task matching pred.
func (s *Store) TasksWhere(pred func(task.Task) bool) []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []task.Task{}
	for _, t := range s.tasks {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns a copy of every committed category.
func (s *Store) Categories() []task.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]task.Category, 0, len(s.cats))
	for _, c := range s.cats {
		out = append(out, c)
	}
	return out
}

func (s *Store) taskSliceLocked() []task.Task {
	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
