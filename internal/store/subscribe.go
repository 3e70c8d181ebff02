package store

import (
	"context"

	"tendo/internal/task"
)

// subscriber decouples fan-out from the write path. publish never blocks:
// snapshots go through a capacity-1 queue and a newer snapshot displaces
// an unconsumed older one, so a slow consumer simply skips ahead to the
// latest committed state.
type subscriber struct {
	queue chan []task.Task
}

func (sub *subscriber) publish(snap []task.Task) {
	for {
		select {
		case sub.queue <- snap:
			return
		default:
		}
		select {
		case <-sub.queue:
		default:
		}
	}
}

// SubscribeTasks returns a channel of task snapshots. The current
// committed snapshot is replayed immediately; a fresh one follows every
// committed mutation. The channel closes when ctx ends or the store
// closes. Snapshots are copies in no particular order.
func (s *Store) SubscribeTasks(ctx context.Context) <-chan []task.Task {
	sub := &subscriber{queue: make(chan []task.Task, 1)}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	sub.queue <- s.taskSliceLocked()
	s.mu.Unlock()

	out := make(chan []task.Task)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closing:
				return
			case snap := <-sub.queue:
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				case <-s.closing:
					return
				}
			}
		}
	}()
	return out
}
