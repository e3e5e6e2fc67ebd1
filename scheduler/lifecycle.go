package scheduler

import "github.com/tinygo-org/gthread/internal/task"

// Create starts a new thread running fn(s, arg) as a child of the calling
// thread. The new thread is put at the back of the ready queue; the caller
// keeps running.
func (s *Scheduler) Create(fn EntryFunc, arg any) ThreadHandle {
	parent := s.current("create")
	if parent == nil {
		return ThreadHandle{}
	}
	t := s.newThread(fn, arg, parent)
	if t == nil {
		return ThreadHandle{}
	}
	s.ready.Push(t)
	return t.Data.(ThreadHandle)
}

// Yield moves the calling thread to the back of the ready queue and runs the
// thread at the front. It is a no-op when no other thread is ready.
func (s *Scheduler) Yield() {
	cur := s.current("yield")
	if cur == nil {
		return
	}
	s.stats.Yields++
	if s.ready.Empty() {
		return
	}
	cur.RunState = task.RunStateReady
	s.ready.Push(cur)
	s.trace(Event{Kind: EventYield, Thread: cur.ID})
	s.switchAway(cur)
}

// Exit terminates the calling thread. It never returns.
//
// A parent waiting in Join for this thread, or in JoinAll with this thread
// as its last child, is made ready. Children of the exiting thread lose their
// parent and keep running. Deferred calls of the thread run before control is
// handed to the next ready thread, and must not call the scheduler.
func (s *Scheduler) Exit() {
	cur := s.current("exit")
	if cur == nil {
		return
	}

	if parent := cur.Parent; parent != nil {
		if cur.JoinRequested {
			s.wake(parent, cur)
		} else if parent.JoinAllRequested && parent.NumChildren() == 1 {
			// The children list still contains cur, so it is the last one.
			s.wake(parent, cur)
		}
	}

	cur.Detach()
	for _, orphan := range cur.Orphan() {
		s.trace(Event{Kind: EventOrphan, Thread: orphan.ID, Other: cur.ID})
	}

	ctx := cur.Context()
	s.trace(Event{Kind: EventExit, Thread: cur.ID})
	s.reclaim(cur)

	next := s.ready.Pop()
	if next == nil {
		s.running = nil
		s.trace(Event{Kind: EventFallback, Thread: cur.ID})
		ctx.ExitTo(s.fallback)
	}
	s.dispatch(next)
	ctx.ExitTo(next.Context())
}
