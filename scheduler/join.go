package scheduler

import "github.com/tinygo-org/gthread/internal/task"

// Join blocks the calling thread until the thread identified by h exits.
//
// It fails with ErrNotAChild, without blocking, unless h refers to a live
// direct child of the caller. A handle of a thread that has already exited is
// no longer a child.
func (s *Scheduler) Join(h ThreadHandle) error {
	cur := s.current("join")
	if cur == nil {
		return ErrNoThread
	}
	child, ok := s.threads.get(h.slot, h.gen)
	if !ok || !cur.IsChild(child) {
		return ErrNotAChild
	}
	// Unreachable through the public API: the only possible joiner, the
	// parent, stays blocked until the child is reclaimed.
	if child.JoinRequested {
		return ErrAlreadyJoined
	}
	child.JoinRequested = true
	s.block(cur, task.RunStateBlockedOnJoin, child.ID)
	s.trace(Event{Kind: EventBlockJoin, Thread: cur.ID, Other: child.ID})
	s.switchAway(cur)
	return nil
}

// JoinAll blocks the calling thread until all of its children have exited.
// It returns right away for a thread without children.
func (s *Scheduler) JoinAll() {
	cur := s.current("joinall")
	if cur == nil {
		return
	}
	if cur.NumChildren() == 0 {
		return
	}
	cur.JoinAllRequested = true
	s.block(cur, task.RunStateBlockedOnJoinAll, 0)
	s.trace(Event{Kind: EventBlockJoinAll, Thread: cur.ID})
	s.switchAway(cur)
}
