package scheduler

// ThreadInfo is a snapshot of the bookkeeping of a live thread.
type ThreadInfo struct {
	ID    uint64
	State ThreadState

	// ID of the parent, zero for the root thread and for orphans.
	Parent uint64

	// Number of live children.
	Children int

	JoinRequested    bool
	JoinAllRequested bool
}

// Current returns the handle of the running thread. The returned handle is
// not valid when no thread is running.
func (s *Scheduler) Current() ThreadHandle {
	if s.running == nil {
		return ThreadHandle{}
	}
	return s.running.Data.(ThreadHandle)
}

// CurrentID returns the ID of the running thread, or zero.
func (s *Scheduler) CurrentID() uint64 {
	if s.running == nil {
		return 0
	}
	return s.running.ID
}

// Lookup returns information about a live thread. It returns false for
// handles of threads that have exited.
func (s *Scheduler) Lookup(h ThreadHandle) (ThreadInfo, bool) {
	t, ok := s.threads.get(h.slot, h.gen)
	if !ok {
		return ThreadInfo{}, false
	}
	info := ThreadInfo{
		ID:               t.ID,
		State:            t.RunState,
		Children:         t.NumChildren(),
		JoinRequested:    t.JoinRequested,
		JoinAllRequested: t.JoinAllRequested,
	}
	if t.Parent != nil {
		info.Parent = t.Parent.ID
	}
	return info, true
}
