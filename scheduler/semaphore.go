package scheduler

import "github.com/tinygo-org/gthread/internal/task"

// SemaphoreHandle identifies a semaphore until it is destroyed.
type SemaphoreHandle struct {
	slot, gen uint32
}

// InvalidSemaphore is returned by SemaphoreInit on failure. No operation
// accepts it.
var InvalidSemaphore SemaphoreHandle

// Valid reports whether the handle was ever issued.
func (h SemaphoreHandle) Valid() bool {
	return h.gen != 0
}

// Counting semaphore. A negative value is the number of waiting threads.
type semaphore struct {
	id      uint64
	value   int
	waiters task.Queue
}

func (s *Scheduler) lookupSemaphore(h SemaphoreHandle) (*semaphore, error) {
	sem, ok := s.semaphores.get(h.slot, h.gen)
	if !ok {
		return nil, ErrInvalidSemaphore
	}
	return sem, nil
}

// SemaphoreInit creates a semaphore with the given initial value, which must
// not be negative.
func (s *Scheduler) SemaphoreInit(initial int) (SemaphoreHandle, error) {
	if initial < 0 {
		return InvalidSemaphore, ErrInvalidValue
	}
	if s.config.MaxSemaphores > 0 && s.semaphores.len() >= s.config.MaxSemaphores {
		s.fatalf("could not allocate semaphore: limit of %d semaphores reached", s.config.MaxSemaphores)
		return InvalidSemaphore, ErrInvalidSemaphore
	}
	s.lastSemaphoreID++
	slot, gen := s.semaphores.put(&semaphore{
		id:    s.lastSemaphoreID,
		value: initial,
	})
	return SemaphoreHandle{slot: slot, gen: gen}, nil
}

// SemaphoreWait decrements the semaphore. If the value drops below zero, the
// calling thread blocks until a SemaphoreSignal wakes it; waiters are woken in
// FIFO order.
func (s *Scheduler) SemaphoreWait(h SemaphoreHandle) error {
	sem, err := s.lookupSemaphore(h)
	if err != nil {
		return err
	}
	cur := s.current("semaphore wait")
	if cur == nil {
		return ErrNoThread
	}
	sem.value--
	if sem.value >= 0 {
		s.trace(Event{Kind: EventWait, Thread: cur.ID, Semaphore: sem.id, Value: sem.value})
		return nil
	}
	s.block(cur, task.RunStateBlockedOnSemaphore, sem.id)
	sem.waiters.Push(cur)
	s.stats.BlockedWaits++
	s.trace(Event{Kind: EventBlockSemaphore, Thread: cur.ID, Semaphore: sem.id, Value: sem.value})
	s.switchAway(cur)
	return nil
}

// SemaphoreSignal increments the semaphore and makes the first waiter, if
// any, ready. It never blocks and never switches threads.
func (s *Scheduler) SemaphoreSignal(h SemaphoreHandle) error {
	sem, err := s.lookupSemaphore(h)
	if err != nil {
		return err
	}
	var by uint64
	if s.running != nil {
		by = s.running.ID
	}
	sem.value++
	s.trace(Event{Kind: EventSignal, Thread: by, Semaphore: sem.id, Value: sem.value})
	if t := sem.waiters.Pop(); t != nil {
		t.RunState = task.RunStateReady
		t.Waiting = 0
		s.ready.Push(t)
		s.trace(Event{Kind: EventWake, Thread: t.ID, Other: by, Semaphore: sem.id})
	}
	return nil
}

// SemaphoreDestroy releases the semaphore. It fails with ErrBusy while
// threads are waiting on it.
func (s *Scheduler) SemaphoreDestroy(h SemaphoreHandle) error {
	sem, err := s.lookupSemaphore(h)
	if err != nil {
		return err
	}
	if !sem.waiters.Empty() {
		return ErrBusy
	}
	s.semaphores.remove(h.slot, h.gen)
	return nil
}

// SemaphoreValue returns the current value of the semaphore.
func (s *Scheduler) SemaphoreValue(h SemaphoreHandle) (int, error) {
	sem, err := s.lookupSemaphore(h)
	if err != nil {
		return 0, err
	}
	return sem.value, nil
}

// SemaphoreID returns the unique ID of the semaphore, as used in traces.
func (s *Scheduler) SemaphoreID(h SemaphoreHandle) (uint64, error) {
	sem, err := s.lookupSemaphore(h)
	if err != nil {
		return 0, err
	}
	return sem.id, nil
}
