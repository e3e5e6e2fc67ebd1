// Package scheduler implements cooperative user-level threads on top of a
// single logical flow of control.
//
// A Scheduler owns a FIFO ready queue, the set of threads blocked in Join or
// JoinAll, the running thread and the fallback context of whoever called Init.
// Only the running thread makes progress. It keeps control until it calls
// Yield, blocks in Join, JoinAll or SemaphoreWait, or exits. Every operation
// must be called from the running thread; the semaphore operations except
// SemaphoreWait may also be called while no session is active.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"v.io/x/lib/vlog"

	"github.com/tinygo-org/gthread/internal/task"
)

// DefaultStackSize is the stack size accounted for every thread when the
// configuration doesn't set one.
const DefaultStackSize = 8 * 1024

// EntryFunc is the entry point of a thread. The thread exits when it returns.
type EntryFunc func(s *Scheduler, arg any)

// Config configures a Scheduler. The zero value is usable.
type Config struct {
	// Stack size accounted per thread.
	StackSize uintptr

	// Maximum number of live threads and semaphores, zero for no limit.
	// Running out is a fatal error.
	MaxThreads    int
	MaxSemaphores int

	// Tracer, if set, is called for every transition.
	Tracer func(Event)

	// Fatal is called with a diagnostic when the scheduler can't continue.
	// The default logs the message and terminates the process. If Fatal
	// returns, the current session is aborted and Init returns a *FatalError.
	Fatal func(msg string)
}

// ThreadState is the scheduling state of a thread.
type ThreadState = task.RunState

const (
	StateReady              = task.RunStateReady
	StateRunning            = task.RunStateRunning
	StateBlockedOnJoin      = task.RunStateBlockedOnJoin
	StateBlockedOnJoinAll   = task.RunStateBlockedOnJoinAll
	StateBlockedOnSemaphore = task.RunStateBlockedOnSemaphore
	StateTerminated         = task.RunStateTerminated
)

// ThreadHandle identifies a thread for as long as it lives. The handle of a
// thread that has exited stays invalid, even when its slot is reused.
type ThreadHandle struct {
	slot, gen uint32
}

// Valid reports whether the handle was ever issued. Issued handles may still
// be stale.
func (h ThreadHandle) Valid() bool {
	return h.gen != 0
}

// Scheduler is the scheduling authority of a set of green threads. Separate
// schedulers are independent of each other.
type Scheduler struct {
	config Config
	name   string

	ready    task.Queue
	blocked  map[*task.Task]struct{}
	running  *task.Task
	fallback *task.Context

	// True between the start and the end of Init.
	active bool

	// Set when a fatal condition aborted the session.
	failure *FatalError

	threads    arena[*task.Task]
	semaphores arena[*semaphore]

	lastThreadID    uint64
	lastSemaphoreID uint64

	stats Stats
}

// New returns a scheduler with the given configuration.
func New(config Config) *Scheduler {
	if config.StackSize == 0 {
		config.StackSize = DefaultStackSize
	}
	if config.Fatal == nil {
		config.Fatal = func(msg string) {
			vlog.Fatalf("gthread: %s", msg)
		}
	}
	return &Scheduler{
		config:  config,
		name:    uuid.NewString(),
		blocked: make(map[*task.Task]struct{}),
	}
}

// Name returns the unique name of this scheduler, as used in log output.
func (s *Scheduler) Name() string {
	return s.name
}

// Init creates the root thread running fn(s, arg) and switches into it. It
// returns once control flows back to the caller, which happens when the last
// runnable thread exits or blocks.
//
// Init returns a *DeadlockError if threads were still blocked at that point,
// and a *FatalError if the session was aborted.
func (s *Scheduler) Init(fn EntryFunc, arg any) error {
	if s.active {
		return ErrActive
	}
	s.active = true
	s.failure = nil
	defer func() {
		s.active = false
	}()

	vlog.VI(1).Infof("gthread %s: session start", s.name)
	root := s.newThread(fn, arg, nil)
	if root == nil {
		return s.failure
	}
	s.fallback = task.Capture()
	s.dispatch(root)
	s.fallback.SwitchTo(root.Context())

	// Back in the caller: nothing is runnable anymore.
	err := s.finish()
	vlog.VI(1).Infof("gthread %s: session end: %v", s.name, err)
	return err
}

// finish runs on the fallback context at the end of a session. It reclaims
// the threads that are still around.
func (s *Scheduler) finish() error {
	var leftover []*task.Task
	s.threads.each(func(t *task.Task) {
		leftover = append(leftover, t)
	})
	sort.Slice(leftover, func(i, j int) bool {
		return leftover[i].ID < leftover[j].ID
	})

	var err error
	switch {
	case s.failure != nil:
		err = s.failure
	case len(leftover) > 0:
		dl := &DeadlockError{}
		for _, t := range leftover {
			dl.Threads = append(dl.Threads, BlockedThread{ID: t.ID, State: t.RunState, Waiting: t.Waiting})
		}
		err = dl
	}

	// Abandon one goroutine at a time, so that their deferred calls never
	// run at the same time.
	for _, t := range leftover {
		t.Context().Abandon()
		t.Detach()
		t.Orphan()
		t.Next = nil
		s.reclaim(t)
	}
	s.semaphores.each(func(sem *semaphore) {
		n := sem.waiters.Len()
		sem.waiters = task.Queue{}
		sem.value += n
	})
	s.ready = task.Queue{}
	clear(s.blocked)
	s.running = nil
	s.fallback = nil
	return err
}

// newThread allocates a thread and its context. It doesn't enqueue it.
func (s *Scheduler) newThread(fn EntryFunc, arg any, parent *task.Task) *task.Task {
	if s.config.MaxThreads > 0 && s.threads.len() >= s.config.MaxThreads {
		s.fatalf("could not allocate thread: limit of %d threads reached", s.config.MaxThreads)
		return nil
	}
	s.lastThreadID++
	t := task.New(s.lastThreadID, func() {
		fn(s, arg)
		s.Exit()
	}, s.config.StackSize)
	slot, gen := s.threads.put(t)
	t.Data = ThreadHandle{slot: slot, gen: gen}

	e := Event{Kind: EventCreate, Thread: t.ID}
	if parent != nil {
		parent.AddChild(t)
		e.Other = parent.ID
	}
	s.trace(e)

	s.stats.Created++
	if live := uint64(s.threads.len()); live > s.stats.MaxLive {
		s.stats.MaxLive = live
	}
	return t
}

// reclaim drops every reference the scheduler holds to t.
func (s *Scheduler) reclaim(t *task.Task) {
	h := t.Data.(ThreadHandle)
	if !s.threads.remove(h.slot, h.gen) {
		s.fatalf("reclaiming unknown thread t%d", t.ID)
		return
	}
	t.RunState = task.RunStateTerminated
	t.Release()
	t.Data = nil
	s.stats.Exited++
}

// current returns the running thread, or nil (after reporting a fatal error)
// when called outside of a thread.
func (s *Scheduler) current(op string) *task.Task {
	if s.running == nil {
		s.fatalf("%s called outside of a thread", op)
		return nil
	}
	return s.running
}

// dispatch makes t the running thread. The caller switches to it right after.
func (s *Scheduler) dispatch(t *task.Task) {
	t.RunState = task.RunStateRunning
	s.running = t
	s.stats.Switches++
	s.trace(Event{Kind: EventRun, Thread: t.ID})
}

// switchAway suspends cur, which has already been put in its new collection,
// and resumes the next ready thread. Without a ready thread control returns to
// the fallback context. It returns when cur is resumed.
func (s *Scheduler) switchAway(cur *task.Task) {
	next := s.ready.Pop()
	if next == nil {
		s.running = nil
		s.trace(Event{Kind: EventFallback, Thread: cur.ID})
		cur.Context().SwitchTo(s.fallback)
		return
	}
	s.dispatch(next)
	cur.Context().SwitchTo(next.Context())
}

// block records cur as blocked in state on the object with the given ID.
func (s *Scheduler) block(cur *task.Task, state task.RunState, waiting uint64) {
	cur.RunState = state
	cur.Waiting = waiting
	if state != task.RunStateBlockedOnSemaphore {
		s.blocked[cur] = struct{}{}
	}
}

// wake moves a thread blocked in Join or JoinAll to the back of the ready
// queue.
func (s *Scheduler) wake(t *task.Task, by *task.Task) {
	if _, ok := s.blocked[t]; !ok {
		s.fatalf("waking t%d which is not blocked", t.ID)
		return
	}
	delete(s.blocked, t)
	t.RunState = task.RunStateReady
	t.Waiting = 0
	t.JoinAllRequested = false
	s.ready.Push(t)
	s.trace(Event{Kind: EventWake, Thread: t.ID, Other: by.ID})
}

func (s *Scheduler) trace(e Event) {
	vlog.VI(2).Infof("gthread %s: %v", s.name, e)
	if s.config.Tracer != nil {
		s.config.Tracer(e)
	}
}

// fatalf reports a condition the scheduler can't recover from. If the Fatal
// hook returns and a thread is running, the session is aborted: control goes
// to the fallback context and never comes back to the running thread.
func (s *Scheduler) fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.config.Fatal(msg)
	cur := s.running
	if cur == nil {
		return
	}
	s.failure = &FatalError{Thread: cur.ID, Msg: msg}
	s.running = nil
	s.trace(Event{Kind: EventFallback, Thread: cur.ID})
	cur.Context().SwitchTo(s.fallback)
}
