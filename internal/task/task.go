package task

// RunState is the scheduling state of a task.
type RunState uint8

const (
	// The task is in the ready queue, waiting to be resumed.
	RunStateReady RunState = iota

	// The task is the one currently running.
	RunStateRunning

	// The task waits for one specific child to exit.
	RunStateBlockedOnJoin

	// The task waits for all of its children to exit.
	RunStateBlockedOnJoinAll

	// The task is in the waiter queue of a semaphore.
	RunStateBlockedOnSemaphore

	// The task has exited. Its record is about to be reclaimed.
	RunStateTerminated
)

func (s RunState) String() string {
	switch s {
	case RunStateReady:
		return "ready"
	case RunStateRunning:
		return "running"
	case RunStateBlockedOnJoin:
		return "blocked(join)"
	case RunStateBlockedOnJoinAll:
		return "blocked(joinall)"
	case RunStateBlockedOnSemaphore:
		return "blocked(semaphore)"
	case RunStateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Blocked reports whether the state is one of the blocked states.
func (s RunState) Blocked() bool {
	return s == RunStateBlockedOnJoin || s == RunStateBlockedOnJoinAll || s == RunStateBlockedOnSemaphore
}

// Task is the control block of a single green thread.
type Task struct {
	// Next task in whatever Queue this task is in (ready queue or the waiter
	// queue of a semaphore). A task is in at most one queue at a time.
	Next *Task

	// Unique, monotonically assigned by the scheduler.
	ID uint64

	RunState RunState

	// The task that created this one. Nil for the root task, or once the
	// parent has exited.
	Parent *Task

	// Live children in creation order.
	children siblings

	// Links in the children list of the parent.
	prevSibling, nextSibling *Task

	// Somebody (the parent) waits for this task to exit.
	JoinRequested bool

	// This task waits for all of its children to exit.
	JoinAllRequested bool

	// What a blocked task waits for: the ID of the joined child or of the
	// semaphore. Zero when not applicable.
	Waiting uint64

	// Opaque scheduler data, such as the arena handle of this task.
	Data any

	context *Context
}

// New returns a task that will run entry on its own context once it is
// switched to.
func New(id uint64, entry func(), stackSize uintptr) *Task {
	return &Task{
		ID:       id,
		RunState: RunStateReady,
		context:  NewContext(entry, stackSize),
	}
}

// Context returns the execution context owned by this task.
func (t *Task) Context() *Context {
	return t.context
}

// Release drops the execution context. The task can't be switched to anymore.
func (t *Task) Release() {
	t.context = nil
}
