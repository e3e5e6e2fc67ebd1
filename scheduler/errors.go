package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// Usage errors. They never change scheduler state, the calling thread keeps
// running.
var (
	ErrNotAChild        = errors.New("not a child of the calling thread")
	ErrAlreadyJoined    = errors.New("thread already has a pending join")
	ErrBusy             = errors.New("semaphore has waiting threads")
	ErrInvalidValue     = errors.New("invalid initial semaphore value")
	ErrInvalidSemaphore = errors.New("invalid semaphore handle")
	ErrActive           = errors.New("scheduler is already running")
	ErrNoThread         = errors.New("not called from a thread")
)

// BlockedThread describes a thread that was still blocked when control
// returned to the fallback context.
type BlockedThread struct {
	ID    uint64
	State ThreadState

	// Thread ID for a join, semaphore ID for a semaphore wait, zero
	// otherwise.
	Waiting uint64
}

func (b BlockedThread) String() string {
	switch b.State {
	case StateBlockedOnJoin:
		return fmt.Sprintf("t%d waits for t%d", b.ID, b.Waiting)
	case StateBlockedOnJoinAll:
		return fmt.Sprintf("t%d waits for all children", b.ID)
	case StateBlockedOnSemaphore:
		return fmt.Sprintf("t%d waits on s%d", b.ID, b.Waiting)
	default:
		return fmt.Sprintf("t%d is %s", b.ID, b.State)
	}
}

// DeadlockError is returned by Init when no thread was runnable anymore but
// some threads were still blocked. The blocked threads have been reclaimed.
type DeadlockError struct {
	Threads []BlockedThread
}

func (e *DeadlockError) Error() string {
	parts := make([]string, len(e.Threads))
	for i, t := range e.Threads {
		parts[i] = t.String()
	}
	return "deadlock: " + strings.Join(parts, ", ")
}

// FatalError is returned by Init when a fatal condition aborted the session
// and the Fatal hook of the configuration returned.
type FatalError struct {
	// Thread that ran into the condition.
	Thread uint64
	Msg    string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error in t%d: %s", e.Thread, e.Msg)
}
