package scheduler

import "fmt"

// EventKind identifies a scheduler transition.
type EventKind uint8

const (
	EventCreate EventKind = iota
	EventRun
	EventYield
	EventBlockJoin
	EventBlockJoinAll
	EventBlockSemaphore
	EventWake
	EventWait
	EventSignal
	EventExit
	EventOrphan
	EventFallback
)

var eventNames = [...]string{
	EventCreate:         "create",
	EventRun:            "run",
	EventYield:          "yield",
	EventBlockJoin:      "block-join",
	EventBlockJoinAll:   "block-joinall",
	EventBlockSemaphore: "block-wait",
	EventWake:           "wake",
	EventWait:           "wait",
	EventSignal:         "signal",
	EventExit:           "exit",
	EventOrphan:         "orphan",
	EventFallback:       "fallback",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("event(%d)", k)
}

// Event is a single scheduler transition, passed to Config.Tracer.
type Event struct {
	Kind EventKind

	// Thread doing the transition (for wake and orphan: the thread the
	// transition is applied to).
	Thread uint64

	// Related thread: the parent on create, the child on block-join, the waker
	// on wake, the former parent on orphan.
	Other uint64

	// Semaphore ID and its value after the operation, for semaphore events.
	Semaphore uint64
	Value     int
}

func (e Event) String() string {
	switch e.Kind {
	case EventCreate:
		if e.Other == 0 {
			return fmt.Sprintf("create t%d", e.Thread)
		}
		return fmt.Sprintf("create t%d parent=t%d", e.Thread, e.Other)
	case EventBlockJoin:
		return fmt.Sprintf("block-join t%d child=t%d", e.Thread, e.Other)
	case EventWake:
		if e.Semaphore != 0 {
			return fmt.Sprintf("wake t%d by=t%d s%d", e.Thread, e.Other, e.Semaphore)
		}
		return fmt.Sprintf("wake t%d by=t%d", e.Thread, e.Other)
	case EventWait, EventSignal, EventBlockSemaphore:
		return fmt.Sprintf("%s t%d s%d value=%d", e.Kind, e.Thread, e.Semaphore, e.Value)
	case EventOrphan:
		return fmt.Sprintf("orphan t%d parent=t%d", e.Thread, e.Other)
	case EventFallback:
		if e.Thread == 0 {
			return "fallback"
		}
		return fmt.Sprintf("fallback from=t%d", e.Thread)
	default:
		return fmt.Sprintf("%s t%d", e.Kind, e.Thread)
	}
}
