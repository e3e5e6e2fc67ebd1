package task

import "runtime"

// If true, print verbose debug logs.
const verbose = false

type wakeup uint8

const (
	wakeResume wakeup = iota
	wakeAbandon
)

// Context is an execution context: a flow of control that can be suspended
// and resumed. Every context except a captured one runs on its own goroutine,
// which is started the first time the context is switched to. A goroutine that
// is not running is parked on its wake channel, so exactly one context makes
// progress at any time.
type Context struct {
	// One slot, so that resuming a context never blocks the resumer.
	wake chan wakeup

	entry     func()
	stackSize uintptr
	started   bool

	// Closed when the goroutine of this context has finished. Nil for a
	// captured context.
	done chan struct{}

	// Set by ExitTo: the context to resume after all deferred calls of this
	// goroutine have run.
	handoff *Context
}

// Capture returns a context for the calling goroutine. It can be switched
// away from and back into, but it never exits through ExitTo.
func Capture() *Context {
	return &Context{
		wake:    make(chan wakeup, 1),
		started: true,
	}
}

// NewContext prepares a context that runs entry once it is first switched to.
// The goroutine backing it grows its stack on demand, stackSize is only used
// for accounting.
func NewContext(entry func(), stackSize uintptr) *Context {
	return &Context{
		wake:      make(chan wakeup, 1),
		entry:     entry,
		stackSize: stackSize,
		done:      make(chan struct{}),
	}
}

// StackSize returns the stack size this context was created with.
func (c *Context) StackSize() uintptr {
	return c.stackSize
}

// Started reports whether the context has been switched to at least once.
func (c *Context) Started() bool {
	return c.started
}

// resume lets the context continue where it was suspended (or start it).
func (c *Context) resume() {
	if verbose {
		println("*** resume:", c)
	}
	if !c.started {
		c.started = true
		go c.run()
		return
	}
	c.wake <- wakeResume
}

func (c *Context) run() {
	defer func() {
		target := c.handoff
		c.handoff = nil
		close(c.done)
		if target != nil {
			target.resume()
		}
	}()
	c.entry()
}

// park suspends the calling goroutine until the context is resumed.
func (c *Context) park() {
	if verbose {
		println("*** pause: ", c)
	}
	if <-c.wake == wakeAbandon {
		runtime.Goexit()
	}
}

// SwitchTo suspends c, which must be the context of the calling goroutine,
// and resumes target. It returns when c is switched back into.
func (c *Context) SwitchTo(target *Context) {
	target.resume()
	c.park()
}

// ExitTo ends c, which must be the context of the calling goroutine, and
// resumes target once the deferred calls of the goroutine have run. It never
// returns.
func (c *Context) ExitTo(target *Context) {
	if c.done == nil {
		panic("task: ExitTo on a captured context")
	}
	c.handoff = target
	runtime.Goexit()
}

// Abandon terminates the goroutine of a suspended context and waits for it to
// finish. Contexts that were never started don't have a goroutine, so there
// is nothing to wait for.
func (c *Context) Abandon() {
	if !c.started || c.done == nil {
		return
	}
	c.wake <- wakeAbandon
	<-c.done
}
