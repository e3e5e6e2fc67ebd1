package script

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"v.io/x/lib/vlog"

	"github.com/tinygo-org/gthread/gsync"
	"github.com/tinygo-org/gthread/scheduler"
)

// Run runs the program on a new scheduler configured by cfg and writes the
// output of its threads to out, one "tID: text" line per print statement or
// failed operation.
//
// If the session ended in a deadlock or was aborted by a fatal error, a final
// "deadlock: ..." or "fatal: ..." line is written and the error is returned.
// A Fatal hook in cfg is called but must return; without one, fatal errors
// are only logged.
func (p *Program) Run(cfg scheduler.Config, out io.Writer) error {
	fatal := cfg.Fatal
	cfg.Fatal = func(msg string) {
		vlog.VI(1).Infof("%s: fatal: %s", p.File, msg)
		if fatal != nil {
			fatal(msg)
		}
	}
	r := &runner{
		prog:    p,
		s:       scheduler.New(cfg),
		out:     out,
		sems:    make(map[string]scheduler.SemaphoreHandle),
		mutexes: make(map[string]*gsync.Mutex),
	}
	err := r.s.Init(r.thread, p.Root)

	var dl *scheduler.DeadlockError
	var fe *scheduler.FatalError
	switch {
	case errors.As(err, &dl):
		fmt.Fprintln(out, dl.Error())
	case errors.As(err, &fe):
		fmt.Fprintf(out, "fatal: t%d: %s\n", fe.Thread, fe.Msg)
	}
	return err
}

type runner struct {
	prog *Program
	s    *scheduler.Scheduler
	out  io.Writer

	// Semaphores and mutexes are shared by all threads. Thread variables are
	// local to the thread that spawned them.
	sems    map[string]scheduler.SemaphoreHandle
	mutexes map[string]*gsync.Mutex
}

func (r *runner) thread(s *scheduler.Scheduler, arg any) {
	proc := arg.(*Proc)
	vars := make(map[string]scheduler.ThreadHandle)
	for _, st := range proc.Body {
		r.exec(st, vars)
	}
}

func (r *runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, "t%d: %s\n", r.s.CurrentID(), fmt.Sprintf(format, args...))
}

// fail reports a failed operation and lets the thread continue.
func (r *runner) fail(st *Stmt, err error) {
	r.printf("%s: %v", st, err)
}

func (r *runner) exec(st *Stmt, vars map[string]scheduler.ThreadHandle) {
	switch st.Op {
	case "repeat":
		for i := 0; i < st.Count; i++ {
			r.exec(st.Body, vars)
		}
	case "spawn":
		vars[st.Args[0]] = r.s.Create(r.thread, r.prog.Lookup(st.Args[1]))
	case "yield":
		r.s.Yield()
	case "join":
		if err := r.s.Join(vars[st.Args[0]]); err != nil {
			r.fail(st, err)
		}
	case "joinall":
		r.s.JoinAll()
	case "exit":
		r.s.Exit()
	case "print":
		r.printf("%s", strings.Join(st.Args, " "))
	case "sem":
		initial, _ := strconv.Atoi(st.Args[1])
		h, err := r.s.SemaphoreInit(initial)
		if err != nil {
			r.fail(st, err)
			return
		}
		r.sems[st.Args[0]] = h
	case "wait":
		if err := r.s.SemaphoreWait(r.sems[st.Args[0]]); err != nil {
			r.fail(st, err)
		}
	case "signal":
		if err := r.s.SemaphoreSignal(r.sems[st.Args[0]]); err != nil {
			r.fail(st, err)
		}
	case "destroy":
		if err := r.s.SemaphoreDestroy(r.sems[st.Args[0]]); err != nil {
			r.fail(st, err)
			return
		}
		delete(r.sems, st.Args[0])
	case "lock":
		if m := r.mutex(st); m != nil {
			m.Lock()
		}
	case "unlock":
		if m := r.mutex(st); m != nil {
			if err := unlock(m); err != nil {
				r.fail(st, err)
			}
		}
	default:
		panic("script: unknown statement " + st.Op)
	}
}

// mutex returns the named mutex, creating it on first use.
func (r *runner) mutex(st *Stmt) *gsync.Mutex {
	name := st.Args[0]
	if m := r.mutexes[name]; m != nil {
		return m
	}
	m, err := gsync.NewMutex(r.s)
	if err != nil {
		r.fail(st, err)
		return nil
	}
	r.mutexes[name] = m
	return m
}

func unlock(m *gsync.Mutex) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()
	m.Unlock()
	return nil
}
