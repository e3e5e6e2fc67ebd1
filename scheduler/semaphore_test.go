package scheduler_test

import (
	"errors"
	"testing"

	"github.com/tinygo-org/gthread/scheduler"
)

func TestSemaphoreInit(t *testing.T) {
	s := newScheduler(t)
	h, err := s.SemaphoreInit(-1)
	if !errors.Is(err, scheduler.ErrInvalidValue) || h != scheduler.InvalidSemaphore {
		t.Errorf("SemaphoreInit(-1) returned %v, %v", h, err)
	}
	if err := s.SemaphoreSignal(scheduler.InvalidSemaphore); !errors.Is(err, scheduler.ErrInvalidSemaphore) {
		t.Errorf("SemaphoreSignal(invalid) returned %v, want ErrInvalidSemaphore", err)
	}

	h, err = s.SemaphoreInit(3)
	if err != nil || !h.Valid() {
		t.Fatalf("SemaphoreInit(3) returned %v, %v", h, err)
	}
	if v, _ := s.SemaphoreValue(h); v != 3 {
		t.Errorf("value is %d, want 3", v)
	}
	if err := s.SemaphoreDestroy(h); err != nil {
		t.Errorf("SemaphoreDestroy returned %v", err)
	}
	if err := s.SemaphoreDestroy(h); !errors.Is(err, scheduler.ErrInvalidSemaphore) {
		t.Errorf("second SemaphoreDestroy returned %v, want ErrInvalidSemaphore", err)
	}

	// A new semaphore reuses the slot but not the handle.
	h2, _ := s.SemaphoreInit(0)
	if h2 == h {
		t.Errorf("destroyed handle was issued again")
	}
	if _, err := s.SemaphoreValue(h); !errors.Is(err, scheduler.ErrInvalidSemaphore) {
		t.Errorf("stale handle still resolves")
	}
}

// A thread waits on a semaphore with value 0 and is released by another.
func TestSemaphoreWaitSignal(t *testing.T) {
	s := newScheduler(t)
	var r recorder
	err := s.Init(func(s *scheduler.Scheduler, arg any) {
		sem, err := s.SemaphoreInit(0)
		if err != nil {
			// Fatalf would end this thread without handing off control.
			t.Errorf("SemaphoreInit returned %v", err)
			return
		}
		s.Create(func(s *scheduler.Scheduler, arg any) {
			r.add("X waits")
			if err := s.SemaphoreWait(sem); err != nil {
				t.Errorf("SemaphoreWait returned %v", err)
			}
			r.add("X resumes")
		}, nil)
		s.Create(func(s *scheduler.Scheduler, arg any) {
			if err := s.SemaphoreDestroy(sem); !errors.Is(err, scheduler.ErrBusy) {
				t.Errorf("SemaphoreDestroy with a waiter returned %v, want ErrBusy", err)
			}
			if v, _ := s.SemaphoreValue(sem); v != -1 {
				t.Errorf("value with one waiter is %d, want -1", v)
			}
			r.add("Y signals")
			s.SemaphoreSignal(sem)
			if v, _ := s.SemaphoreValue(sem); v != 0 {
				t.Errorf("value after signal is %d, want 0", v)
			}
			if err := s.SemaphoreDestroy(sem); err != nil {
				t.Errorf("SemaphoreDestroy without waiters returned %v", err)
			}
			r.add("Y exits")
		}, nil)
		s.JoinAll()
	}, nil)
	if err != nil {
		t.Fatalf("Init returned %v", err)
	}
	if got, want := r.String(), "X waits Y signals Y exits X resumes"; got != want {
		t.Errorf("run order is %q, want %q", got, want)
	}
}

func TestSemaphoreFIFOWakeup(t *testing.T) {
	s := newScheduler(t)
	var r recorder
	err := s.Init(func(s *scheduler.Scheduler, arg any) {
		sem, _ := s.SemaphoreInit(1)
		for _, name := range []string{"a", "b", "c"} {
			s.Create(func(s *scheduler.Scheduler, arg any) {
				s.SemaphoreWait(sem)
				r.add("%v", arg)
			}, name)
		}
		// a takes the only unit, b and c block.
		s.Yield()
		if v, _ := s.SemaphoreValue(sem); v != -2 {
			t.Errorf("value is %d, want -2", v)
		}
		s.SemaphoreSignal(sem)
		s.SemaphoreSignal(sem)
		s.JoinAll()
		if v, _ := s.SemaphoreValue(sem); v != 0 {
			t.Errorf("final value is %d, want 0", v)
		}
	}, nil)
	if err != nil {
		t.Fatalf("Init returned %v", err)
	}
	if got, want := r.String(), "a b c"; got != want {
		t.Errorf("wake order is %q, want %q", got, want)
	}
	if st := s.Stats(); st.BlockedWaits != 2 {
		t.Errorf("%d waits blocked, want 2", st.BlockedWaits)
	}
}

// The value after k signals and w waits is initial+k-w, and exactly
// max(0, -min(value)) waits block.
func TestSemaphoreCounting(t *testing.T) {
	for _, tc := range []struct {
		initial, waits, signals int
	}{
		{0, 3, 3},
		{2, 5, 3},
		{5, 2, 0},
		{1, 4, 4},
	} {
		s := newScheduler(t)
		var final int
		err := s.Init(func(s *scheduler.Scheduler, arg any) {
			sem, _ := s.SemaphoreInit(tc.initial)
			for i := 0; i < tc.waits; i++ {
				s.Create(func(s *scheduler.Scheduler, arg any) {
					s.SemaphoreWait(sem)
				}, nil)
			}
			// Let all waiters run before signalling.
			s.Yield()
			for i := 0; i < tc.signals; i++ {
				s.SemaphoreSignal(sem)
			}
			s.JoinAll()
			final, _ = s.SemaphoreValue(sem)
		}, nil)
		if err != nil {
			t.Fatalf("%+v: Init returned %v", tc, err)
		}
		if want := tc.initial + tc.signals - tc.waits; final != want {
			t.Errorf("%+v: final value is %d, want %d", tc, final, want)
		}
		blocked := tc.waits - tc.initial
		if blocked < 0 {
			blocked = 0
		}
		if got := s.Stats().BlockedWaits; got != uint64(blocked) {
			t.Errorf("%+v: %d waits blocked, want %d", tc, got, blocked)
		}
	}
}

func TestDeadlock(t *testing.T) {
	s := newScheduler(t)
	cleanedUp := false
	err := s.Init(func(s *scheduler.Scheduler, arg any) {
		sem, _ := s.SemaphoreInit(0)
		child := s.Create(func(s *scheduler.Scheduler, arg any) {
			defer func() {
				cleanedUp = true
			}()
			s.SemaphoreWait(sem)
			t.Errorf("deadlocked thread resumed")
		}, nil)
		s.Join(child)
		t.Errorf("deadlocked root resumed")
	}, nil)

	var dl *scheduler.DeadlockError
	if !errors.As(err, &dl) {
		t.Fatalf("Init returned %v, want a deadlock", err)
	}
	want := []scheduler.BlockedThread{
		{ID: 1, State: scheduler.StateBlockedOnJoin, Waiting: 2},
		{ID: 2, State: scheduler.StateBlockedOnSemaphore, Waiting: 1},
	}
	if len(dl.Threads) != len(want) {
		t.Fatalf("deadlock reports %v, want %v", dl.Threads, want)
	}
	for i := range want {
		if dl.Threads[i] != want[i] {
			t.Errorf("blocked thread %d is %+v, want %+v", i, dl.Threads[i], want[i])
		}
	}
	if got, want := err.Error(), "deadlock: t1 waits for t2, t2 waits on s1"; got != want {
		t.Errorf("error is %q, want %q", got, want)
	}
	if !cleanedUp {
		t.Errorf("deferred calls of the blocked thread did not run")
	}
	if st := s.Stats(); st.Created != st.Exited {
		t.Errorf("created %d threads but reclaimed %d", st.Created, st.Exited)
	}

	// The scheduler is usable again.
	if err := s.Init(func(*scheduler.Scheduler, any) {}, nil); err != nil {
		t.Errorf("Init after a deadlock returned %v", err)
	}
}

func TestFatalAbortsSession(t *testing.T) {
	var msgs []string
	s := scheduler.New(scheduler.Config{
		MaxThreads: 2,
		Fatal: func(msg string) {
			msgs = append(msgs, msg)
		},
	})
	reached := false
	err := s.Init(func(s *scheduler.Scheduler, arg any) {
		s.Create(func(*scheduler.Scheduler, any) {}, nil)
		s.Create(func(*scheduler.Scheduler, any) {}, nil)
		reached = true
	}, nil)

	var fe *scheduler.FatalError
	if !errors.As(err, &fe) || fe.Thread != 1 {
		t.Fatalf("Init returned %v, want a fatal error in t1", err)
	}
	if reached {
		t.Errorf("thread continued after a fatal error")
	}
	if len(msgs) != 1 || msgs[0] != "could not allocate thread: limit of 2 threads reached" {
		t.Errorf("fatal messages are %q", msgs)
	}
	if st := s.Stats(); st.Created != 2 || st.Exited != 2 {
		t.Errorf("created %d and reclaimed %d threads, want 2 and 2", st.Created, st.Exited)
	}
}

func TestSemaphoreLimit(t *testing.T) {
	var msgs []string
	s := scheduler.New(scheduler.Config{
		MaxSemaphores: 2,
		Fatal: func(msg string) {
			msgs = append(msgs, msg)
		},
	})
	reached := false
	err := s.Init(func(s *scheduler.Scheduler, arg any) {
		for i := 0; i < 3; i++ {
			s.SemaphoreInit(0)
		}
		reached = true
	}, nil)

	var fe *scheduler.FatalError
	if !errors.As(err, &fe) || fe.Thread != 1 {
		t.Fatalf("Init returned %v, want a fatal error in t1", err)
	}
	if reached {
		t.Errorf("thread continued after a fatal error")
	}
	want := "could not allocate semaphore: limit of 2 semaphores reached"
	if fe.Msg != want || len(msgs) != 1 || msgs[0] != want {
		t.Errorf("fatal messages are %q, error is %q, want %q", msgs, fe.Msg, want)
	}
}

func TestOutsideThread(t *testing.T) {
	var msgs []string
	s := scheduler.New(scheduler.Config{
		Fatal: func(msg string) {
			msgs = append(msgs, msg)
		},
	})
	s.Yield()
	if err := s.Join(scheduler.ThreadHandle{}); !errors.Is(err, scheduler.ErrNoThread) {
		t.Errorf("Join outside a thread returned %v, want ErrNoThread", err)
	}
	if h := s.Create(func(*scheduler.Scheduler, any) {}, nil); h.Valid() {
		t.Errorf("Create outside a thread returned a valid handle")
	}
	sem, _ := s.SemaphoreInit(0)
	if err := s.SemaphoreWait(sem); !errors.Is(err, scheduler.ErrNoThread) {
		t.Errorf("SemaphoreWait outside a thread returned %v, want ErrNoThread", err)
	}
	if v, _ := s.SemaphoreValue(sem); v != 0 {
		t.Errorf("failed SemaphoreWait changed the value to %d", v)
	}
	want := []string{
		"yield called outside of a thread",
		"join called outside of a thread",
		"create called outside of a thread",
		"semaphore wait called outside of a thread",
	}
	if len(msgs) != len(want) {
		t.Fatalf("fatal messages are %q, want %q", msgs, want)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("fatal message %d is %q, want %q", i, msgs[i], want[i])
		}
	}
}
