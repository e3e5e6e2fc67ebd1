package scheduler

import (
	"errors"
	"testing"
)

func TestJoinPending(t *testing.T) {
	s := New(Config{
		Fatal: func(msg string) {
			t.Errorf("unexpected fatal error: %s", msg)
		},
	})
	err := s.Init(func(s *Scheduler, arg any) {
		h := s.Create(func(*Scheduler, any) {}, nil)
		child, ok := s.threads.get(h.slot, h.gen)
		if !ok {
			t.Errorf("child not found")
			return
		}
		child.JoinRequested = true
		if err := s.Join(h); !errors.Is(err, ErrAlreadyJoined) {
			t.Errorf("Join with a pending join returned %v, want ErrAlreadyJoined", err)
		}
		if cur := s.running; cur == nil || cur.RunState != StateRunning {
			t.Errorf("failed Join changed the state of the caller")
		}
		child.JoinRequested = false
		if err := s.Join(h); err != nil {
			t.Errorf("Join returned %v", err)
		}
	}, nil)
	if err != nil {
		t.Fatalf("Init returned %v", err)
	}
}
