package poll_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ivyci/enginectl/pkg/poll"
)

func TestUntil_ImmediateSuccess(t *testing.T) {
	res := poll.Until(time.Second, 10*time.Millisecond, func() bool { return true }, nil)
	if !res.Satisfied {
		t.Fatal("expected satisfied")
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
}

func TestUntil_EventualSuccess(t *testing.T) {
	var calls int32
	res := poll.Until(2*time.Second, 10*time.Millisecond, func() bool {
		return atomic.AddInt32(&calls, 1) >= 3
	}, nil)

	if !res.Satisfied {
		t.Fatal("expected satisfied")
	}
	if res.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", res.Attempts)
	}
}

func TestUntil_TimeoutWaitsFullBudget(t *testing.T) {
	timeout := 120 * time.Millisecond
	var ticks int32
	res := poll.Until(timeout, 50*time.Millisecond, func() bool { return false }, func() {
		atomic.AddInt32(&ticks, 1)
	})

	if res.Satisfied {
		t.Fatal("expected timeout")
	}
	if res.Elapsed < timeout {
		t.Errorf("expected elapsed >= %v, got %v", timeout, res.Elapsed)
	}
	if int(atomic.LoadInt32(&ticks)) != res.Attempts {
		t.Errorf("expected onTick per attempt, got %d ticks for %d attempts", ticks, res.Attempts)
	}
}
