package engine

import (
	"context"
	"testing"
)

func TestWaitForReady(t *testing.T) {
	ctx := context.Background()

	calls := 0
	ready := WaitForReady(ctx, CommandProbe{
		Label: "second attempt",
		Run: func(context.Context) bool {
			calls++
			return calls >= 2
		},
	}, 5)
	if !ready {
		t.Error("probe succeeds on the second attempt, wait should report ready")
	}
	if calls != 2 {
		t.Errorf("probe ran %d times, want 2", calls)
	}
}

func TestWaitForReadyExhausted(t *testing.T) {
	calls := 0
	ready := WaitForReady(context.Background(), CommandProbe{
		Label: "never ready",
		Run: func(context.Context) bool {
			calls++
			return false
		},
	}, 2)
	if ready {
		t.Error("wait should report not ready after exhausting the attempts")
	}
	if calls != 2 {
		t.Errorf("probe ran %d times, want 2", calls)
	}
}

func TestWaitForReadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	ready := WaitForReady(ctx, CommandProbe{
		Label: "never ready",
		Run: func(context.Context) bool {
			calls++
			return false
		},
	}, 10)
	if ready {
		t.Error("cancelled wait should report not ready")
	}
	if calls != 1 {
		t.Errorf("probe ran %d times after cancellation, want 1", calls)
	}
}

func TestWaitUnlessExitedBailsOut(t *testing.T) {
	calls := 0
	ready := waitUnlessExited(context.Background(), CommandProbe{
		Label: "never ready",
		Run: func(context.Context) bool {
			calls++
			return false
		},
	}, func() bool { return true })
	if ready {
		t.Error("a dead process can never become ready")
	}
	if calls != 1 {
		t.Errorf("probe ran %d times with the process gone, want 1", calls)
	}
}
