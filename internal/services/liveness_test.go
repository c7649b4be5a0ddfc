package services

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance the monitor's view of time without sleeping
// through real idle timeouts.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func waitForState(t *testing.T, monitor *LivenessMonitor, want LivenessState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if monitor.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("State() = %v, want %v", monitor.State(), want)
}

func TestLivenessMonitor_TouchActivates(t *testing.T) {
	monitor := NewLivenessMonitor(10*time.Second, time.Second, testLogger)

	if monitor.State() != LivenessIdle {
		t.Fatalf("initial State() = %v, want %v", monitor.State(), LivenessIdle)
	}

	monitor.Touch()
	if monitor.State() != LivenessActive {
		t.Errorf("State() after Touch = %v, want %v", monitor.State(), LivenessActive)
	}

	// Touch after activation keeps the monitor active.
	monitor.Touch()
	if monitor.State() != LivenessActive {
		t.Errorf("State() after second Touch = %v, want %v", monitor.State(), LivenessActive)
	}
}

func TestLivenessMonitor_IdleNeverExpires(t *testing.T) {
	clock := newFakeClock()
	monitor := NewLivenessMonitor(10*time.Millisecond, time.Millisecond, testLogger)
	monitor.now = clock.Now

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	// Plenty of wall time for several polls while no reading ever arrives.
	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)

	select {
	case <-monitor.Done():
		t.Fatal("Done() closed while idle; the idle clock must start on the first reading")
	default:
	}
	if monitor.State() != LivenessIdle {
		t.Errorf("State() = %v, want %v", monitor.State(), LivenessIdle)
	}
}

func TestLivenessMonitor_ExpiresAfterIdleTimeout(t *testing.T) {
	clock := newFakeClock()
	monitor := NewLivenessMonitor(10*time.Second, time.Millisecond, testLogger)
	monitor.now = clock.Now

	monitor.Touch()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	// Under the timeout: stays active.
	clock.Advance(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if monitor.State() != LivenessActive {
		t.Fatalf("State() before timeout = %v, want %v", monitor.State(), LivenessActive)
	}

	// Over the timeout: the stop signal fires exactly once.
	clock.Advance(6 * time.Second)
	select {
	case <-monitor.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done() not closed after idle timeout")
	}

	// Run returns after signalling and parks in the terminal state.
	waitForState(t, monitor, LivenessStopped)
}

func TestLivenessMonitor_TouchResetsIdleClock(t *testing.T) {
	clock := newFakeClock()
	monitor := NewLivenessMonitor(10*time.Second, time.Millisecond, testLogger)
	monitor.now = clock.Now

	monitor.Touch()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	// Keep touching just inside the timeout; the monitor must stay alive.
	for i := 0; i < 3; i++ {
		clock.Advance(8 * time.Second)
		monitor.Touch()
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-monitor.Done():
		t.Fatal("Done() closed despite readings inside the idle timeout")
	default:
	}
	if monitor.State() != LivenessActive {
		t.Errorf("State() = %v, want %v", monitor.State(), LivenessActive)
	}
}

func TestLivenessMonitor_ContextCancelStopsWithoutSignal(t *testing.T) {
	monitor := NewLivenessMonitor(10*time.Second, time.Millisecond, testLogger)
	monitor.Touch()

	ctx, cancel := context.WithCancel(context.Background())
	go monitor.Run(ctx)
	cancel()

	waitForState(t, monitor, LivenessStopped)

	select {
	case <-monitor.Done():
		t.Error("Done() closed on context cancel; the stop signal is reserved for idle expiry")
	default:
	}
}

func TestLivenessState_String(t *testing.T) {
	tests := []struct {
		state LivenessState
		want  string
	}{
		{LivenessIdle, "idle"},
		{LivenessActive, "active"},
		{LivenessExpired, "expired"},
		{LivenessStopped, "stopped"},
		{LivenessState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("LivenessState(%d).String() = %v, want %v", tt.state, got, tt.want)
		}
	}
}
