package services

import (
	"context"
	"sync/atomic"
	"time"

	"demand-pipeline/pkg/logging"
)

// Liveness monitor defaults.
const (
	DefaultIdleTimeout  = 10 * time.Second
	DefaultPollInterval = 5 * time.Second
)

// LivenessState describes the monitor's position in its lifecycle.
type LivenessState int32

const (
	// LivenessIdle means no reading has been processed yet. Idle never
	// expires: the idle clock starts on the first reading.
	LivenessIdle LivenessState = iota
	// LivenessActive means readings are flowing.
	LivenessActive
	// LivenessExpired means the idle timeout elapsed and the stop signal
	// was issued.
	LivenessExpired
	// LivenessStopped is terminal.
	LivenessStopped
)

func (s LivenessState) String() string {
	switch s {
	case LivenessIdle:
		return "idle"
	case LivenessActive:
		return "active"
	case LivenessExpired:
		return "expired"
	case LivenessStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// LivenessMonitor watches pipeline throughput and requests shutdown after a
// quiet period. It is used for bounded historical replays where topic
// exhaustion is the natural end of the run.
//
// The record path and the monitor share exactly two things: the lastSeen
// timestamp (written by Touch on the record path, read by the poll loop)
// and the one-shot stop channel (closed by the poll loop, consumed by the
// driver). Touch never blocks.
type LivenessMonitor struct {
	idleTimeout  time.Duration
	pollInterval time.Duration
	logger       *logging.StructuredLogger

	lastSeen atomic.Int64 // unix nanos; 0 = no reading yet
	state    atomic.Int32
	stop     chan struct{}
	now      func() time.Time
}

// NewLivenessMonitor creates a monitor. Non-positive durations fall back to
// the defaults.
func NewLivenessMonitor(idleTimeout, pollInterval time.Duration, logger *logging.StructuredLogger) *LivenessMonitor {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &LivenessMonitor{
		idleTimeout:  idleTimeout,
		pollInterval: pollInterval,
		logger:       logger,
		stop:         make(chan struct{}),
		now:          time.Now,
	}
}

// Touch records that a reading was just processed. Called on the record
// path for every reading; must stay wait-free.
func (m *LivenessMonitor) Touch() {
	m.lastSeen.Store(m.now().UnixNano())
	m.state.CompareAndSwap(int32(LivenessIdle), int32(LivenessActive))
}

// State returns the monitor's current lifecycle state.
func (m *LivenessMonitor) State() LivenessState {
	return LivenessState(m.state.Load())
}

// Done returns the channel closed exactly once when the idle timeout
// expires. The driver selects on it to end a historical run.
func (m *LivenessMonitor) Done() <-chan struct{} {
	return m.stop
}

// Run polls until the idle timeout expires or ctx is cancelled. It issues
// the stop signal at most once, then parks in the Stopped state. Run is
// intended to be launched on its own goroutine.
func (m *LivenessMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	defer m.state.Store(int32(LivenessStopped))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lastSeen := m.lastSeen.Load()
			if lastSeen == 0 {
				continue // still idle, no timeout clock yet
			}

			idle := m.now().Sub(time.Unix(0, lastSeen))
			if idle <= m.idleTimeout {
				continue
			}

			if m.state.CompareAndSwap(int32(LivenessActive), int32(LivenessExpired)) {
				m.logger.Info(ctx, "[LIVENESS_EXPIRED] No readings processed within idle timeout, requesting shutdown", logging.Fields{
					"idle_seconds":    idle.Seconds(),
					"timeout_seconds": m.idleTimeout.Seconds(),
				})
				close(m.stop)
			}
			return
		}
	}
}
