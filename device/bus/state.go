package bus

import (
	"sync"
	"time"
)

// sessionState is the device bus's connection lifecycle, generalized
// from device/connection.Manager's single connected/disconnected peer
// model to the four states the bus needs to track for its own MQTT
// session.
type sessionState int

const (
	stateDisconnected sessionState = iota
	stateConnecting
	stateConnected
	stateStale
)

func (s sessionState) String() string {
	switch s {
	case stateDisconnected:
		return "disconnected"
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// sessionTracker owns the bus's session-state transitions and the
// last-inbound timestamp used to detect staleness, mirroring
// device/connection.Manager's mutex-guarded PeerState.LastSeen bookkeeping.
type sessionTracker struct {
	expiry time.Duration

	mu          sync.Mutex
	state       sessionState
	lastInbound time.Time

	nowFn func() time.Time
}

func newSessionTracker(expiry time.Duration) *sessionTracker {
	return &sessionTracker{
		expiry: expiry,
		state:  stateDisconnected,
		nowFn:  time.Now,
	}
}

func (s *sessionTracker) setConnecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateConnecting
}

func (s *sessionTracker) setConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateConnected
	s.lastInbound = s.nowFn()
}

func (s *sessionTracker) setDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateDisconnected
}

// touch records inbound traffic, resetting the staleness clock.
func (s *sessionTracker) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastInbound = s.nowFn()
}

// isUsable reports whether a send may proceed without first
// reconnecting: the session must be Connected and not yet stale.
func (s *sessionTracker) isUsable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateConnected {
		return false
	}
	if s.nowFn().Sub(s.lastInbound) > s.expiry {
		s.state = stateStale
		return false
	}
	return true
}

// current returns the tracker's current state, for diagnostics/tests.
func (s *sessionTracker) current() sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
