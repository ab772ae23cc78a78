package bus

import (
	"encoding/json"
	"sync"
	"time"
)

// pendingResult is delivered on a pending request's channel when its
// response arrives, or when it times out / the bus is closed.
type pendingResult struct {
	value json.RawMessage
	err   error
}

// pendingRequest is one outstanding SendCommand call awaiting a
// response. This mirrors core/ack.PendingACK, generalized from a retry
// callback to a oneshot completion channel per the device bus's
// request/response model (no retries — a timed-out request simply
// surfaces TimedOut to its caller).
type pendingRequest struct {
	ch      chan pendingResult
	nonce   []byte // set for secure (protocol-301) requests
	sentAt  time.Time
	done    bool
}

// pendingTable is the bus's request-id -> pendingRequest map, with a
// background sweep goroutine that times out stale entries. Grounded on
// core/ack.Tracker's checkTimeouts loop, simplified: there is no retry
// path, only a single timeout-and-complete transition.
type pendingTable struct {
	timeout time.Duration

	mu      sync.Mutex
	entries map[uint16]*pendingRequest

	nowFn func() time.Time
}

func newPendingTable(timeout time.Duration) *pendingTable {
	return &pendingTable{
		timeout: timeout,
		entries: make(map[uint16]*pendingRequest),
		nowFn:   time.Now,
	}
}

// track registers requestID as awaiting a response and returns the
// channel its result will be delivered on.
func (t *pendingTable) track(requestID uint16) chan pendingResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan pendingResult, 1)
	t.entries[requestID] = &pendingRequest{ch: ch, sentAt: t.nowFn()}
	return ch
}

// setNonce records the per-request AES-CBC key for a secure request,
// used to decrypt its eventual protocol-301 response.
func (t *pendingTable) setNonce(requestID uint16, nonce []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.entries[requestID]; ok {
		p.nonce = nonce
	}
}

// nonceFor returns the AES-CBC key registered for requestID, if any.
func (t *pendingTable) nonceFor(requestID uint16) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[requestID]
	if !ok {
		return nil, false
	}
	return p.nonce, true
}

// complete delivers value to the pending request registered under
// requestID, if one still exists. Returns false if there was no (or no
// longer a) pending entry — the caller should drop the response
// silently, per the dispatch rule for late or unrecognized responses.
func (t *pendingTable) complete(requestID uint16, value json.RawMessage, err error) bool {
	t.mu.Lock()
	p, ok := t.entries[requestID]
	if ok {
		delete(t.entries, requestID)
	}
	t.mu.Unlock()
	if !ok || p.done {
		return false
	}
	p.done = true
	p.ch <- pendingResult{value: value, err: err}
	return true
}

// cancel removes a pending entry without delivering a result, e.g. when
// a publish itself failed or the caller's context was cancelled.
func (t *pendingTable) cancel(requestID uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, requestID)
}

// failAll completes every outstanding pending request with err. Used on
// Close to unblock any in-flight SendCommand calls with ErrDisconnected.
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint16]*pendingRequest)
	t.mu.Unlock()

	for _, p := range entries {
		if !p.done {
			p.done = true
			p.ch <- pendingResult{err: err}
		}
	}
}

// run is the periodic sweep loop timing out stale pending requests.
// Mirrors core/ack.Tracker.Start/checkTimeouts, minus retries.
func (t *pendingTable) run(done <-chan struct{}) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *pendingTable) sweep() {
	now := t.nowFn()
	var timedOut []*pendingRequest

	t.mu.Lock()
	for id, p := range t.entries {
		if now.Sub(p.sentAt) >= t.timeout {
			timedOut = append(timedOut, p)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()

	for _, p := range timedOut {
		if !p.done {
			p.done = true
			p.ch <- pendingResult{err: ErrTimedOut}
		}
	}
}
