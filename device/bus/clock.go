package bus

import (
	"sync"
	"time"
)

// requestClock generates the Timestamp field stamped into every
// outgoing frame. Adapted from the teacher's core/clock.Clock: the
// same strictly-increasing-uint32 guarantee (a frame sent twice within
// one wall-clock second still gets distinct timestamps), generalized
// from MeshCore's RTCClock to the bus's per-request framing.
type requestClock struct {
	mu         sync.Mutex
	lastUnique uint32
	nowFn      func() uint32
}

func newRequestClock() *requestClock {
	return &requestClock{
		nowFn: func() uint32 {
			return uint32(time.Now().Unix())
		},
	}
}

// next returns a timestamp strictly greater than every previous value
// this clock has returned.
func (c *requestClock) next() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.nowFn()
	if t <= c.lastUnique {
		c.lastUnique++
		return c.lastUnique
	}
	c.lastUnique = t
	return t
}
