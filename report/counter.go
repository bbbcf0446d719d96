package report

import "sync/atomic"

// Counter is the flow-control hook the dispatcher decrements once per
// ingested line. A transport that shares a real cross-process counter
// can plug one in; a failed decrement is a fatal transport error.
type Counter interface {
	TryDecrement() error
}

// FlowCounter is advisory in-flight message accounting shared between
// the transport (which releases a unit per queued message) and the
// dispatcher (which consumes one per processed line). It is a plain
// atomic counter, not backpressure: decrementing saturates at zero and
// never blocks or fails.
type FlowCounter struct {
	n atomic.Int64
}

// NewFlowCounter creates a counter holding initial unconsumed units.
func NewFlowCounter(initial int64) *FlowCounter {
	c := &FlowCounter{}
	c.n.Store(initial)
	return c
}

// Release adds n unconsumed units, one per message the transport
// queued.
func (c *FlowCounter) Release(n int64) {
	c.n.Add(n)
}

// TryDecrement consumes one unit, saturating at zero. It never fails;
// the error return exists so a transport-owned Counter that can fail
// fits the same slot.
func (c *FlowCounter) TryDecrement() error {
	for {
		cur := c.n.Load()
		if cur <= 0 {
			return nil
		}
		if c.n.CompareAndSwap(cur, cur-1) {
			return nil
		}
	}
}

// Outstanding releases one unit on behalf of the asking side and
// returns how many units remained unconsumed before that release. This
// is the completion-detection handshake: bookkeeping only, not
// synchronization.
func (c *FlowCounter) Outstanding() int64 {
	return c.n.Add(1) - 1
}
