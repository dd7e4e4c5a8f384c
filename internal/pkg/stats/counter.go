package stats

import "sync/atomic"

// counter is one run-scoped tally. The batch control goroutine, the provider
// layer and the export sinks bump these concurrently while the summary and
// the Prometheus collectors read them.
type counter struct {
	v atomic.Uint64
}

func (c *counter) incr(step uint64) {
	c.v.Add(step)
}

// decr is only meaningful for gauges with a matching incr, like the worker
// routine count; going below zero wraps like the underlying atomic.
func (c *counter) decr(step uint64) {
	c.v.Add(^uint64(step - 1))
}

func (c *counter) get() uint64 {
	return c.v.Load()
}

func (c *counter) reset() {
	c.v.Store(0)
}
