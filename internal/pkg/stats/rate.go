package stats

import (
	"sync/atomic"
	"time"

	"github.com/paulbellamy/ratecounter"
)

// rate tracks both an instantaneous per-second rate and a running total
type rate struct {
	counter *ratecounter.RateCounter
	total   uint64
}

func newRate() *rate {
	return &rate{
		counter: ratecounter.NewRateCounter(1 * time.Second),
	}
}

func (r *rate) incr(step int64) {
	r.counter.Incr(step)
	atomic.AddUint64(&r.total, uint64(step))
}

func (r *rate) get() int64 {
	return r.counter.Rate()
}

func (r *rate) getTotal() uint64 {
	return atomic.LoadUint64(&r.total)
}

func (r *rate) reset() {
	atomic.StoreUint64(&r.total, 0)
}
