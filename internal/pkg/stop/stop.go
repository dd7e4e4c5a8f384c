// Package stop implements the cooperative cancellation token shared by the
// orchestrator, the per-file pipelines and the provider clients. Every
// suspension point in the codebase sleeps through Token.Sleep so that a stop
// request is observed within one poll interval rather than at the natural end
// of a multi-second wait.
package stop

import (
	"sync/atomic"
	"time"
)

// pollInterval bounds how long a stop request can go unobserved during a sleep
const pollInterval = 50 * time.Millisecond

// Token carries two cancellation signals: Stop, raised by the caller (UI,
// signal handler), and ForceStop, raised internally when a provider decides
// the whole batch must abort. Both are sticky until Reset.
type Token struct {
	stopped atomic.Bool
	forced  atomic.Bool
}

// NewToken returns a token with no signal raised
func NewToken() *Token {
	return &Token{}
}

// Stop raises the external cancellation signal
func (t *Token) Stop() {
	t.stopped.Store(true)
}

// ForceStop raises the internal abort signal
func (t *Token) ForceStop() {
	t.forced.Store(true)
}

// Reset clears both signals, called at the start of a new batch
func (t *Token) Reset() {
	t.stopped.Store(false)
	t.forced.Store(false)
}

// Stopped reports whether any cancellation signal has been raised.
// A nil token never reports stopped, so collaborators can be called without one.
func (t *Token) Stopped() bool {
	if t == nil {
		return false
	}
	return t.stopped.Load() || t.forced.Load()
}

// Forced reports whether the internal abort signal specifically was raised
func (t *Token) Forced() bool {
	if t == nil {
		return false
	}
	return t.forced.Load()
}

// Sleep waits for d while polling the token. It returns false as soon as a
// cancellation signal is observed, true if the full duration elapsed.
func (t *Token) Sleep(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if t.Stopped() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > pollInterval {
			remaining = pollInterval
		}
		time.Sleep(remaining)
	}
}
