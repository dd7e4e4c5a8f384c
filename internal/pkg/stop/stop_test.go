package stop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenSignals(t *testing.T) {
	token := NewToken()
	assert.False(t, token.Stopped())

	token.Stop()
	assert.True(t, token.Stopped())
	assert.False(t, token.Forced())

	token.Reset()
	assert.False(t, token.Stopped())

	token.ForceStop()
	assert.True(t, token.Stopped())
	assert.True(t, token.Forced())
}

func TestNilTokenNeverStops(t *testing.T) {
	var token *Token
	assert.False(t, token.Stopped())
	assert.False(t, token.Forced())
}

func TestSleepCompletes(t *testing.T) {
	token := NewToken()
	start := time.Now()
	assert.True(t, token.Sleep(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSleepInterrupted(t *testing.T) {
	token := NewToken()
	go func() {
		time.Sleep(30 * time.Millisecond)
		token.Stop()
	}()

	start := time.Now()
	assert.False(t, token.Sleep(5*time.Second))
	// interruption must be observed within roughly one poll interval
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
