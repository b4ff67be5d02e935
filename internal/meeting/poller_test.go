package meeting

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollerRunsImmediatelyThenOnInterval(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller(10*time.Millisecond, func(context.Context) {
		calls.Add(1)
	})

	p.Start()
	defer p.Stop()

	assert.Eventually(t, func() bool {
		return calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestPollerStopWaitsForInFlight(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool

	p := NewPoller(time.Hour, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	})

	p.Start()
	<-started
	p.Stop()

	assert.True(t, finished.Load())
}

func TestPollerStopIsIdempotent(t *testing.T) {
	p := NewPoller(time.Hour, func(context.Context) {})
	p.Start()
	p.Stop()
	p.Stop()
}

func TestPollerNoCallbackAfterStop(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller(5*time.Millisecond, func(context.Context) {
		calls.Add(1)
	})

	p.Start()
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	settled := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, calls.Load())
}
