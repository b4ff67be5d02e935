package meeting

import (
	"context"
	"sync"
	"time"
)

// Poller reconciles local state with the server on a fixed interval.
// Each realtime concern owns one; stopping it releases the timer so no
// callback mutates state after room exit.
type Poller struct {
	interval time.Duration
	fn       func(context.Context)

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPoller creates a poller that invokes fn every interval. The first
// invocation happens immediately on Start.
func NewPoller(interval time.Duration, fn func(context.Context)) *Poller {
	return &Poller{interval: interval, fn: fn}
}

func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.fn(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.fn(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for any in-flight invocation to return.
// Safe to call more than once.
func (p *Poller) Stop() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
	})
}
