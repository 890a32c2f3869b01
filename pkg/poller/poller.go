// Package poller runs a function on a fixed interval until it is stopped.
package poller

import (
	"context"
	"io"
	"log"
	"sync"
	"time"
)

// Func is called on every tick. Errors are logged and polling continues.
type Func func(ctx context.Context) error

// Poller calls a Func every Interval, starting immediately.
type Poller struct {
	interval time.Duration
	fn       Func
	logger   *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a poller. A non-positive interval is rejected by Run.
func New(interval time.Duration, fn Func, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Poller{interval: interval, fn: fn, logger: logger}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return errInterval(p.interval)
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := p.fn(ctx); err != nil && ctx.Err() == nil {
		p.logger.Printf("Warning: poll failed: %v", err)
	}
}

// Start runs the poller in the background. Calling Start on a running
// poller restarts it.
func (p *Poller) Start(ctx context.Context) {
	p.Stop()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.mu.Lock()
	p.cancel, p.done = cancel, done
	p.mu.Unlock()
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil && ctx.Err() == nil {
			p.logger.Printf("Warning: poller stopped: %v", err)
		}
	}()
}

// Stop cancels a background poller and waits for it to exit. After Stop
// returns no further call to the Func is made.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

type errInterval time.Duration

func (e errInterval) Error() string {
	return "poller: interval must be positive, got " + time.Duration(e).String()
}
