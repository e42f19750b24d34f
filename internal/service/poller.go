package service

import (
	"context"
	"sync"
	"time"
)

// Poller drives the reconciler on a fixed interval. Ticks never overlap: a
// pass still running when the next tick fires makes that tick a no-op.
type Poller struct {
	rec      *Reconciler
	interval time.Duration
	running  sync.Mutex
}

func NewPoller(rec *Reconciler, interval time.Duration) *Poller {
	return &Poller{rec: rec, interval: interval}
}

// Run blocks until ctx is cancelled. Intended to be launched once as a
// background goroutine.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.tick(ctx)
		}
	}
}

// Tick runs one pass on demand, sharing the same non-overlap guard as the
// background loop. Used by the poll-now control endpoint.
func (p *Poller) Tick(ctx context.Context) (string, error) {
	if !p.running.TryLock() {
		return "Check already in progress.", nil
	}
	defer p.running.Unlock()
	return p.rec.PollAndApply(ctx)
}

func (p *Poller) tick(ctx context.Context) {
	if !p.running.TryLock() {
		return
	}
	defer p.running.Unlock()

	summary, err := p.rec.PollAndApply(ctx)
	if err != nil {
		logEvent("poller.error", map[string]any{"error": err.Error()})
		return
	}
	logEvent("poller.pass", map[string]any{"summary": summary})
}
