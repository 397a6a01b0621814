package app

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// worker is one cadence-driven background loop. The function runs once
// per tick and must honor its context; shutdown converges at the next
// cadence boundary.
type worker struct {
	name    string
	cadence time.Duration
	run     func(ctx context.Context)
}

// pool runs a fixed worker set until the context is cancelled.
type pool struct {
	workers []worker
	wg      sync.WaitGroup
}

func (p *pool) add(name string, cadence time.Duration, run func(ctx context.Context)) {
	p.workers = append(p.workers, worker{name: name, cadence: cadence, run: run})
}

func (p *pool) start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w worker) {
			defer p.wg.Done()
			ticker := time.NewTicker(w.cadence)
			defer ticker.Stop()
			slog.Debug("worker started", "worker", w.name, "cadence", w.cadence.String())
			for {
				select {
				case <-ctx.Done():
					slog.Debug("worker stopped", "worker", w.name)
					return
				case <-ticker.C:
					w.run(ctx)
				}
			}
		}(w)
	}
}

// wait blocks until every worker has exited.
func (p *pool) wait() {
	p.wg.Wait()
}
