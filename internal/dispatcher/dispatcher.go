// Package dispatcher manages the embedded worker pool.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/worker"
)

// Config controls pool size and worker identity.
type Config struct {
	// Workers is the pool size (default 1).
	Workers int
	// IDPrefix names the pool; workers are "{prefix}-{n}".
	IDPrefix string
	// PollInterval is forwarded to each worker.
	PollInterval time.Duration
}

// Dispatcher fans queue consumption out to a pool of workers.
type Dispatcher struct {
	workers []*worker.Worker
}

// New builds the pool. Workers share the coordinator and extractor but carry
// distinct identities so lease owners stay attributable.
func New(coordinator worker.Coordinator, extractor worker.Extractor, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "embedded"
	}
	pool := make([]*worker.Worker, 0, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		pool = append(pool, worker.New(coordinator, extractor, worker.Config{
			ID:           fmt.Sprintf("%s-%d", cfg.IDPrefix, i),
			PollInterval: cfg.PollInterval,
		}, logger))
	}
	return &Dispatcher{workers: pool}
}

// Run starts all workers and blocks until the context finishes and every
// worker has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Size reports the pool size.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}
