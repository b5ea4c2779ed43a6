package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// Config controls buffering and batching for the Hub.
//   - BufferSize: size of the internal channel (default 1024).
//   - MaxBatch: flush once this many notifications queue (default 64).
//   - MaxBatchWait: flush after this duration even if the batch is small (default 250ms).
//   - SinkTimeout: per-sink timeout while flushing (default 30s).
//   - BaseContext: parent context passed to sink calls (defaults to context.Background()).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	BufferSize   int
	MaxBatch     int
	MaxBatchWait time.Duration
	SinkTimeout  time.Duration
	BaseContext  context.Context
	Logger       *zap.Logger
}

const (
	defaultBufferSize   = 1024
	defaultMaxBatch     = 64
	defaultMaxBatchWait = 250 * time.Millisecond
	defaultSinkTimeout  = 30 * time.Second
	dropWarnInterval    = 5 * time.Second
)

// Hub fans notifications out to registered sinks. It satisfies
// scrape.Emitter: Emit never blocks, so a stalled sink can slow collaborator
// work but never a report call.
type Hub struct {
	cfg      Config
	sinks    []Sink
	incoming chan scrape.Notification
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *zap.Logger
	dropGate warnGate
	dropped  atomic.Int64
	closed   atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub starts the background batching goroutine over the supplied sinks.
// The returned Hub accepts notifications immediately.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = defaultMaxBatchWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:      cfg,
		sinks:    append([]Sink(nil), sinks...),
		incoming: make(chan scrape.Notification, cfg.BufferSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
		dropGate: warnGate{interval: dropWarnInterval},
	}
	go h.run()
	return h
}

// Emit enqueues a notification for batching. It never blocks; if the buffer
// is full the notification is dropped and a rate-limited warning is logged.
func (h *Hub) Emit(n scrape.Notification) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := n.Validate(); err != nil {
		h.logger.Debug("discarding invalid notification", zap.Error(err))
		return
	}
	select {
	case h.incoming <- n:
	default:
		h.dropped.Add(1)
		if h.dropGate.Allow(time.Now()) {
			count := h.dropped.Swap(0)
			h.logger.Warn("notifications dropped due to backpressure",
				zap.Int64("dropped", count))
		}
	}
}

// Close drains buffered notifications, flushes sinks, and blocks until the
// background goroutine exits. Safe to call more than once.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notify hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	batch := make([]scrape.Notification, 0, h.cfg.MaxBatch)
	wait := newFlushTimer(h.cfg.MaxBatchWait)
	for {
		select {
		case n := <-h.incoming:
			batch = append(batch, n)
			if len(batch) >= h.cfg.MaxBatch {
				h.flush(batch)
				batch = batch[:0]
				wait.Stop()
			} else {
				wait.Reset()
			}
		case <-wait.C():
			wait.Expired()
			if len(batch) > 0 {
				h.flush(batch)
				batch = batch[:0]
			}
		case <-h.stopCh:
			wait.Stop()
			h.drain(batch)
			return
		}
	}
}

// drain empties the buffer after stop, flushing full batches as it goes, then
// closes every sink.
func (h *Hub) drain(batch []scrape.Notification) {
	for {
		select {
		case n := <-h.incoming:
			batch = append(batch, n)
			if len(batch) >= h.cfg.MaxBatch {
				h.flush(batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				h.flush(batch)
			}
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) flush(batch []scrape.Notification) {
	if len(batch) == 0 {
		return
	}
	shared := append([]scrape.Notification(nil), batch...)
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx := h.cfg.BaseContext
		cancel := func() {}
		if h.cfg.SinkTimeout > 0 {
			ctx, cancel = context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		}
		if err := sink.Consume(ctx, shared); err != nil {
			h.logger.Warn("notification sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("notification sink close failed", zap.Error(err))
		}
	}
}

// flushTimer wraps time.Timer with the stop-and-drain dance needed to reuse
// one timer across batches.
type flushTimer struct {
	timer  *time.Timer
	wait   time.Duration
	active bool
}

func newFlushTimer(wait time.Duration) *flushTimer {
	t := time.NewTimer(wait)
	t.Stop()
	return &flushTimer{timer: t, wait: wait}
}

func (f *flushTimer) C() <-chan time.Time {
	return f.timer.C
}

// Expired marks the timer consumed after a read from C.
func (f *flushTimer) Expired() {
	f.active = false
}

func (f *flushTimer) Reset() {
	if f.wait <= 0 {
		return
	}
	f.Stop()
	f.timer.Reset(f.wait)
	f.active = true
}

func (f *flushTimer) Stop() {
	if !f.active {
		return
	}
	if !f.timer.Stop() {
		select {
		case <-f.timer.C:
		default:
		}
	}
	f.active = false
}

// warnGate rate-limits log lines without taking a lock on the emit path.
type warnGate struct {
	interval time.Duration
	last     atomic.Int64
}

func (g *warnGate) Allow(now time.Time) bool {
	if g == nil || g.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := g.last.Load()
	if nano-last < g.interval.Nanoseconds() {
		return false
	}
	return g.last.CompareAndSwap(last, nano)
}
