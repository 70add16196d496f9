package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes buffered log records at shutdown.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler decouples chat request latency from log emission: Handle
// enqueues the record and a pool of drain goroutines writes it out.
// When the queue is full the record is dropped rather than blocking the
// request, and the drop is counted.
type AsyncHandler struct {
	inner slog.Handler
	queue chan slog.Record
	wg    *sync.WaitGroup
	drops *atomic.Int64
}

// NewAsyncHandler wraps inner with a queue of the given capacity drained
// by the given number of workers.
func NewAsyncHandler(inner slog.Handler, capacity, workers int) *AsyncHandler {
	h := &AsyncHandler{
		inner: inner,
		queue: make(chan slog.Record, capacity),
		wg:    &sync.WaitGroup{},
		drops: &atomic.Int64{},
	}
	for range workers {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for rec := range h.queue {
				_ = h.inner.Handle(context.Background(), rec)
			}
		}()
	}
	return h
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it when the queue is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error {
	select {
	case h.queue <- rec:
	default:
		h.drops.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.fork(h.inner.WithAttrs(attrs))
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return h.fork(h.inner.WithGroup(name))
}

// fork shares the queue and workers while swapping the inner handler.
func (h *AsyncHandler) fork(inner slog.Handler) slog.Handler {
	return &AsyncHandler{inner: inner, queue: h.queue, wg: h.wg, drops: h.drops}
}

// DroppedCount reports how many records were discarded on a full queue.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.drops.Load()
}

// Close stops accepting records and waits for the workers to drain the
// queue.
func (h *AsyncHandler) Close() {
	close(h.queue)
	h.wg.Wait()
}
