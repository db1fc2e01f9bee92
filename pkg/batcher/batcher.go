// Package batcher provides a generic buffered batch processor with rate limiting.
package batcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// ErrStopped is returned by Add once the batcher has been stopped.
var ErrStopped = errors.New("batcher stopped")

// Options tune how a Batcher flushes.
type Options struct {
	// FlushSize is the number of buffered items that triggers a flush.
	FlushSize int
	// FlushInterval flushes whatever is buffered on every tick.
	FlushInterval time.Duration
	// RPS caps flush calls per second.
	RPS int
	// DrainAttempts bounds flush attempts for the final batch on shutdown.
	// Zero means a single attempt.
	DrainAttempts int
	// DrainBackoff is the pause between shutdown flush attempts.
	DrainBackoff time.Duration
}

func (o Options) validate() error {
	switch {
	case o.FlushSize <= 0:
		return errors.New("flush size must be positive")
	case o.FlushInterval <= 0:
		return errors.New("flush interval must be positive")
	case o.RPS <= 0:
		return errors.New("rps must be positive")
	case o.DrainAttempts < 0:
		return errors.New("drain attempts must not be negative")
	case o.DrainBackoff < 0:
		return errors.New("drain backoff must not be negative")
	}
	return nil
}

// Batcher buffers items and flushes them either by size or interval.
// Items are delivered to the callback in the order they were added.
// A batch whose flush fails stays buffered and is retried, together with
// newer items, on the next flush.
type Batcher[T any] struct {
	flushCallback func(context.Context, []T) error
	itemsCh       chan T
	opts          Options
	rl            ratelimit.Limiter
	logger        *zap.Logger

	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New constructs a Batcher. The callback must not retain the slice it receives.
func New[T any](logger *zap.Logger, flushCallback func(context.Context, []T) error, opts Options) (*Batcher[T], error) {
	if flushCallback == nil {
		return nil, errors.New("flush callback is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Batcher[T]{
		logger:        logger,
		flushCallback: flushCallback,
		itemsCh:       make(chan T, opts.FlushSize*2),
		opts:          opts,
		rl:            ratelimit.New(opts.RPS),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}, nil
}

// Start begins the background flushing loop.
func (b *Batcher[T]) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop stops the loop after flushing everything already queued. Safe to call twice.
// Items added after the Start context is canceled may be dropped; call Stop first
// when every item must be flushed.
func (b *Batcher[T]) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		b.mu.Unlock()
		close(b.stop)
	})
	b.wg.Wait()
}

// Add queues an item for batching, respecting context cancellation.
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return ErrStopped
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrStopped
	case b.itemsCh <- item:
		return nil
	}
}

func (b *Batcher[T]) run(ctx context.Context) {
	defer b.wg.Done()
	defer close(b.done)

	ticker := time.NewTicker(b.opts.FlushInterval)
	defer ticker.Stop()

	buf := make([]T, 0, b.opts.FlushSize)

	flush := func(ctx context.Context) error {
		if len(buf) == 0 {
			return nil
		}

		b.rl.Take()
		if err := b.flushCallback(ctx, buf); err != nil {
			b.logger.Error("batch not flushed, keeping it for retry", zap.Int("size", len(buf)), zap.Error(err))
			return err
		}
		b.logger.Debug("batch flushed", zap.Int("size", len(buf)))
		buf = buf[:0]
		return nil
	}

	// drain flushes queued items on shutdown with a context that outlives ctx.
	drain := func() {
		final := context.WithoutCancel(ctx)
	queued:
		for {
			select {
			case item := <-b.itemsCh:
				buf = append(buf, item)
				if len(buf) >= b.opts.FlushSize {
					_ = flush(final)
				}
			default:
				break queued
			}
		}

		attempts := max(b.opts.DrainAttempts, 1)
		for attempt := 1; ; attempt++ {
			err := flush(final)
			if err == nil {
				return
			}
			if attempt >= attempts {
				b.logger.Error("batch dropped on shutdown",
					zap.Int("size", len(buf)),
					zap.Int("attempts", attempt),
					zap.Error(err),
				)
				buf = buf[:0]
				return
			}
			time.Sleep(b.opts.DrainBackoff)
		}
	}

	for {
		select {
		case <-ctx.Done():
			drain()
			return

		case <-b.stop:
			drain()
			return

		case item := <-b.itemsCh:
			buf = append(buf, item)
			if len(buf) >= b.opts.FlushSize {
				_ = flush(ctx)
			}

		case <-ticker.C:
			_ = flush(ctx)
		}
	}
}
