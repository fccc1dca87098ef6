// Package batch coalesces individual record inserts into batch writes
// without blocking producers, draining a single consumer goroutine into a
// pluggable flush function.
package batch

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// ErrQueueFull is returned by TryAdd when the queue is at capacity.
var ErrQueueFull = errors.New("batcher: queue full")

// Config controls queue capacity and flush coalescing.
type Config struct {
	MaxBatchSize   int           `yaml:"max_batch_size"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	QueueCapacity  int           `yaml:"queue_capacity"`
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.IntVar(&c.MaxBatchSize, prefix+"max-batch-size", 100, "Maximum number of records to batch before flushing.")
	f.DurationVar(&c.FlushInterval, prefix+"flush-interval", 100*time.Millisecond, "Maximum time to wait before flushing a non-empty batch.")
	f.IntVar(&c.QueueCapacity, prefix+"queue-capacity", 10000, "Capacity of the enqueue channel.")
}

// FlushFunc persists a batch. A failed flush is logged and dropped
// (at-most-once write); there is no in-memory retry.
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// Batcher is a single-consumer, multi-producer bounded queue. It is cheap
// to copy: the channel it wraps is itself a reference type, so every copy
// shares the same queue and background drain goroutine.
type Batcher[T any] struct {
	queue chan T
}

// New starts the background drain goroutine and returns a Batcher handle.
// The goroutine runs until ctx is canceled, at which point it flushes any
// remaining buffered records and returns.
func New[T any](ctx context.Context, cfg Config, flush FlushFunc[T], logger log.Logger) *Batcher[T] {
	b := &Batcher[T]{queue: make(chan T, cfg.QueueCapacity)}
	go drain(ctx, b.queue, cfg, flush, logger)
	return b
}

// TryAdd enqueues record without blocking. It fails with ErrQueueFull if
// the queue is at capacity.
func (b *Batcher[T]) TryAdd(record T) error {
	select {
	case b.queue <- record:
		return nil
	default:
		return ErrQueueFull
	}
}

// Add enqueues record, blocking until space is available or ctx is done.
func (b *Batcher[T]) Add(ctx context.Context, record T) error {
	select {
	case b.queue <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func drain[T any](ctx context.Context, queue chan T, cfg Config, flush FlushFunc[T], logger log.Logger) {
	batch := make([]T, 0, cfg.MaxBatchSize)
	ticker := time.NewTicker(cfg.FlushInterval)
	defer ticker.Stop()

	flushNow := func() {
		if len(batch) == 0 {
			return
		}
		n := len(batch)
		if err := flush(ctx, batch); err != nil {
			level.Error(logger).Log("msg", "failed to flush batch", "count", n, "err", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case record, ok := <-queue:
			if !ok {
				flushNow()
				return
			}
			batch = append(batch, record)
			if len(batch) >= cfg.MaxBatchSize {
				flushNow()
			}
		case <-ticker.C:
			flushNow()
		case <-ctx.Done():
			for len(queue) > 0 {
				batch = append(batch, <-queue)
			}
			flushNow()
			return
		}
	}
}
