package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{MaxBatchSize: 3, FlushInterval: 20 * time.Millisecond, QueueCapacity: 4}
}

func TestBatcherFlushesOnSize(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var flushed [][]int

	b := New(ctx, testConfig(), func(_ context.Context, batch []int) error {
		mu.Lock()
		defer mu.Unlock()
		cp := append([]int(nil), batch...)
		flushed = append(flushed, cp)
		return nil
	}, log.NewNopLogger())

	require.NoError(t, b.TryAdd(1))
	require.NoError(t, b.TryAdd(2))
	require.NoError(t, b.TryAdd(3))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flushed) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, flushed[0])
	mu.Unlock()
}

func TestBatcherFlushesOnInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var flushed [][]int

	b := New(ctx, testConfig(), func(_ context.Context, batch []int) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, append([]int(nil), batch...))
		return nil
	}, log.NewNopLogger())

	require.NoError(t, b.TryAdd(42))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flushed) == 1 && len(flushed[0]) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBatcherQueueFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	block := make(chan struct{})
	cfg := Config{MaxBatchSize: 1, FlushInterval: time.Hour, QueueCapacity: 1}
	b := New(ctx, cfg, func(_ context.Context, batch []int) error {
		<-block
		return nil
	}, log.NewNopLogger())

	require.NoError(t, b.TryAdd(1))
	// The drain goroutine pulls the first record and blocks inside flush,
	// so the channel has room for exactly one more record once it has done
	// so; the third attempt must then observe QueueFull.
	require.Eventually(t, func() bool { return b.TryAdd(2) == nil }, time.Second, time.Millisecond)
	err := b.TryAdd(3)
	assert.ErrorIs(t, err, ErrQueueFull)
	close(block)
}

func TestBatcherFlushesRemainderOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var flushed []int

	cfg := Config{MaxBatchSize: 100, FlushInterval: time.Hour, QueueCapacity: 10}
	b := New(ctx, cfg, func(_ context.Context, batch []int) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, batch...)
		return nil
	}, log.NewNopLogger())

	require.NoError(t, b.TryAdd(1))
	require.NoError(t, b.TryAdd(2))
	cancel()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flushed) == 2
	}, time.Second, 5*time.Millisecond)
}
