package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsTasks(t *testing.T) {
	p := NewWorkerPool(4, 16)
	p.Start(context.Background())

	var wg sync.WaitGroup
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.True(t, p.TrySubmit(func() {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	p.Stop()

	assert.Equal(t, int32(10), n.Load())
}

func TestTrySubmitQueueFull(t *testing.T) {
	p := NewWorkerPool(1, 1)
	// 未启动 worker，队列容量为 1
	assert.True(t, p.TrySubmit(func() {}))
	assert.False(t, p.TrySubmit(func() {}))
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewWorkerPool(1, 1)
	p.Start(context.Background())
	p.Stop()
	p.Stop()

	assert.False(t, p.TrySubmit(func() {}))
	assert.ErrorIs(t, p.Submit(context.Background(), func() {}), ErrStopped)
}

func TestSubmitHonorsContext(t *testing.T) {
	p := NewWorkerPool(1, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := p.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPanicRecovered(t *testing.T) {
	var panics atomic.Int32
	p := NewWorkerPool(1, 4, WithPanicHandler(func(any) { panics.Add(1) }))
	p.Start(context.Background())

	done := make(chan struct{})
	require.True(t, p.TrySubmit(func() { panic("boom") }))
	require.True(t, p.TrySubmit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panic 后 worker 应继续处理任务")
	}
	p.Stop()
	assert.Equal(t, int32(1), panics.Load())
}
