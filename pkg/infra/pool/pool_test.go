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

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 10, ExpiryDuration: 5 * time.Second})
	require.NoError(t, err, "创建池失败")
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()

	assert.EqualValues(t, 100, counter.Load(), "任务执行数不匹配")
	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 10, p.Cap())
}

func TestPoolSubmitWithCanceledContext(t *testing.T) {
	p, err := NewPool("ctx", IngestPoolConfig(2))
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = p.SubmitWithContext(ctx, func() { t.Error("任务不应执行") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolPanicRecovered(t *testing.T) {
	var handled atomic.Bool
	done := make(chan struct{})
	p, err := NewPool("panic", &Config{
		Capacity: 1,
		PanicHandler: func(any) {
			handled.Store(true)
			close(done)
		},
	})
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Submit(func() { panic("boom") }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("panic handler 未被调用")
	}
	assert.True(t, handled.Load())
	assert.EqualValues(t, 1, p.Stats().Panics)
}

func TestPoolClosed(t *testing.T) {
	p, err := NewPool("closed", nil)
	require.NoError(t, err)
	p.Release()
	p.Release()

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestManager(t *testing.T) {
	m, err := NewManager(map[Type]*Config{
		IngestPool:     IngestPoolConfig(4),
		BackgroundPool: BackgroundPoolConfig(),
	})
	require.NoError(t, err)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrPoolNotFound)
	assert.ErrorIs(t, m.Register(IngestPool, nil), ErrPoolAlreadyExists)

	done := make(chan struct{})
	require.NoError(t, m.Submit(BackgroundPool, func() { close(done) }))
	<-done

	stats := m.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "background", stats[0].Name)
	assert.Equal(t, "ingest", stats[1].Name)

	require.NoError(t, m.ReleaseAllTimeout(time.Second))
	_, err = m.Get(IngestPool)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestGroupRunsEveryTask(t *testing.T) {
	p, err := NewPool("group", &Config{Capacity: 1, Nonblocking: true})
	require.NoError(t, err)
	defer p.Release()

	var n atomic.Int32
	g := NewGroup(p)
	for i := 0; i < 20; i++ {
		g.Go(context.Background(), func(context.Context) {
			time.Sleep(time.Millisecond)
			n.Add(1)
		})
	}
	g.Wait()
	assert.EqualValues(t, 20, n.Load(), "非阻塞池拒绝的任务应在调用方执行")

	inline := NewGroup(nil)
	inline.Go(context.Background(), func(context.Context) { n.Add(1) })
	inline.Wait()
	assert.EqualValues(t, 21, n.Load())
}
