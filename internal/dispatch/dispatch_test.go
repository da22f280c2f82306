package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWritesToSameScopeAreSerialised(t *testing.T) {
	d := New(4, 0)
	var active int32
	var maxObserved int32

	const n = 20
	handles := make([]*Handle, n)
	for i := 0; i < n; i++ {
		handles[i] = d.SubmitWrite(context.Background(), "scope-a", func(ctx context.Context) error {
			cur := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxObserved)
				if cur <= m || atomic.CompareAndSwapInt32(&maxObserved, m, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil
		})
	}
	for _, h := range handles {
		require.NoError(t, h.Await(context.Background()))
	}
	require.Equal(t, int32(1), maxObserved)
}

func TestReadsAcrossScopesRunInParallel(t *testing.T) {
	d := New(8, 0)
	var active int32
	var maxObserved int32
	release := make(chan struct{})

	const n = 4
	handles := make([]*Handle, n)
	for i := 0; i < n; i++ {
		scopeKey := string(rune('a' + i))
		handles[i] = d.SubmitRead(context.Background(), scopeKey, func(ctx context.Context) error {
			cur := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxObserved)
				if cur <= m || atomic.CompareAndSwapInt32(&maxObserved, m, cur) {
					break
				}
			}
			<-release
			atomic.AddInt32(&active, -1)
			return nil
		})
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	for _, h := range handles {
		require.NoError(t, h.Await(context.Background()))
	}
	require.Greater(t, maxObserved, int32(1))
}

func TestAwaitDropsUnstartedTaskOnCancel(t *testing.T) {
	d := New(1, 0)
	blocker := make(chan struct{})
	d.SubmitWrite(context.Background(), "scope-a", func(ctx context.Context) error {
		<-blocker
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Bool
	h := d.SubmitWrite(ctx, "scope-a", func(ctx context.Context) error {
		started.Store(true)
		return nil
	})
	cancel()
	err := h.Await(context.Background())
	require.Error(t, err)
	require.False(t, started.Load())
	close(blocker)
}

func TestWritesToSameScopeRunInSubmissionOrder(t *testing.T) {
	d := New(8, 0)
	var mu sync.Mutex
	var order []int

	const n = 50
	handles := make([]*Handle, n)
	for i := 0; i < n; i++ {
		i := i
		handles[i] = d.SubmitWrite(context.Background(), "scope-a", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	for _, h := range handles {
		require.NoError(t, h.Await(context.Background()))
	}

	require.Len(t, order, n)
	for i := 0; i < n; i++ {
		require.Equal(t, i, order[i])
	}
}

func TestReadAfterWriteOnSameScopeObservesWrite(t *testing.T) {
	d := New(4, 0)
	var value atomic.Int64

	d.SubmitWrite(context.Background(), "scope-a", func(ctx context.Context) error {
		time.Sleep(5 * time.Millisecond)
		value.Store(42)
		return nil
	})
	var got int64
	require.NoError(t, d.RunRead(context.Background(), "scope-a", func(ctx context.Context) error {
		got = value.Load()
		return nil
	}))
	require.Equal(t, int64(42), got)
}
