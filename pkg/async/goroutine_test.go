package async

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/observability"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSafeGo_Success(t *testing.T) {
	executed := atomic.Bool{}

	SafeGo(context.Background(), nil, time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	assert.Eventually(t, executed.Load, time.Second, 5*time.Millisecond)
}

func TestSafeGo_ErrorIsLogged(t *testing.T) {
	out := &syncBuffer{}
	logger := observability.NewLogger(observability.InfoLevel, out)

	SafeGo(context.Background(), logger, time.Second, "test task", func(ctx context.Context) error {
		return errors.New("test error")
	})

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("test error"))
	}, time.Second, 5*time.Millisecond)
}

func TestSafeGo_Timeout(t *testing.T) {
	canceled := atomic.Bool{}

	SafeGo(context.Background(), nil, 20*time.Millisecond, "test task", func(ctx context.Context) error {
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	})

	assert.Eventually(t, canceled.Load, time.Second, 5*time.Millisecond)
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	out := &syncBuffer{}
	logger := observability.NewLogger(observability.InfoLevel, out)

	SafeGo(context.Background(), logger, time.Second, "test task", func(ctx context.Context) error {
		panic("test panic")
	})

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("test panic"))
	}, time.Second, 5*time.Millisecond)
}

func TestEach_PartialFailure(t *testing.T) {
	res := Each(context.Background(), []string{"A", "B"}, 2, time.Second, func(ctx context.Context, id string) error {
		if id == "B" {
			return errors.New("smtp rejected")
		}
		return nil
	})

	assert.Equal(t, []string{"A"}, res.Succeeded)
	assert.Equal(t, []string{"B"}, res.FailedIDs())
	assert.ErrorIs(t, res.Err(), lifecycle.ErrPartialBatchFailure)
}

func TestEach_KeepsInputOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1}
	res := Each(context.Background(), items, 5, time.Second, func(ctx context.Context, n int) error {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return nil
	})

	assert.Equal(t, items, res.Succeeded)
	assert.NoError(t, res.Err())
}

func TestEach_RespectsWorkerLimit(t *testing.T) {
	var (
		current atomic.Int32
		peak    atomic.Int32
	)
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	Each(context.Background(), items, 3, time.Second, func(ctx context.Context, n int) error {
		c := current.Add(1)
		for {
			p := peak.Load()
			if c <= p || peak.CompareAndSwap(p, c) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		current.Add(-1)
		return nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestEach_PanicFailsOnlyItsItem(t *testing.T) {
	res := Each(context.Background(), []string{"ok", "boom"}, 0, 0, func(ctx context.Context, id string) error {
		if id == "boom" {
			panic("kaboom")
		}
		return nil
	})

	assert.Equal(t, []string{"ok"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed[0].Error, "kaboom")
}

func TestEach_PerItemTimeout(t *testing.T) {
	res := Each(context.Background(), []string{"slow"}, 1, 10*time.Millisecond, func(ctx context.Context, id string) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err(), context.DeadlineExceeded)
}

func TestEach_CanceledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := atomic.Bool{}
	res := Each(ctx, []string{"a"}, 1, time.Second, func(ctx context.Context, id string) error {
		called.Store(true)
		return nil
	})

	assert.False(t, called.Load())
	assert.Equal(t, []string{"a"}, res.FailedIDs())
}
