package race

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTimeout_CompletesFirst(t *testing.T) {
	out := WithTimeout(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "hi", nil
	})

	assert.Equal(t, Completed, out.Kind)
	assert.Equal(t, "hi", out.Value)
	assert.NoError(t, out.Err)
	assert.Less(t, out.Elapsed, time.Second)
}

func TestWithTimeout_ErrorBeforeTimer(t *testing.T) {
	boom := errors.New("connection refused")
	out := WithTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 0, boom
	})

	assert.Equal(t, Completed, out.Kind)
	assert.ErrorIs(t, out.Err, boom)
}

func TestWithTimeout_TimerWinsAndCancelsLoser(t *testing.T) {
	const d = 50 * time.Millisecond
	var cancelled atomic.Bool
	released := make(chan struct{})

	out := WithTimeout(context.Background(), d, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		cancelled.Store(true)
		close(released)
		return "late", ctx.Err()
	})

	assert.Equal(t, TimedOut, out.Kind)
	assert.Empty(t, out.Value)
	assert.GreaterOrEqual(t, out.Elapsed, d)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("losing operation was never cancelled")
	}
	assert.True(t, cancelled.Load())
}

func TestWithTimeout_NeverEarly(t *testing.T) {
	const d = 80 * time.Millisecond
	start := time.Now()
	out := WithTimeout(context.Background(), d, func(ctx context.Context) (struct{}, error) {
		<-ctx.Done()
		return struct{}{}, nil
	})
	elapsed := time.Since(start)

	require.Equal(t, TimedOut, out.Kind)
	assert.GreaterOrEqual(t, elapsed, d)
	assert.Less(t, elapsed, d+500*time.Millisecond)
}

func TestWithTimeout_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := WithTimeout(ctx, time.Second, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return "", ctx.Err()
	})

	assert.Equal(t, Completed, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "timed_out", TimedOut.String())
}
