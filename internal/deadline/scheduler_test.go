package deadline

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_FiresOnce(t *testing.T) {
	s := NewScheduler(testLogger())

	var fires int32
	done := make(chan struct{})

	s.Arm(1, time.Now().Add(20*time.Millisecond), func(_ context.Context, telegramID int64, _ time.Time) {
		assert.Equal(t, int64(1), telegramID)
		atomic.AddInt32(&fires, 1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("finalizer did not fire")
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fires))
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_CancelPreventsFire(t *testing.T) {
	s := NewScheduler(testLogger())

	var fires int32
	s.Arm(2, time.Now().Add(30*time.Millisecond), func(context.Context, int64, time.Time) {
		atomic.AddInt32(&fires, 1)
	})

	require.True(t, s.Cancel(2))
	assert.False(t, s.Cancel(2), "second cancel must be a no-op")

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fires))
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_RearmSupersedesOldTimer(t *testing.T) {
	s := NewScheduler(testLogger())

	fired := make(chan time.Time, 2)

	first := time.Now().Add(25 * time.Millisecond)
	s.Arm(3, first, func(_ context.Context, _ int64, deadline time.Time) {
		fired <- deadline
	})

	second := time.Now().Add(60 * time.Millisecond)
	s.Arm(3, second, func(_ context.Context, _ int64, deadline time.Time) {
		fired <- deadline
	})

	assert.Equal(t, 1, s.Len(), "at most one live timer per participant")

	armed, ok := s.Armed(3)
	require.True(t, ok)
	assert.True(t, armed.Equal(second))

	select {
	case deadline := <-fired:
		assert.True(t, deadline.Equal(second), "only the superseding timer may fire")
	case <-time.After(time.Second):
		t.Fatal("superseding timer did not fire")
	}

	select {
	case deadline := <-fired:
		t.Fatalf("superseded timer fired with deadline %v", deadline)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestScheduler_LateFireAfterSupersedeIsNoop(t *testing.T) {
	s := NewScheduler(testLogger())

	var fires int32
	finalize := func(context.Context, int64, time.Time) {
		atomic.AddInt32(&fires, 1)
	}

	// Simulate the race where a stale timer callback runs after a newer arm
	// already replaced the handle.
	stale := time.Now().Add(-time.Minute)
	s.Arm(4, time.Now().Add(time.Hour), finalize)
	s.onFire(4, stale, finalize)

	assert.Equal(t, int32(0), atomic.LoadInt32(&fires))
	assert.Equal(t, 1, s.Len(), "live timer must survive the stale fire")
	require.True(t, s.Cancel(4))
}

func TestScheduler_ArmedReportsNoTimer(t *testing.T) {
	s := NewScheduler(testLogger())

	_, ok := s.Armed(99)
	assert.False(t, ok)
}
