package idempotency

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sweepTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func sweepLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepRemovesKeysWithoutTTL(t *testing.T) {
	client, _ := sweepTestClient(t)
	ctx := context.Background()

	// Orphaned by a crash between HSet and Expire: no TTL.
	require.NoError(t, client.HSet(ctx, recordKey("orphan"), "status", StatusProcessing).Err())
	// Healthy record with a sane TTL.
	require.NoError(t, client.HSet(ctx, recordKey("alive"), "status", StatusCompleted).Err())
	require.NoError(t, client.Expire(ctx, recordKey("alive"), time.Hour).Err())
	// Unrelated keyspace stays untouched.
	require.NoError(t, client.Set(ctx, "participant:100", "x", 0).Err())

	cleaner := NewCleaner(client, sweepLogger())
	require.NoError(t, cleaner.Sweep(ctx))

	assert.Equal(t, int64(0), client.Exists(ctx, recordKey("orphan")).Val())
	assert.Equal(t, int64(1), client.Exists(ctx, recordKey("alive")).Val())
	assert.Equal(t, int64(1), client.Exists(ctx, "participant:100").Val())
}

func TestSweepRemovesImplausiblyLongTTL(t *testing.T) {
	client, _ := sweepTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, recordKey("runaway"), "x", 48*time.Hour).Err())

	cleaner := NewCleaner(client, sweepLogger())
	require.NoError(t, cleaner.Sweep(ctx))

	assert.Equal(t, int64(0), client.Exists(ctx, recordKey("runaway")).Val())
}

func TestSweepEmptyKeyspace(t *testing.T) {
	client, _ := sweepTestClient(t)

	cleaner := NewCleaner(client, sweepLogger())
	assert.NoError(t, cleaner.Sweep(context.Background()))
}
