package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLocalLockerExcludes(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "a")
	require.NoError(t, err)

	other, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	other()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	again, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	again()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}

func newRedisLocker(t *testing.T, ttl time.Duration, log *zap.Logger) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client, ttl, log)
	l.retry = 5 * time.Millisecond
	return l, mr
}

func TestRedisLockerWithoutClient(t *testing.T) {
	l := NewRedisLocker(nil, time.Second, zap.NewNop())
	_, err := l.Lock(context.Background(), "a")
	assert.Error(t, err)
}

func TestRedisLockerSerializes(t *testing.T) {
	l, mr := newRedisLocker(t, 30*time.Second, zap.NewNop())
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "trial:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("trial:1"))

	acquired := make(chan func(), 1)
	go func() {
		second, err := l.Lock(ctx, "trial:1")
		if err == nil {
			acquired <- second
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case second := <-acquired:
		second()
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}
	assert.False(t, mr.Exists("trial:1"))
}

func TestRedisLockerContextCancel(t *testing.T) {
	l, _ := newRedisLocker(t, 30*time.Second, zap.NewNop())
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "trial:1")
	require.NoError(t, err)
	defer unlock()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "trial:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLockerStaleTokenKeepsNewHolder(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second, zap.NewNop())
	ctx := context.Background()

	stale, err := l.Lock(ctx, "trial:1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("trial:1"))

	current, err := l.Lock(ctx, "trial:1")
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("trial:1"))

	current()
	assert.False(t, mr.Exists("trial:1"))
}

func TestRedisLockerLogsFailedRelease(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	l, mr := newRedisLocker(t, 30*time.Second, zap.New(core))

	unlock, err := l.Lock(context.Background(), "trial:1")
	require.NoError(t, err)

	mr.Close()
	unlock()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "error releasing lock", entry.Message)
	assert.Equal(t, "trial:1", entry.ContextMap()["key"])
}
