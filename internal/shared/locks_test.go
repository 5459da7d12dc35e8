package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockManagerSingleHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	locks := NewLockManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	ctx := context.Background()
	key := DispatchLockKey("sess-1", "report_fault")

	release, err := locks.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = locks.Acquire(ctx, key)
	assert.ErrorIs(t, err, ErrLockHeld)

	release()
	release2, err := locks.Acquire(ctx, key)
	require.NoError(t, err)
	release2()
}

func TestLockManagerExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	locks := NewLockManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Second)
	ctx := context.Background()

	_, err := locks.Acquire(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	release, err := locks.Acquire(ctx, "k")
	require.NoError(t, err)
	release()
}

func TestDispatchLockKeyScopesBySessionAndKind(t *testing.T) {
	assert.Equal(t, "dispatch:abc:act_on_alert:lock", DispatchLockKey("abc", "act_on_alert"))
	assert.NotEqual(t, DispatchLockKey("a", "x"), DispatchLockKey("b", "x"))
}
