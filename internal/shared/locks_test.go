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

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, ttl), mr
}

func TestLockerExclusive(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t, time.Second)
	key := QuotationLockKey(7)
	assert.Equal(t, "quotation:7:lock", key)

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	_, err = locker.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrConflict)

	release(ctx)
	assert.False(t, mr.Exists(key))

	again, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	again(ctx)
}

func TestLockerReleaseKeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t, time.Second)
	key := QuotationLockKey(9)

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	// The lock expires and someone else takes it before the first holder
	// releases.
	mr.FastForward(2 * time.Second)
	other, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	release(ctx)
	assert.True(t, mr.Exists(key), "stale release must not delete the new holder's lock")
	other(ctx)
	assert.False(t, mr.Exists(key))
}

func TestNilLockerIsNoop(t *testing.T) {
	var locker *Locker
	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release(context.Background())
}
