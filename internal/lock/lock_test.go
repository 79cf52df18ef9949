package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl, heartbeat time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, WithTTL(ttl), WithHeartbeatInterval(heartbeat)), mr
}

func TestAcquireAndRelease(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second, 200*time.Millisecond)
	ctx := context.Background()

	lk, err := locker.Acquire(ctx, "k1")
	require.NoError(t, err)
	require.True(t, mr.Exists("k1"))

	require.NoError(t, lk.Release(ctx))
	require.False(t, mr.Exists("k1"))
}

func TestAcquireRejectsWhenHeld(t *testing.T) {
	locker, _ := newTestLocker(t, time.Second, 200*time.Millisecond)
	ctx := context.Background()

	lk, err := locker.Acquire(ctx, "k1")
	require.NoError(t, err)
	defer lk.Release(ctx)

	_, err = locker.Acquire(ctx, "k1")
	require.ErrorIs(t, err, ErrNotAcquired)
}

func TestHeartbeatRenewsLease(t *testing.T) {
	locker, mr := newTestLocker(t, 300*time.Millisecond, 100*time.Millisecond)
	ctx := context.Background()

	lk, err := locker.Acquire(ctx, "k1")
	require.NoError(t, err)
	defer lk.Release(ctx)

	mr.FastForward(250 * time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	mr.FastForward(250 * time.Millisecond)

	require.True(t, mr.Exists("k1"), "heartbeat should have renewed the lease past its original ttl")
}

func TestReleaseOnlyByOwner(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second, 200*time.Millisecond)
	ctx := context.Background()

	lk, err := locker.Acquire(ctx, "k1")
	require.NoError(t, err)

	// Simulate another owner stealing the key after expiry by
	// overwriting its value directly.
	mr.Set("k1", "someone-else")

	require.NoError(t, lk.Release(ctx))
	require.True(t, mr.Exists("k1"), "release must not delete a key now owned by someone else")
}

func TestWithLockRunsAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second, 200*time.Millisecond)
	ctx := context.Background()

	called := false
	err := locker.WithLock(ctx, "k1", func(ctx context.Context) error {
		called = true
		require.True(t, mr.Exists("k1"))
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
	require.False(t, mr.Exists("k1"))
}

func TestIngestionLockKeyIsPerTenantNamespace(t *testing.T) {
	a := IngestionLockKey("tenant-a", "ns1")
	b := IngestionLockKey("tenant-b", "ns1")
	c := IngestionLockKey("tenant-a", "ns2")
	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
}
