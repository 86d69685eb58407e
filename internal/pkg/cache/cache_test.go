package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AdInsights/internal/pkg/testutil"
)

func TestLockIsExclusiveUntilReleased(t *testing.T) {
	mr, c := testutil.NewTestRedis(t)
	SetClient(c)
	t.Cleanup(func() { SetClient(nil) })

	first, err := AcquireLock("fetch_lock:7", "a", time.Minute)
	require.NoError(t, err)

	_, err = AcquireLock("fetch_lock:7", "b", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Release())
	second, err := AcquireLock("fetch_lock:7", "b", time.Minute)
	require.NoError(t, err)

	// a stale holder must not drop someone else's lock
	require.NoError(t, first.Release())
	assert.True(t, mr.Exists("fetch_lock:7"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("fetch_lock:7"))
	assert.NoError(t, second.Release())
}

func TestGetMissAndInt(t *testing.T) {
	_, c := testutil.NewTestRedis(t)
	SetClient(c)
	t.Cleanup(func() { SetClient(nil) })

	_, err := Get("missing")
	assert.True(t, IsMiss(err))

	require.NoError(t, Set("count", 12, 0))
	n, err := GetInt("count")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	require.NoError(t, Delete("count"))
	_, err = GetInt("count")
	assert.True(t, IsMiss(err))
}
