package limiter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestMemory(now *time.Time) *Memory {
	l := NewMemory(15*time.Minute, 3, 10*time.Minute)
	l.now = func() time.Time { return *now }
	return l
}

func TestMemory_BlocksAfterMaxFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newTestMemory(&now)
	peer := HashPeer("127.0.0.1")

	for i := 0; i < 2; i++ {
		blocked, _, err := l.Failure(ctx, "a@b.com", peer)
		require.NoError(t, err)
		require.False(t, blocked)
	}
	ok, _, err := l.Allow(ctx, "a@b.com", peer)
	require.NoError(t, err)
	require.True(t, ok)

	blocked, d, err := l.Failure(ctx, " A@B.com ", peer)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, d)

	now = now.Add(time.Minute)
	ok, retry, err := l.Allow(ctx, "a@b.com", peer)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 9*time.Minute, retry)

	// other peers and other emails are unaffected
	ok, _, _ = l.Allow(ctx, "a@b.com", HashPeer("10.0.0.1"))
	require.True(t, ok)
	ok, _, _ = l.Allow(ctx, "c@d.com", peer)
	require.True(t, ok)

	now = now.Add(10 * time.Minute)
	ok, _, _ = l.Allow(ctx, "a@b.com", peer)
	require.True(t, ok)
}

func TestMemory_WindowResetsCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newTestMemory(&now)
	peer := HashPeer("127.0.0.1")

	_, _, _ = l.Failure(ctx, "a@b.com", peer)
	_, _, _ = l.Failure(ctx, "a@b.com", peer)
	now = now.Add(16 * time.Minute)
	blocked, _, err := l.Failure(ctx, "a@b.com", peer)
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestMemory_SuccessResets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newTestMemory(&now)
	peer := HashPeer("127.0.0.1")

	_, _, _ = l.Failure(ctx, "a@b.com", peer)
	_, _, _ = l.Failure(ctx, "a@b.com", peer)
	require.NoError(t, l.Success(ctx, "a@b.com", peer))
	blocked, _, _ := l.Failure(ctx, "a@b.com", peer)
	require.False(t, blocked)
}

func TestMemory_ForgetsExpiredEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newTestMemory(&now)

	for i := 0; i < 50; i++ {
		_, _, err := l.Failure(ctx, fmt.Sprintf("u%d@b.com", i), HashPeer("127.0.0.1"))
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, _, _ = l.Failure(ctx, "locked@b.com", HashPeer("127.0.0.1"))
	}
	require.Len(t, l.entries, 51)

	// a lookup after the window drops that pair
	now = now.Add(16 * time.Minute)
	ok, _, err := l.Allow(ctx, "u0@b.com", HashPeer("127.0.0.1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, l.entries, 50)

	// any later failure sweeps the rest, but a live block survives
	l.blockFor = time.Hour
	for i := 0; i < 3; i++ {
		_, _, _ = l.Failure(ctx, "locked@b.com", HashPeer("127.0.0.1"))
	}
	now = now.Add(16 * time.Minute)
	_, _, err = l.Failure(ctx, "new@b.com", HashPeer("127.0.0.1"))
	require.NoError(t, err)
	require.Len(t, l.entries, 2)
	ok, _, _ = l.Allow(ctx, "locked@b.com", HashPeer("127.0.0.1"))
	require.False(t, ok)
}

func TestMemory_ZeroMaxFailsNeverBlocks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewMemory(time.Minute, 0, time.Minute)
	for i := 0; i < 10; i++ {
		blocked, _, err := l.Failure(ctx, "a@b.com", nil)
		require.NoError(t, err)
		require.False(t, blocked)
	}
}

func TestHashPeer_Stable(t *testing.T) {
	t.Parallel()
	require.Equal(t, HashPeer("1.2.3.4"), HashPeer("1.2.3.4"))
	require.NotEqual(t, HashPeer("1.2.3.4"), HashPeer("1.2.3.5"))
	require.Len(t, HashPeer("x"), 32)
}
