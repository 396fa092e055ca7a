package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func TestTotalPages(t *testing.T) {
	t.Parallel()

	cases := []struct {
		total, size, want int
	}{
		{13, 6, 3},
		{12, 6, 2},
		{1, 6, 1},
		{0, 6, 0},
		{5, 0, 0},
		{-1, 6, 0},
		{math.MaxInt, 6, (math.MaxInt-1)/6 + 1},
		{math.MaxInt, 1, math.MaxInt},
	}
	for _, c := range cases {
		require.Equal(t, c.want, TotalPages(c.total, c.size), "total=%d size=%d", c.total, c.size)
	}
}

func TestClampPage(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1, ClampPage(0, 3))
	require.Equal(t, 1, ClampPage(-4, 3))
	require.Equal(t, 2, ClampPage(2, 3))
	require.Equal(t, 3, ClampPage(9, 3))
	require.Equal(t, 1, ClampPage(9, 0))
}

func TestContest_IsActive(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	c := Contest{StartsAt: start, EndsAt: start.Add(time.Hour)}

	require.False(t, c.IsActive(start.Add(-time.Second)))
	require.True(t, c.IsActive(start))
	require.True(t, c.IsActive(start.Add(30*time.Minute)))
	require.True(t, c.IsActive(start.Add(time.Hour)))
	require.False(t, c.IsActive(start.Add(time.Hour+time.Second)))
}

func TestKind_Valid(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{KindSuccess, KindError, KindInfo, KindWarning} {
		require.True(t, k.Valid())
	}
	require.False(t, Kind("fatal").Valid())
}

func TestSession_Authenticated(t *testing.T) {
	t.Parallel()

	require.False(t, Session{}.Authenticated())
	require.True(t, Session{Token: "t", User: &User{Email: "a@b.com"}}.Authenticated())
}

func TestNotificationJSON_TTLInMilliseconds(t *testing.T) {
	t.Parallel()

	n := Notification{
		ID:        uuid.Must(uuid.NewV4()),
		Message:   "saved",
		Kind:      KindSuccess,
		CreatedAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		TTL:       4 * time.Second,
	}
	b, err := json.Marshal(n)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Equal(t, float64(4000), raw["ttl_ms"])
	require.NotContains(t, raw, "ttl")
	require.NotContains(t, raw, "TTL")

	var back Notification
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, n.ID, back.ID)
	require.Equal(t, 4*time.Second, back.TTL)
	require.True(t, n.CreatedAt.Equal(back.CreatedAt))

	require.NoError(t, json.Unmarshal([]byte(`{"message":"sticky","kind":"info"}`), &back))
	require.Zero(t, back.TTL)
}
