package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/contest-shell/internal/model"
)

func TestISO(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*3600)
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, loc)
	require.Equal(t, "2026-03-01T09:30:00.000Z", ISO(ts))
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"2026-03-01T09:30:00.000Z",
		"2026-03-01T09:30:00Z",
		"2026-03-01T12:30:00+03:00",
		"2026-03-01T09:30:00",
		"2026-03-01 09:30:00",
		"2026-03-01T09:30",
	} {
		got, err := ParseTime(s)
		require.NoError(t, err, s)
		require.True(t, want.Equal(got), "%s -> %s", s, got)
	}

	z, err := ParseTime("  ")
	require.NoError(t, err)
	require.True(t, z.IsZero())

	_, err = ParseTime("yesterday")
	require.Error(t, err)
}

func TestFromWirePage(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"rows": [
			{"contest_id": 1, "title": "A", "starts_at": "2026-01-01T00:00:00.000Z", "ends_at": "2026-01-02T00:00:00.000Z", "is_public": true, "first_name": "Ann", "last_name": "Lee"},
			{"contest_id": "2", "title": "B", "starts_at": "2026-02-01 10:00:00", "ends_at": null, "is_public": "false", "created_at": null}
		],
		"total": "13"
	}`)
	rows, total, err := FromWirePage(raw)
	require.NoError(t, err)
	require.Equal(t, 13, total)
	require.Len(t, rows, 2)

	require.Equal(t, int64(1), rows[0].ID)
	require.Equal(t, "A", rows[0].Title)
	require.True(t, rows[0].IsPublic)
	require.Equal(t, "Ann", rows[0].FirstName)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), rows[0].StartsAt.UTC())

	require.Equal(t, int64(2), rows[1].ID)
	require.False(t, rows[1].IsPublic)
	require.True(t, rows[1].EndsAt.IsZero())
}

func TestFromWirePage_EmptyAndBroken(t *testing.T) {
	t.Parallel()

	rows, total, err := FromWirePage(nil)
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Zero(t, total)

	rows, total, err = FromWirePage(json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NotNil(t, rows)
	require.Zero(t, total)

	_, _, err = FromWirePage(json.RawMessage(`{"rows": "nope"}`))
	require.Error(t, err)

	_, _, err = FromWirePage(json.RawMessage(`{"rows": [], "total": -1}`))
	require.Error(t, err)

	_, _, err = FromWirePage(json.RawMessage(`{"rows": [{"starts_at": "soon"}], "total": 1}`))
	require.Error(t, err)
}

func TestFromWireContest(t *testing.T) {
	t.Parallel()

	c, err := FromWireContest(json.RawMessage(`{"contest_id": 9, "title": "Cup", "is_public": 1}`))
	require.NoError(t, err)
	require.Equal(t, int64(9), c.ID)
	require.True(t, c.IsPublic)

	_, err = FromWireContest(json.RawMessage(`null`))
	require.Error(t, err)
	_, err = FromWireContest(json.RawMessage(`[1]`))
	require.Error(t, err)
}

func TestToWireForm_DraftFields(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	d := model.ContestDraft{
		Title:    "Spring Cup",
		StartsAt: start,
		EndsAt:   start.Add(48 * time.Hour),
		IsPublic: false,
		Image:    &model.Image{Data: []byte{1}},
	}
	f := ToWireForm(d)

	for name, want := range map[string]string{
		"title":     "Spring Cup",
		"starts_at": "2026-05-01T08:00:00.000Z",
		"ends_at":   "2026-05-03T08:00:00.000Z",
		"is_public": "false",
	} {
		got, ok := f.Value(name)
		require.True(t, ok, name)
		require.Equal(t, want, got, name)
	}
	name, data, ok := f.File("profile_img")
	require.True(t, ok)
	require.Equal(t, "profile_img", name)
	require.Equal(t, []byte{1}, data)

	noImg := ToWireForm(model.ContestDraft{Title: "x", IsPublic: true, Image: &model.Image{Name: "a.png"}})
	_, _, ok = noImg.File("profile_img")
	require.False(t, ok, "empty image must not be sent")
	pub, _ := noImg.Value("is_public")
	require.Equal(t, "true", pub)
}

func TestFromWireToken(t *testing.T) {
	t.Parallel()

	tok, err := FromWireToken(json.RawMessage(`{"token":"tok123","user":{"id":1}}`))
	require.NoError(t, err)
	require.Equal(t, "tok123", tok)

	tok, err = FromWireToken(nil)
	require.NoError(t, err)
	require.Empty(t, tok)

	_, err = FromWireToken(json.RawMessage(`"str"`))
	require.Error(t, err)
}

func TestToWireRegister(t *testing.T) {
	t.Parallel()

	got := ToWireRegister(model.Profile{FirstName: "A", LastName: "B", Email: "a@b.com", Password: "secret"})
	b, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, `{"first_name":"A","last_name":"B","email":"a@b.com","password":"secret"}`, string(b))
}
