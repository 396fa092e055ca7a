package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/contest-shell/internal/errs"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := New(srv.URL+"/api/", opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadBase(t *testing.T) {
	t.Parallel()

	_, err := New("ftp://example.com")
	require.Error(t, err)
	_, err = New("://nope")
	require.Error(t, err)
}

func TestGet_SuccessEnvelope(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/contests/public", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "6", r.URL.Query().Get("limit"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"success":true,"data":{"rows":[],"total":0}}`)
	})

	env, err := c.Get(context.Background(), "/contests/public", url.Values{"page": {"2"}, "limit": {"6"}})
	require.NoError(t, err)
	require.True(t, env.Success)
	require.JSONEq(t, `{"rows":[],"total":0}`, string(env.Data))
}

func TestPostJSON_BearerAndBody(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "a@b.com", in["email"])
		_, _ = io.WriteString(w, `{"success":true,"data":{"token":"t"}}`)
	}, WithTokenSource(staticToken("tok123")))

	env, err := c.PostJSON(context.Background(), "/users/login", map[string]string{"email": "a@b.com"})
	require.NoError(t, err)
	require.True(t, env.Success)
}

func TestDo_SuccessFalseIsRemoteError(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"message":"Invalid credentials"}`)
	})

	_, err := c.PostJSON(context.Background(), "/users/login", map[string]string{})
	var re *errs.RemoteError
	require.ErrorAs(t, err, &re)
	require.Equal(t, http.StatusOK, re.Status)
	require.Equal(t, "Invalid credentials", re.Message)
}

func TestDo_HTTPErrorCarriesServerMessage(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success":false,"message":"title is required"}`)
	})

	_, err := c.Get(context.Background(), "/x", nil)
	var re *errs.RemoteError
	require.ErrorAs(t, err, &re)
	require.Equal(t, http.StatusBadRequest, re.Status)
	require.Equal(t, "title is required", re.Message)
}

func TestDo_HTTPErrorWithoutBody(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Get(context.Background(), "/x", nil)
	var re *errs.RemoteError
	require.ErrorAs(t, err, &re)
	require.Equal(t, http.StatusBadGateway, re.Status)
	require.Empty(t, re.Message)
}

func TestDo_UnauthorizedHook(t *testing.T) {
	t.Parallel()

	calls := 0
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"success":false,"message":"token expired"}`)
	}, WithTokenSource(staticToken("stale")), WithUnauthorizedHook(func() { calls++ }))

	_, err := c.Get(context.Background(), "/contests/public", nil)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Equal(t, 1, calls)
}

func TestDo_UnauthorizedWithoutTokenSkipsHook(t *testing.T) {
	t.Parallel()

	calls := 0
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, WithUnauthorizedHook(func() { calls++ }))

	_, err := c.PostJSON(context.Background(), "/users/login", map[string]string{})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Zero(t, calls)
}

func TestDo_MalformedBodyIsTransportError(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})

	_, err := c.Get(context.Background(), "/x", nil)
	var te *errs.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, errs.GenericFallback, errs.Message(err, ""))
}

func TestDo_NetworkFailureIsTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(base)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "/x", nil)
	var te *errs.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "Failed to load contests", errs.Message(errs.WithFallback(err, "Failed to load contests"), ""))
}

func TestPostMultipart_Parts(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Spring Cup", r.FormValue("title"))
		assert.Equal(t, "true", r.FormValue("is_public"))
		f, hdr, err := r.FormFile("profile_img")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "cup.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		b, _ := io.ReadAll(f)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, b)
		_, _ = io.WriteString(w, `{"success":true,"data":{"contest_id":7}}`)
	})

	form := new(Form).Add("title", "Spring Cup").Add("is_public", "true").
		AddFile("profile_img", "cup.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	env, err := c.PostMultipart(context.Background(), "/contests", form)
	require.NoError(t, err)
	require.JSONEq(t, `{"contest_id":7}`, string(env.Data))
}
