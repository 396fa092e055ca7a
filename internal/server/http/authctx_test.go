package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/contest-shell/internal/model"
)

func TestUserCtx_RoundTrip(t *testing.T) {
	t.Parallel()

	_, ok := UserFromCtx(context.Background())
	require.False(t, ok)

	u := &model.User{Email: "a@b.com"}
	got, ok := UserFromCtx(WithUser(context.Background(), u))
	require.True(t, ok)
	require.Same(t, u, got)

	_, ok = UserFromCtx(WithUser(context.Background(), nil))
	require.False(t, ok)
}

func TestUserContext_Middleware(t *testing.T) {
	t.Parallel()

	var seen *model.User
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { seen, _ = UserFromCtx(r.Context()) })

	u := &model.User{Email: "a@b.com"}
	userContext(func() *model.User { return u })(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Same(t, u, seen)

	seen = nil
	userContext(func() *model.User { return nil })(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Nil(t, seen)
}
