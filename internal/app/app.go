// Package app assembles the client-side core from configuration.
package app

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/contest-shell/internal/config"
	"github.com/and161185/contest-shell/internal/contests"
	"github.com/and161185/contest-shell/internal/guard"
	"github.com/and161185/contest-shell/internal/notify"
	"github.com/and161185/contest-shell/internal/session"
	"github.com/and161185/contest-shell/internal/storage"
	"github.com/and161185/contest-shell/internal/transport"
)

// App owns the session store, the notification scheduler and the contests
// client. Build it once, Close it on teardown.
type App struct {
	Session  *session.Store
	Notes    *notify.Scheduler
	Contests *contests.Client
	Guard    *guard.Guard
}

// New wires the core over st. The session is not loaded; call Load.
func New(cfg *config.Config, st storage.Storage, log *zap.Logger) (*App, error) {
	a := &App{}
	tc, err := transport.New(cfg.APIURL,
		transport.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		transport.WithLogger(log.Named("transport")),
		transport.WithTokenSource(transport.TokenFunc(func() string { return a.Session.Token() })),
		transport.WithUnauthorizedHook(func() {
			a.Session.Invalidate()
			a.Notes.Warning(MsgSessionExpired)
		}),
	)
	if err != nil {
		return nil, err
	}
	a.Session = session.New(tc, st, session.WithLogger(log.Named("session")))
	a.Notes = notify.New(notify.WithLogger(log.Named("notify")), notify.WithDefaultTTL(cfg.ToastTTL))
	a.Contests = contests.New(tc, contests.WithLogger(log.Named("contests")))
	a.Guard = guard.New(a.Session)
	return a, nil
}

// MsgSessionExpired is shown when the collaborator rejects the stored token.
const MsgSessionExpired = "Your session has expired. Please log in again."

// Load performs the one-time session read.
func (a *App) Load(ctx context.Context) {
	a.Session.Load(ctx)
}

// Close tears down subscriptions and pending timers.
func (a *App) Close() {
	a.Notes.Close()
	a.Session.Close()
}
