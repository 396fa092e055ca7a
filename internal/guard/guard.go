// Package guard decides, per navigation, whether a route renders, redirects
// or shows a placeholder, based solely on the session store.
package guard

import (
	"context"
	"net/http"
)

// State of the guard.
type State int

const (
	Loading State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "loading"
}

// RouteKind marks how a route reacts to the session.
type RouteKind int

const (
	// Protected routes render only for an authenticated session.
	Protected RouteKind = iota
	// PublicOnly routes (login, register) are for anonymous users only.
	PublicOnly
)

// Action is what the caller should do with a route.
type Action int

const (
	Render Action = iota
	Redirect
	Placeholder
)

// Default entry points.
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Decision is the outcome of a check. Replace means the redirect must not
// leave a history entry behind.
type Decision struct {
	Action   Action
	Location string
	Replace  bool
}

// SessionSource is the part of the session store the guard reads.
type SessionSource interface {
	Ready() <-chan struct{}
	IsAuthenticated() bool
}

// Guard maps session state to route decisions.
type Guard struct {
	src       SessionSource
	loginPath string
	homePath  string
}

// Option configures a Guard.
type Option func(*Guard)

// WithPaths overrides the login and home entry points.
func WithPaths(login, home string) Option {
	return func(g *Guard) {
		g.loginPath = login
		g.homePath = home
	}
}

// New constructs a Guard over src.
func New(src SessionSource, opts ...Option) *Guard {
	g := &Guard{src: src, loginPath: LoginPath, homePath: HomePath}
	for _, o := range opts {
		o(g)
	}
	return g
}

// State reports Loading until the initial session read completes, and the
// authentication state afterwards.
func (g *Guard) State() State {
	select {
	case <-g.src.Ready():
	default:
		return Loading
	}
	if g.src.IsAuthenticated() {
		return Authenticated
	}
	return Unauthenticated
}

// Check decides what a route of the given kind does right now.
func (g *Guard) Check(kind RouteKind) Decision {
	return g.decide(kind, g.State())
}

func (g *Guard) decide(kind RouteKind, st State) Decision {
	switch {
	case st == Loading:
		return Decision{Action: Placeholder}
	case kind == Protected && st == Unauthenticated:
		return Decision{Action: Redirect, Location: g.loginPath, Replace: true}
	case kind == PublicOnly && st == Authenticated:
		return Decision{Action: Redirect, Location: g.homePath, Replace: true}
	}
	return Decision{Action: Render}
}

// Wait blocks until the initial session read completes or ctx is done, then
// returns the resolved state.
func (g *Guard) Wait(ctx context.Context) (State, error) {
	select {
	case <-g.src.Ready():
		return g.State(), nil
	case <-ctx.Done():
		return Loading, ctx.Err()
	}
}

// Middleware applies Check to every request. Redirects use 303 so a POST is
// followed by a GET; the placeholder is a 503 with Retry-After.
func (g *Guard) Middleware(kind RouteKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Check(kind)
			switch d.Action {
			case Redirect:
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			case Placeholder:
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("loading\n"))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
