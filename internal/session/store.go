// Package session owns the client's authentication token and user identity.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/contest-shell/internal/convert"
	"github.com/and161185/contest-shell/internal/errs"
	"github.com/and161185/contest-shell/internal/feed"
	"github.com/and161185/contest-shell/internal/model"
	"github.com/and161185/contest-shell/internal/storage"
	"github.com/and161185/contest-shell/internal/transport"
)

// Storage keys. They are read independently at boot and cleared together on logout.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// MinPasswordLen is the shortest password accepted by Register.
const MinPasswordLen = 6

// User-facing messages.
const (
	MsgFillAllFields    = "Please fill in all fields"
	MsgPasswordTooShort = "Password must be at least 6 characters long"
	MsgLoginFailed      = "Login failed. Please try again."
	MsgRegisterFailed   = "Registration failed. Please try again."
	MsgRegistered       = "Registration successful! Please log in with your credentials."
)

// Remote is the part of the HTTP collaborator the store talks to.
type Remote interface {
	PostJSON(ctx context.Context, path string, in any) (*transport.Envelope, error)
}

// Store holds the current session. Create it with New, call Load once at
// startup, Close on teardown. Safe for concurrent use.
type Store struct {
	remote  Remote
	storage storage.Storage
	log     *zap.Logger
	now     func() time.Time

	mu   sync.RWMutex
	sess model.Session
	seq  uint64
	feed feed.Feed[model.Session]

	loadOnce sync.Once
	ready    chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// WithClock overrides time.Now (login timestamps).
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New constructs a Store. The store starts unloaded; see Load.
func New(remote Remote, st storage.Storage, opts ...Option) *Store {
	s := &Store{
		remote:  remote,
		storage: st,
		log:     zap.NewNop(),
		now:     time.Now,
		ready:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load reads the persisted token and user record. It runs at most once; later
// calls return the current session. Unreadable or inconsistent state is
// treated as logged out.
func (s *Store) Load(ctx context.Context) model.Session {
	s.loadOnce.Do(func() {
		sess := s.read(ctx)
		s.mu.Lock()
		s.sess = sess
		s.mu.Unlock()
		close(s.ready)
		s.log.Debug("session loaded", zap.Bool("authenticated", sess.Authenticated()))
		s.publish()
	})
	return s.Snapshot()
}

func (s *Store) read(ctx context.Context) model.Session {
	tok, err := s.storage.Get(ctx, KeyToken)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		s.log.Warn("read persisted token", zap.Error(err))
		return model.Session{}
	}
	rawUser, err := s.storage.Get(ctx, KeyUser)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		s.log.Warn("read persisted user", zap.Error(err))
		return model.Session{}
	}

	if tok == "" {
		if rawUser != "" {
			s.log.Info("dropping user record without token")
			_ = s.clear(ctx)
		}
		return model.Session{}
	}

	u, err := decodeUser(rawUser)
	if err != nil {
		s.log.Warn("discarding persisted session", zap.Error(err))
		_ = s.clear(ctx)
		return model.Session{}
	}

	// Expired tokens are kept until the server rejects one.
	if exp, ok := TokenExpiry(tok); ok && s.now().After(exp) {
		s.log.Info("persisted token looks expired; keeping it until a request fails",
			zap.Time("exp", exp))
	}
	return model.Session{Token: tok, User: u}
}

func decodeUser(raw string) (*model.User, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: user record missing", errs.ErrMalformedState)
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedState, err)
	}
	if u.Email == "" {
		return nil, fmt.Errorf("%w: user record has no email", errs.ErrMalformedState)
	}
	return &u, nil
}

// Ready is closed once Load has completed.
func (s *Store) Ready() <-chan struct{} { return s.ready }

// Loaded reports whether Load has completed.
func (s *Store) Loaded() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Login exchanges credentials for a token, then persists the token and a
// minimal user record. On any failure the session is left untouched.
func (s *Store) Login(ctx context.Context, email, password string) (model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.Session{}, errs.Validation("credentials", MsgFillAllFields)
	}

	env, err := s.remote.PostJSON(ctx, "/users/login", convert.LoginRequest{Email: email, Password: password})
	if err != nil {
		s.log.Info("login rejected", zap.String("kind", errs.Kind(err)), zap.Error(err))
		return model.Session{}, errs.WithFallback(err, MsgLoginFailed)
	}
	tok, err := convert.FromWireToken(env.Data)
	if err != nil {
		return model.Session{}, errs.Transport(MsgLoginFailed, err)
	}
	if tok == "" {
		return model.Session{}, &errs.RemoteError{Status: 200, Message: MsgLoginFailed}
	}

	u := &model.User{Email: email, LoginTime: s.now().UTC()}
	if err := s.persist(ctx, tok, u); err != nil {
		return model.Session{}, fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.sess = model.Session{Token: tok, User: u}
	s.mu.Unlock()
	s.log.Info("session established")
	s.publish()
	return s.Snapshot(), nil
}

func (s *Store) persist(ctx context.Context, tok string, u *model.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, KeyToken, tok); err != nil {
		return err
	}
	if err := s.storage.Set(ctx, KeyUser, string(b)); err != nil {
		// keep token and user in lockstep
		_ = s.storage.Delete(context.WithoutCancel(ctx), KeyToken)
		return err
	}
	return nil
}

// Register sends the full profile. It never establishes a session: the
// caller is expected to send the user to the login entry point.
func (s *Store) Register(ctx context.Context, p model.Profile) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.TrimSpace(p.Email)
	if p.FirstName == "" || p.LastName == "" || p.Email == "" || p.Password == "" {
		return errs.Validation("profile", MsgFillAllFields)
	}
	if len(p.Password) < MinPasswordLen {
		return errs.Validation("password", MsgPasswordTooShort)
	}
	if _, err := s.remote.PostJSON(ctx, "/users/register", convert.ToWireRegister(p)); err != nil {
		s.log.Info("register rejected", zap.String("kind", errs.Kind(err)), zap.Error(err))
		return errs.WithFallback(err, MsgRegisterFailed)
	}
	return nil
}

// Logout clears the persisted token and user record and the in-memory
// session. No network call is made. The in-memory session is cleared even
// when storage fails; the storage error is returned.
func (s *Store) Logout(ctx context.Context) error {
	err := s.clear(ctx)
	s.mu.Lock()
	was := s.sess.Authenticated()
	s.sess = model.Session{}
	s.mu.Unlock()
	if was {
		s.log.Info("session cleared")
		s.publish()
	}
	return err
}

// Invalidate drops the session after the collaborator rejected its token.
func (s *Store) Invalidate() {
	if err := s.Logout(context.Background()); err != nil {
		s.log.Warn("invalidate session", zap.Error(err))
	}
}

func (s *Store) clear(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	return errors.Join(
		s.storage.Delete(ctx, KeyToken),
		s.storage.Delete(ctx, KeyUser),
	)
}

// IsAuthenticated reports whether a token is held. Token expiry is not
// checked; a stale token reads as authenticated until a request fails.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.Token != ""
}

// CurrentUser returns a copy of the user record, or nil.
func (s *Store) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess.User == nil {
		return nil
	}
	u := *s.sess.User
	return &u
}

// Token returns the bearer token ("" when logged out).
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.Token
}

// Snapshot returns a copy of the session.
func (s *Store) Snapshot() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() model.Session {
	out := model.Session{Token: s.sess.Token}
	if s.sess.User != nil {
		u := *s.sess.User
		out.User = &u
	}
	return out
}

// Subscribe registers fn to receive the session after every change, in
// change order. A session superseded while fn is still busy is skipped.
// The returned func unregisters it.
func (s *Store) Subscribe(fn func(model.Session)) func() {
	return s.feed.Subscribe(fn)
}

// Close drops all subscribers.
func (s *Store) Close() {
	s.feed.Reset()
}

func (s *Store) publish() {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	snap := s.copyLocked()
	s.mu.Unlock()
	s.feed.Publish(seq, snap)
}
