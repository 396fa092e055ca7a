// Package httpserver is the local HTTP shell over the session store, the
// contests client and the notification scheduler.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/contest-shell/internal/contests"
	"github.com/and161185/contest-shell/internal/convert"
	"github.com/and161185/contest-shell/internal/errs"
	"github.com/and161185/contest-shell/internal/guard"
	"github.com/and161185/contest-shell/internal/limiter"
	"github.com/and161185/contest-shell/internal/model"
	"github.com/and161185/contest-shell/internal/session"
)

// maxUpload bounds the multipart body of a contest create.
const maxUpload = 10 << 20

// User-facing messages.
const (
	MsgLoggedOut       = "You have been logged out"
	MsgTooManyAttempts = "Too many failed login attempts. Please try again later."
)

// Sessions is the part of the session store the shell drives.
type Sessions interface {
	Login(ctx context.Context, email, password string) (model.Session, error)
	Register(ctx context.Context, p model.Profile) error
	Logout(ctx context.Context) error
	CurrentUser() *model.User
}

// Contests is the part of the contests client the shell drives.
type Contests interface {
	ListPage(ctx context.Context, page, size int) (model.PageResult, error)
	Get(ctx context.Context, id int64) (model.Contest, error)
	Create(ctx context.Context, d model.ContestDraft) (model.Contest, error)
}

// Notifier is the part of the notification scheduler the shell drives.
type Notifier interface {
	Success(message string, ttl ...time.Duration) uuid.UUID
	Error(message string, ttl ...time.Duration) uuid.UUID
	Info(message string, ttl ...time.Duration) uuid.UUID
	Dismiss(id uuid.UUID)
	List() []model.Notification
}

// Server wires the client-side core into HTTP handlers.
type Server struct {
	sessions Sessions
	contests Contests
	notes    Notifier
	guard    *guard.Guard
	pager    *contests.Pager
	limit    limiter.Limiter
	pageSize int
	log      *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// WithLimiter throttles failed logins per (email, peer).
func WithLimiter(l limiter.Limiter) Option { return func(s *Server) { s.limit = l } }

// WithPageSize sets the list page size.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// New constructs a Server with injected collaborators.
func New(sessions Sessions, cs Contests, notes Notifier, g *guard.Guard, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		contests: cs,
		notes:    notes,
		guard:    g,
		pager:    contests.NewPager(),
		pageSize: 6,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Logging(s.log))
	r.Use(Recover(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.guard.Middleware(guard.PublicOnly))
		r.Get("/login", s.page("login"))
		r.Post("/login", s.login)
		r.Get("/register", s.page("register"))
		r.Post("/register", s.register)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.guard.Middleware(guard.Protected))
		r.Use(userContext(s.sessions.CurrentUser))
		r.Get("/", s.home)
		r.Get("/contests", s.listContests)
		r.Get("/contests/{id}", s.getContest)
		r.Post("/contests", s.createContest)
		r.Post("/logout", s.logout)
	})

	r.Get("/notifications", s.listNotifications)
	r.Delete("/notifications/{id}", s.dismissNotification)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, guard.HomePath, http.StatusSeeOther)
	})
	return r
}

// --- Auth ---

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"page": name})
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	in, err := readFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "malformed request")
		return
	}
	ctx := r.Context()
	email, peer := in["email"], limiter.HashPeer(peerHost(r))

	if s.limit != nil {
		ok, retry, err := s.limit.Allow(ctx, email, peer)
		if err != nil {
			s.log.Warn("limiter allow", zap.Error(err))
		} else if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "remote", MsgTooManyAttempts)
			return
		}
	}

	if _, err := s.sessions.Login(ctx, email, in["password"]); err != nil {
		if s.limit != nil && errs.Kind(err) == "remote" {
			if blocked, d, lerr := s.limit.Failure(ctx, email, peer); lerr != nil {
				s.log.Warn("limiter failure", zap.Error(lerr))
			} else if blocked {
				s.log.Info("login blocked", zap.Duration("for", d.Round(time.Second)))
			}
		}
		// shown inline on the login page, not as a notification
		s.fail(w, err, "")
		return
	}
	if s.limit != nil {
		if err := s.limit.Success(ctx, email, peer); err != nil {
			s.log.Warn("limiter success", zap.Error(err))
		}
	}
	http.Redirect(w, r, guard.HomePath, http.StatusSeeOther)
}

func peerHost(r *http.Request) string {
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return h
	}
	return r.RemoteAddr
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	in, err := readFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "malformed request")
		return
	}
	p := model.Profile{
		FirstName: in["first_name"],
		LastName:  in["last_name"],
		Email:     in["email"],
		Password:  in["password"],
	}
	if err := s.sessions.Register(r.Context(), p); err != nil {
		s.fail(w, err, "")
		return
	}
	s.notes.Success(session.MsgRegistered)
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context()); err != nil {
		s.log.Warn("logout storage", zap.Error(err))
	}
	s.notes.Info(MsgLoggedOut)
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	out := map[string]any{"user": u}
	if page, res, ok := s.pager.Current(); ok {
		out["page"] = page
		out["contests"] = res
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Contests ---

func (s *Server) listContests(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "invalid page")
			return
		}
		page = n
	}

	req := s.pager.Request(page)
	res, err := s.contests.ListPage(r.Context(), req, s.pageSize)
	if err != nil {
		s.fail(w, err, contests.MsgLoadFailed)
		return
	}
	if !s.pager.Resolve(req, res) {
		s.log.Debug("stale page discarded", zap.Int("requested", req))
		writeError(w, http.StatusConflict, "stale", "a newer page was requested")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getContest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", contests.MsgInvalidContestID)
		return
	}
	ct, err := s.contests.Get(r.Context(), id)
	if err != nil {
		s.fail(w, err, contests.MsgLoadOneFailed)
		return
	}
	writeJSON(w, http.StatusOK, ct)
}

func (s *Server) createContest(w http.ResponseWriter, r *http.Request) {
	d, err := readDraft(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "malformed request")
		return
	}
	ct, err := s.contests.Create(r.Context(), d)
	if err != nil {
		s.notes.Error(errs.Message(err, contests.MsgCreateFailed))
		s.fail(w, err, contests.MsgCreateFailed)
		return
	}
	s.notes.Success(contests.MsgCreated)
	writeJSON(w, http.StatusCreated, ct)
}

// readDraft parses the multipart create form. Unparsable dates are left
// zero so the contests client reports them as missing.
func readDraft(r *http.Request) (model.ContestDraft, error) {
	if err := r.ParseMultipartForm(maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return model.ContestDraft{}, err
	}
	d := model.ContestDraft{
		Title:    r.FormValue("title"),
		IsPublic: r.FormValue("is_public") == "true",
	}
	if t, err := convert.ParseTime(r.FormValue("starts_at")); err == nil {
		d.StartsAt = t
	}
	if t, err := convert.ParseTime(r.FormValue("ends_at")); err == nil {
		d.EndsAt = t
	}

	f, hdr, err := r.FormFile("profile_img")
	switch {
	case errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart):
		return d, nil
	case err != nil:
		return model.ContestDraft{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return model.ContestDraft{}, err
	}
	if len(data) > 0 {
		d.Image = &model.Image{Name: hdr.Filename, ContentType: hdr.Header.Get("Content-Type"), Data: data}
	}
	return d, nil
}

// --- Notifications ---

func (s *Server) listNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.notes.List())
}

func (s *Server) dismissNotification(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid notification id")
		return
	}
	s.notes.Dismiss(id)
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

// fail writes err as one human-readable line with a status matching its kind.
func (s *Server) fail(w http.ResponseWriter, err error, fallback string) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("kind", errs.Kind(err)), zap.Error(err))
	}
	writeError(w, code, errs.Kind(err), errs.Message(err, fallback))
}

func statusOf(err error) int {
	var re *errs.RemoteError
	switch {
	case errs.Kind(err) == "validation":
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &re):
		if re.Status >= 400 && re.Status < 500 {
			return re.Status
		}
		return http.StatusBadGateway
	case errs.Kind(err) == "transport":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// readFields accepts a flat JSON object or a url-encoded/multipart form.
func readFields(r *http.Request) (map[string]string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		out := map[string]string{}
		if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := r.ParseMultipartForm(maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	out := make(map[string]string, len(r.Form))
	for k := range r.Form {
		out[k] = r.Form.Get(k)
	}
	return out, nil
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, errorBody{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
