// Package notify keeps the ordered queue of transient notifications (toasts),
// each with its own cancellable expiry timer.
package notify

import (
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/contest-shell/internal/feed"
	"github.com/and161185/contest-shell/internal/model"
)

// DefaultTTL is how long a notification lives unless told otherwise.
const DefaultTTL = 4 * time.Second

// Timer is the cancellable handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it via RealAfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc wraps time.AfterFunc.
func RealAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Scheduler owns the notification list. Safe for concurrent use: timer
// callbacks and manual dismissals serialize on one mutex, so each
// notification is removed exactly once.
type Scheduler struct {
	log        *zap.Logger
	after      AfterFunc
	now        func() time.Time
	defaultTTL time.Duration

	mu     sync.Mutex
	items  []model.Notification
	timers map[uuid.UUID]Timer
	seq    uint64
	closed bool

	feed feed.Feed[[]model.Notification]
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Scheduler) { s.log = l } }

// WithAfterFunc replaces the timer source (tests).
func WithAfterFunc(af AfterFunc) Option { return func(s *Scheduler) { s.after = af } }

// WithClock overrides time.Now for CreatedAt.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// WithDefaultTTL changes the TTL used by the kind shortcuts.
func WithDefaultTTL(d time.Duration) Option { return func(s *Scheduler) { s.defaultTTL = d } }

// New returns an empty Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:        zap.NewNop(),
		after:      RealAfterFunc,
		now:        time.Now,
		defaultTTL: DefaultTTL,
		timers:     map[uuid.UUID]Timer{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue appends a notification and returns its id. ttl <= 0 makes it
// sticky: it stays until dismissed. Unknown kinds are stored as info.
func (s *Scheduler) Enqueue(message string, kind model.Kind, ttl time.Duration) uuid.UUID {
	if !kind.Valid() {
		kind = model.KindInfo
	}
	if ttl < 0 {
		ttl = 0
	}
	id := uuid.Must(uuid.NewV4())
	n := model.Notification{
		ID:        id,
		Message:   message,
		Kind:      kind,
		CreatedAt: s.now(),
		TTL:       ttl,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Debug("enqueue after close ignored", zap.String("kind", string(kind)))
		return id
	}
	s.items = append(s.items, n)
	if ttl > 0 {
		// registered under the lock so a fast timer cannot fire before it is tracked
		s.timers[id] = s.after(ttl, func() { s.expire(id) })
	}
	s.mu.Unlock()

	s.log.Debug("notification queued",
		zap.String("id", id.String()),
		zap.String("kind", string(kind)),
		zap.Duration("ttl", ttl),
	)
	s.publish()
	return id
}

// Success queues a success notification. The optional ttl overrides the
// default; 0 makes it sticky.
func (s *Scheduler) Success(message string, ttl ...time.Duration) uuid.UUID {
	return s.Enqueue(message, model.KindSuccess, s.ttl(ttl))
}

// Error queues an error notification, see Success for ttl.
func (s *Scheduler) Error(message string, ttl ...time.Duration) uuid.UUID {
	return s.Enqueue(message, model.KindError, s.ttl(ttl))
}

// Info queues an info notification, see Success for ttl.
func (s *Scheduler) Info(message string, ttl ...time.Duration) uuid.UUID {
	return s.Enqueue(message, model.KindInfo, s.ttl(ttl))
}

// Warning queues a warning notification, see Success for ttl.
func (s *Scheduler) Warning(message string, ttl ...time.Duration) uuid.UUID {
	return s.Enqueue(message, model.KindWarning, s.ttl(ttl))
}

func (s *Scheduler) ttl(override []time.Duration) time.Duration {
	if len(override) > 0 {
		return override[0]
	}
	return s.defaultTTL
}

// Dismiss removes the notification with id and cancels its timer.
// Dismissing an unknown or already removed id is a no-op.
func (s *Scheduler) Dismiss(id uuid.UUID) {
	if s.remove(id, true) {
		s.publish()
	}
}

func (s *Scheduler) expire(id uuid.UUID) {
	if s.remove(id, false) {
		s.log.Debug("notification expired", zap.String("id", id.String()))
		s.publish()
	}
}

func (s *Scheduler) remove(id uuid.UUID, stopTimer bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		if stopTimer {
			t.Stop()
		}
		delete(s.timers, id)
	}
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the live notifications in insertion order.
func (s *Scheduler) List() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.items...)
}

// Len returns the number of live notifications.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subscribe registers fn to receive the list after every change. The
// returned func unregisters it. fn runs outside the scheduler lock and may
// call back into the scheduler. Snapshots reach fn in change order; one
// superseded while fn is busy is skipped.
func (s *Scheduler) Subscribe(fn func([]model.Notification)) func() {
	return s.feed.Subscribe(fn)
}

// Close stops every pending timer, empties the queue and drops subscribers.
// Further Enqueue calls are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.items = nil
	s.closed = true
	s.feed.Reset()
}

func (s *Scheduler) publish() {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	snap := append([]model.Notification(nil), s.items...)
	s.mu.Unlock()
	s.feed.Publish(seq, snap)
}
