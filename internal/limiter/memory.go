package limiter

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process limiter with a sliding failure window and lockout.
type Memory struct {
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
}

type entry struct {
	fails        int
	blockedUntil time.Time
	updatedAt    time.Time
}

// NewMemory constructs an in-memory limiter: maxFails failures within window
// block the (email, peer) pair for blockFor. maxFails <= 0 disables blocking.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
		entries:  map[string]*entry{},
	}
}

func key(email string, peerHash []byte) string {
	return strings.ToLower(strings.TrimSpace(email)) + "\x00" + string(peerHash)
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Memory) Allow(_ context.Context, email string, peerHash []byte) (bool, time.Duration, error) {
	now := l.now()
	k := key(email, peerHash)

	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[k]
	if !ok {
		return true, 0, nil
	}
	if e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	if l.stale(e, now) {
		delete(l.entries, k)
	}
	return true, 0, nil
}

// stale reports whether e has neither a live window nor a live block.
func (l *Memory) stale(e *entry, now time.Time) bool {
	return !e.blockedUntil.After(now) && now.Sub(e.updatedAt) > l.window
}

// sweep drops stale entries, at most once per window. Callers hold l.mu.
func (l *Memory) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for k, e := range l.entries {
		if l.stale(e, now) {
			delete(l.entries, k)
		}
	}
}

// Success resets counters for (email, peer).
func (l *Memory) Success(_ context.Context, email string, peerHash []byte) error {
	l.mu.Lock()
	delete(l.entries, key(email, peerHash))
	l.mu.Unlock()
	return nil
}

// Failure records a failed attempt; may set a block until a future time.
func (l *Memory) Failure(_ context.Context, email string, peerHash []byte) (bool, time.Duration, error) {
	now := l.now()
	k := key(email, peerHash)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)
	e, ok := l.entries[k]
	if !ok {
		e = &entry{}
		l.entries[k] = e
	}
	if now.Sub(e.updatedAt) > l.window {
		e.fails = 0
	}
	e.fails++
	e.updatedAt = now

	if l.maxFails > 0 && e.fails >= l.maxFails {
		e.blockedUntil = now.Add(l.blockFor)
		return true, l.blockFor, nil
	}
	return false, 0, nil
}
