// Package feed fans state snapshots out to subscribers in publish order.
package feed

import "sync"

// Feed delivers snapshots of T to subscribers. Owners stamp each snapshot
// with a sequence number taken under the same lock as the snapshot itself;
// a subscriber only ever sees increasing sequence numbers, and a snapshot
// that arrives after a newer one was delivered is dropped.
//
// Delivery to one subscriber is serialized without blocking publishers: if
// a callback is running, a newer snapshot is parked and handed over when it
// returns, so only the latest parked snapshot is delivered.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[int]*subscriber[T]
	next int
}

type subscriber[T any] struct {
	fn func(T)

	mu        sync.Mutex
	queued    uint64
	delivered uint64
	pending   T
	running   bool
}

// Subscribe registers fn. The returned func unregisters it.
func (f *Feed[T]) Subscribe(fn func(T)) func() {
	f.mu.Lock()
	if f.subs == nil {
		f.subs = map[int]*subscriber[T]{}
	}
	id := f.next
	f.next++
	f.subs[id] = &subscriber[T]{fn: fn}
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Publish hands v, stamped seq, to every subscriber. Callbacks run on the
// calling goroutine unless another goroutine is already delivering to that
// subscriber.
func (f *Feed[T]) Publish(seq uint64, v T) {
	f.mu.Lock()
	subs := make([]*subscriber[T], 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()
	for _, s := range subs {
		s.deliver(seq, v)
	}
}

// Reset drops every subscriber.
func (f *Feed[T]) Reset() {
	f.mu.Lock()
	f.subs = nil
	f.mu.Unlock()
}

func (s *subscriber[T]) deliver(seq uint64, v T) {
	s.mu.Lock()
	if seq <= s.queued {
		s.mu.Unlock()
		return
	}
	s.queued = seq
	s.pending = v
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	for s.delivered < s.queued {
		cur := s.pending
		s.delivered = s.queued
		s.mu.Unlock()
		s.fn(cur)
		s.mu.Lock()
	}
	s.running = false
	s.mu.Unlock()
}
