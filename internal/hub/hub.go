// Package hub implements the broadcast point every session subscribes to and
// the per-session funnel that serializes outbound writes.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the per-subscriber queue length used when none is set.
const DefaultCapacity = 65536

// ErrClosed is returned by Recv once the subscription is closed and drained.
var ErrClosed = errors.New("hub: subscription closed")

// LaggedError reports that the subscriber fell behind and Skipped of the
// oldest unread messages were dropped. Receiving continues normally after it.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("hub: subscriber lagged, %d messages skipped", e.Skipped)
}

// Hub fans every published message out to all current subscribers. Publish
// never waits on a subscriber; each subscriber has its own bounded queue.
type Hub struct {
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	capacity int
	closed   bool
}

// New creates a Hub whose subscribers each buffer up to capacity messages.
// A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
	}
}

// Subscribe returns a subscription that observes messages published from now
// on. Subscribing to a closed hub yields an already closed subscription.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		hub:      h,
		capacity: h.capacity,
		notify:   make(chan struct{}, 1),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.closed = true
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Publish enqueues msg for every current subscriber and returns how many
// received it. Publishes are serialized, so all subscribers see the same
// order.
func (h *Hub) Publish(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		sub.push(msg)
	}
	return len(h.subs)
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close detaches every subscription. Subscribers can still drain what they
// already queued before Recv reports ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*Subscription]struct{})
	h.closed = true
	h.mu.Unlock()

	for sub := range subs {
		sub.shutdown(false)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Subscription is one receiver's view of the hub.
type Subscription struct {
	hub      *Hub
	capacity int
	notify   chan struct{}

	mu      sync.Mutex
	queue   []string
	skipped uint64
	closed  bool
}

func (s *Subscription) push(msg string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.capacity {
		s.queue[0] = ""
		s.queue = s.queue[1:]
		s.skipped++
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv returns the next message. A *LaggedError is returned once after
// messages were dropped for this subscriber; ErrClosed once the subscription
// is closed and nothing is left to read; ctx.Err() if ctx ends first.
func (s *Subscription) Recv(ctx context.Context) (string, error) {
	for {
		s.mu.Lock()
		if s.skipped > 0 {
			skipped := s.skipped
			s.skipped = 0
			s.mu.Unlock()
			return "", &LaggedError{Skipped: skipped}
		}
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue[0] = ""
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return msg, nil
		}
		if s.closed {
			s.mu.Unlock()
			return "", ErrClosed
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Close unsubscribes and discards anything still queued. It is safe to call
// more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
	s.shutdown(true)
}

func (s *Subscription) shutdown(discard bool) {
	s.mu.Lock()
	s.closed = true
	if discard {
		s.queue = nil
		s.skipped = 0
	}
	s.mu.Unlock()

	s.signal()
}
