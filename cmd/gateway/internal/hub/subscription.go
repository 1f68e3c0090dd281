package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shubham-shewale/showmarket/pkg/models"
)

var ErrSubscriptionClosed = errors.New("subscription closed")

// LagError reports that the subscriber fell behind and Missed ticks were dropped from the
// front of its queue. The next Recv continues with the oldest tick still queued.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d ticks dropped", e.Missed)
}

// IsLagged reports whether err is a *LagError.
func IsLagged(err error) bool {
	var lag *LagError
	return errors.As(err, &lag)
}

// Subscription is one subscriber's bounded ring buffer. When full, offer drops the oldest
// unread tick so the newest is always kept.
type Subscription struct {
	hub *Hub

	mu     sync.Mutex
	buf    []models.PriceTick
	head   int
	size   int
	missed uint64
	closed bool

	notify chan struct{}
}

func newSubscription(h *Hub, capacity int) *Subscription {
	if capacity <= 0 {
		capacity = 1
	}
	return &Subscription{
		hub:    h,
		buf:    make([]models.PriceTick, capacity),
		notify: make(chan struct{}, 1),
	}
}

// offer never blocks.
func (s *Subscription) offer(tick models.PriceTick) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.size == len(s.buf) {
		s.head = (s.head + 1) % len(s.buf)
		s.size--
		s.missed++
	}
	s.buf[(s.head+s.size)%len(s.buf)] = tick
	s.size++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv blocks until a tick is queued, the subscription is closed, or ctx is done.
// A *LagError is returned once per overflow episode, before the surviving ticks.
func (s *Subscription) Recv(ctx context.Context) (models.PriceTick, error) {
	for {
		s.mu.Lock()
		if s.missed > 0 {
			missed := s.missed
			s.missed = 0
			s.mu.Unlock()
			return models.PriceTick{}, &LagError{Missed: missed}
		}
		if s.size > 0 {
			tick := s.buf[s.head]
			s.buf[s.head] = models.PriceTick{}
			s.head = (s.head + 1) % len(s.buf)
			s.size--
			s.mu.Unlock()
			return tick, nil
		}
		if s.closed {
			s.mu.Unlock()
			return models.PriceTick{}, ErrSubscriptionClosed
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.PriceTick{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// Len returns the number of queued ticks.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close unregisters the subscription from its hub and discards pending ticks. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.size = 0
	s.head = 0
	s.missed = 0
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.unregister(s)
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}
}
