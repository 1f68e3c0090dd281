package hub

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/showmarket/pkg/models"
)

const DefaultQueueSize = 32

// Source is the read side of the hub used by subscriber sessions.
type Source interface {
	Join() (models.PriceTick, bool, *Subscription)
}

// Hub holds the most recent tick and fans every published tick out to all subscribers.
// There is one writer path (Publish) and any number of readers.
type Hub struct {
	// publishMu serializes Publish and Join so every subscriber sees ticks in publish order
	// and a joining subscriber gets neither a gap nor a duplicate after its snapshot.
	publishMu sync.Mutex

	mu       sync.RWMutex
	latest   models.PriceTick
	hasValue bool
	bySymbol map[string]models.PriceTick

	subsMu      sync.RWMutex
	subscribers map[*Subscription]struct{}

	queueSize int
	logger    *zap.Logger
}

func NewHub(queueSize int, logger *zap.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		bySymbol:    make(map[string]models.PriceTick),
		subscribers: make(map[*Subscription]struct{}),
		queueSize:   queueSize,
		logger:      logger,
	}
}

// Publish stores tick as the latest value and offers it to every current subscriber.
// It never waits on a subscriber; full queues drop their oldest entry.
func (h *Hub) Publish(tick models.PriceTick) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	h.mu.Lock()
	h.latest = tick
	h.hasValue = true
	h.bySymbol[tick.Symbol] = tick
	h.mu.Unlock()

	h.subsMu.RLock()
	defer h.subsMu.RUnlock()
	for sub := range h.subscribers {
		sub.offer(tick)
	}
}

// Snapshot returns the most recently published tick, or false before the first Publish.
func (h *Hub) Snapshot() (models.PriceTick, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.hasValue
}

// Latest returns the most recently published tick for one symbol.
func (h *Hub) Latest(symbol string) (models.PriceTick, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tick, ok := h.bySymbol[symbol]
	return tick, ok
}

// Subscribe registers a subscriber that observes every tick published after this call.
func (h *Hub) Subscribe() *Subscription {
	sub := newSubscription(h, h.queueSize)

	h.subsMu.Lock()
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.subsMu.Unlock()

	h.logger.Debug("Subscriber registered", zap.Int("subscribers", count))
	return sub
}

// Join takes the snapshot and registers a subscription as one step with respect to Publish.
func (h *Hub) Join() (models.PriceTick, bool, *Subscription) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	tick, ok := h.Snapshot()
	return tick, ok, h.Subscribe()
}

// Subscribers returns the number of registered subscriptions.
func (h *Hub) Subscribers() int {
	h.subsMu.RLock()
	defer h.subsMu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) unregister(sub *Subscription) {
	h.subsMu.Lock()
	delete(h.subscribers, sub)
	count := len(h.subscribers)
	h.subsMu.Unlock()

	h.logger.Debug("Subscriber removed", zap.Int("subscribers", count))
}
