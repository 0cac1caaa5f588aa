// Package stream provides fan-out of board updates to connected watchers and
// the schedule that produces them.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kis-board/internal/logging"
	"kis-board/internal/models"
)

// HubConfig holds configuration for the Stream Hub.
type HubConfig struct {
	// BufferSize is the size of the internal update channel buffer.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
	// SlowConsumerDropThreshold is the number of consecutive drops before logging.
	SlowConsumerDropThreshold int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:                16,
		SubscriberBufferSize:      4,
		SlowConsumerDropThreshold: 10,
	}
}

// Update is one refreshed board: the valuation and its rendered frame.
type Update struct {
	Seq       uint64
	At        time.Time
	Valuation *models.Valuation
	Frame     string
}

// Subscriber represents a channel subscriber with metadata.
type Subscriber struct {
	ID           string
	Channel      chan Update
	DroppedCount int
	CreatedAt    time.Time
}

// Hub distributes updates from a single producer to every subscriber.
// Sends never block; a subscriber that falls behind misses updates.
type Hub struct {
	config      HubConfig
	logger      zerolog.Logger
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	updates     chan Update
	done        chan struct{}
	started     bool
	consumers   []Consumer
	consumersMu sync.RWMutex

	// Metrics
	seq              uint64
	updatesReceived  uint64
	updatesDelivered uint64
	updatesDropped   uint64
	metricsMu        sync.RWMutex
}

// NewHub creates a new stream hub with default configuration.
func NewHub(logger zerolog.Logger) *Hub {
	return NewHubWithConfig(DefaultHubConfig(), logger)
}

// NewHubWithConfig creates a new stream hub with custom configuration.
func NewHubWithConfig(config HubConfig, logger zerolog.Logger) *Hub {
	return &Hub{
		config:      config,
		logger:      logging.WithComponent(logger, "hub"),
		subscribers: make(map[string]*Subscriber),
		updates:     make(chan Update, config.BufferSize),
		done:        make(chan struct{}),
		consumers:   make([]Consumer, 0),
	}
}

// Start begins the hub's distribution loop.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	go h.broadcastLoop(ctx)
}

func (h *Hub) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case u := <-h.updates:
			h.metricsMu.Lock()
			h.updatesReceived++
			h.metricsMu.Unlock()

			h.broadcast(u)
			h.notifyConsumers(u)
		}
	}
}

// Stop stops the hub and closes all subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}

	close(h.done)
	h.started = false

	for id, sub := range h.subscribers {
		close(sub.Channel)
		delete(h.subscribers, id)
	}
}

// Subscribe registers a watcher and returns its update channel.
// Subscribing an existing id replaces the previous channel.
func (h *Hub) Subscribe(id string) <-chan Update {
	ch := make(chan Update, h.config.SubscriberBufferSize)
	sub := &Subscriber{
		ID:        id,
		Channel:   ch,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	if old, ok := h.subscribers[id]; ok {
		close(old.Channel)
	}
	h.subscribers[id] = sub
	h.mu.Unlock()

	h.logger.Debug().Str("subscriber", id).Msg("Subscribed")
	return ch
}

// Unsubscribe removes a watcher and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[id]; ok {
		close(sub.Channel)
		delete(h.subscribers, id)
		h.logger.Debug().Str("subscriber", id).Msg("Unsubscribed")
	}
}

// Publish hands an update to the hub for distribution.
// This is non-blocking - if the internal buffer is full, the update is dropped.
func (h *Hub) Publish(u Update) {
	h.metricsMu.Lock()
	h.seq++
	u.Seq = h.seq
	h.metricsMu.Unlock()

	if u.At.IsZero() {
		u.At = time.Now()
	}

	select {
	case h.updates <- u:
	default:
		h.metricsMu.Lock()
		h.updatesDropped++
		h.metricsMu.Unlock()
	}
}

// broadcast sends an update to all subscribers. The read lock is held across
// the sends so Stop cannot close a channel mid-send.
func (h *Hub) broadcast(u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		select {
		case sub.Channel <- u:
			sub.DroppedCount = 0
			h.metricsMu.Lock()
			h.updatesDelivered++
			h.metricsMu.Unlock()
		default:
			sub.DroppedCount++
			h.metricsMu.Lock()
			h.updatesDropped++
			h.metricsMu.Unlock()
			if sub.DroppedCount == h.config.SlowConsumerDropThreshold {
				h.logger.Warn().Str("subscriber", sub.ID).Int("dropped", sub.DroppedCount).Msg("Slow subscriber")
			}
		}
	}
}

// SubscriberCount returns the number of active watchers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Metrics returns hub metrics.
func (h *Hub) Metrics() HubMetrics {
	subscribers := h.SubscriberCount()

	h.metricsMu.RLock()
	defer h.metricsMu.RUnlock()

	return HubMetrics{
		UpdatesReceived:  h.updatesReceived,
		UpdatesDelivered: h.updatesDelivered,
		UpdatesDropped:   h.updatesDropped,
		Subscribers:      subscribers,
	}
}

// HubMetrics contains hub counters.
type HubMetrics struct {
	UpdatesReceived  uint64 `json:"updates_received"`
	UpdatesDelivered uint64 `json:"updates_delivered"`
	UpdatesDropped   uint64 `json:"updates_dropped"`
	Subscribers      int    `json:"subscribers"`
}

// IsStarted returns whether the hub is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Consumer processes every update in-process, e.g. a terminal printer.
type Consumer interface {
	OnUpdate(u Update)
}

// RegisterConsumer adds a consumer to receive updates.
func (h *Hub) RegisterConsumer(consumer Consumer) {
	h.consumersMu.Lock()
	h.consumers = append(h.consumers, consumer)
	h.consumersMu.Unlock()
}

// UnregisterConsumer removes a consumer.
func (h *Hub) UnregisterConsumer(consumer Consumer) {
	h.consumersMu.Lock()
	defer h.consumersMu.Unlock()

	for i, c := range h.consumers {
		if c == consumer {
			h.consumers = append(h.consumers[:i], h.consumers[i+1:]...)
			break
		}
	}
}

// ConsumerCount returns the number of registered consumers.
func (h *Hub) ConsumerCount() int {
	h.consumersMu.RLock()
	defer h.consumersMu.RUnlock()
	return len(h.consumers)
}

// Watchers returns subscribers plus consumers: everyone an update reaches.
func (h *Hub) Watchers() int {
	return h.SubscriberCount() + h.ConsumerCount()
}

// notifyConsumers runs each consumer in its own goroutine.
func (h *Hub) notifyConsumers(u Update) {
	h.consumersMu.RLock()
	consumers := make([]Consumer, len(h.consumers))
	copy(consumers, h.consumers)
	h.consumersMu.RUnlock()

	for _, consumer := range consumers {
		go consumer.OnUpdate(u)
	}
}

// ConsumerFunc is a function adapter for the Consumer interface.
type ConsumerFunc struct {
	onUpdateFn func(Update)
}

// NewConsumerFunc creates a new ConsumerFunc.
func NewConsumerFunc(onUpdate func(Update)) *ConsumerFunc {
	return &ConsumerFunc{onUpdateFn: onUpdate}
}

// OnUpdate implements Consumer.
func (c *ConsumerFunc) OnUpdate(u Update) {
	if c.onUpdateFn != nil {
		c.onUpdateFn(u)
	}
}
