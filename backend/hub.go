package backend

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/viant/mcp-bridge/internal/collection"
)

// Subscriber represents one active stream listener with its own bounded
// delivery queue. Queues are owned by the hub and never closed, so a
// publish racing an unsubscribe cannot panic.
type Subscriber struct {
	id      string
	queue   chan []byte
	dropped atomic.Uint64
}

// ID returns the subscriber identity assigned on subscribe.
func (s *Subscriber) ID() string {
	return s.id
}

// Queue exposes the delivery queue for consumption.
func (s *Subscriber) Queue() <-chan []byte {
	return s.queue
}

// Dropped reports how many messages were discarded because the queue was full.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// hub fans every inbound backend line out to all current subscribers.
type hub struct {
	subscribers *collection.SyncMap[string, *Subscriber]
	depth       int
	logger      zerolog.Logger
}

func newHub(depth int, logger zerolog.Logger) *hub {
	return &hub{
		subscribers: collection.NewSyncMap[string, *Subscriber](),
		depth:       depth,
		logger:      logger.With().Str("component", "hub").Logger(),
	}
}

func (h *hub) subscribe() *Subscriber {
	subscriber := &Subscriber{
		id:    uuid.New().String(),
		queue: make(chan []byte, h.depth),
	}
	h.subscribers.Put(subscriber.id, subscriber)
	h.logger.Debug().Str("subscriber", subscriber.id).Msg("subscribed")
	return subscriber
}

// unsubscribe removes the subscriber; safe to call concurrently with
// publish and idempotent.
func (h *hub) unsubscribe(subscriber *Subscriber) {
	if subscriber == nil {
		return
	}
	if _, ok := h.subscribers.Remove(subscriber.id); ok {
		h.logger.Debug().Str("subscriber", subscriber.id).Uint64("dropped", subscriber.Dropped()).Msg("unsubscribed")
	}
}

// publish delivers line to every current subscriber without ever blocking:
// a full queue drops the message for that subscriber only.
func (h *hub) publish(line []byte) {
	h.subscribers.Range(func(_ string, subscriber *Subscriber) bool {
		select {
		case subscriber.queue <- line:
		default:
			subscriber.dropped.Add(1)
			h.logger.Warn().Str("subscriber", subscriber.id).Msg("subscriber queue full, message dropped")
		}
		return true
	})
}

func (h *hub) count() int {
	return h.subscribers.Size()
}
