package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/aditya/rideshare/internal/models"
)

const defaultBufferSize = 256

// TopicName is the broadcast scope of a ride's chat.
func TopicName(rideID string) string {
	return "chat_ride_" + rideID
}

// Publisher pushes a chat payload to everyone watching a ride.
type Publisher interface {
	Publish(rideID string, payload models.ChatPayload)
}

// Subscription is one connection's membership in a ride topic.
type Subscription struct {
	rideID string
	send   chan []byte
}

// C delivers encoded payloads in publish order. It is closed on Unsubscribe.
func (s *Subscription) C() <-chan []byte {
	return s.send
}

func (s *Subscription) RideID() string {
	return s.rideID
}

type topic struct {
	mu          sync.Mutex // serializes publishers so every subscriber sees one order
	subscribers map[*Subscription]struct{}
}

// Hub is the in-process pub/sub of ride chat topics. Delivery is
// best-effort: a subscriber whose buffer is full misses the message and can
// recover it from history on reconnect.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]*topic
	bufferSize int
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{
		topics:     make(map[string]*topic),
		bufferSize: bufferSize,
	}
}

func (h *Hub) Subscribe(rideID string) *Subscription {
	sub := &Subscription{
		rideID: rideID,
		send:   make(chan []byte, h.bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[rideID]
	if !ok {
		t = &topic{subscribers: make(map[*Subscription]struct{})}
		h.topics[rideID] = t
	}
	t.subscribers[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel. The topic is dropped with
// its last subscriber. Calling it twice is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[sub.rideID]
	if !ok {
		return
	}
	if _, ok := t.subscribers[sub]; !ok {
		return
	}
	delete(t.subscribers, sub)
	close(sub.send)
	if len(t.subscribers) == 0 {
		delete(h.topics, sub.rideID)
	}
}

// Publish delivers payload to the ride's current subscribers without
// blocking the caller.
func (h *Hub) Publish(rideID string, payload models.ChatPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("realtime: encode payload for %s: %v", TopicName(rideID), err)
		return
	}
	h.PublishRaw(rideID, data)
}

// PublishRaw delivers an already encoded payload.
func (h *Hub) PublishRaw(rideID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	t, ok := h.topics[rideID]
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for sub := range t.subscribers {
		select {
		case sub.send <- data:
		default:
			log.Printf("realtime: subscriber buffer full on %s, dropping message", TopicName(rideID))
		}
	}
}

// SubscriberCount returns how many connections watch a ride.
func (h *Hub) SubscriberCount(rideID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if t, ok := h.topics[rideID]; ok {
		return len(t.subscribers)
	}
	return 0
}

// TopicCount returns the number of live topics.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}
