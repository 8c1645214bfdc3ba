package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/aditya/rideshare/internal/models"
	"github.com/redis/go-redis/v9"
)

const topicPattern = "chat_ride_*"

type outbound struct {
	rideID string
	data   []byte
}

// RedisRelay fans chat payloads out through Redis pub/sub so that every
// server instance delivers them to its own connections. A single writer
// goroutine keeps publish order; the pattern subscription feeds the local hub.
type RedisRelay struct {
	redis *redis.Client
	hub   *Hub
	out   chan outbound
}

func NewRedisRelay(redisClient *redis.Client, hub *Hub, bufferSize int) *RedisRelay {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &RedisRelay{
		redis: redisClient,
		hub:   hub,
		out:   make(chan outbound, bufferSize),
	}
}

// Publish enqueues payload for Redis without blocking the caller. Live
// delivery is best effort: when the queue is full the payload is dropped
// rather than sent ahead of the ones still waiting. It stays in history.
func (r *RedisRelay) Publish(rideID string, payload models.ChatPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("relay: encode payload for %s: %v", TopicName(rideID), err)
		return
	}

	select {
	case r.out <- outbound{rideID: rideID, data: data}:
	default:
		log.Printf("relay: outbound queue full, dropping live message for %s", TopicName(rideID))
	}
}

// Run pumps outbound messages to Redis and inbound ones to the hub until
// ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) {
	pubsub := r.redis.PSubscribe(ctx, topicPattern)
	defer pubsub.Close()

	go r.listen(ctx, pubsub.Channel())

	r.forward(ctx, func(ctx context.Context, channel string, data []byte) error {
		return r.redis.Publish(ctx, channel, data).Err()
	})
}

// forward hands queued messages to publish one at a time, in queue order.
// A failed publish is dropped; delivering it locally would put it ahead of
// messages other instances already relayed.
func (r *RedisRelay) forward(ctx context.Context, publish func(ctx context.Context, channel string, data []byte) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.out:
			if err := publish(ctx, TopicName(msg.rideID), msg.data); err != nil {
				log.Printf("relay: publish %s failed, dropping live message: %v", TopicName(msg.rideID), err)
			}
		}
	}
}

func (r *RedisRelay) listen(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			rideID := strings.TrimPrefix(msg.Channel, "chat_ride_")
			if rideID == "" || rideID == msg.Channel {
				continue
			}
			if !json.Valid([]byte(msg.Payload)) {
				log.Printf("relay: discarding malformed payload on %s", msg.Channel)
				continue
			}
			r.hub.PublishRaw(rideID, []byte(msg.Payload))
		}
	}
}
