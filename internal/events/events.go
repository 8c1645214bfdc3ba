package events

import (
	"context"
	"time"
)

// Kinds of ride lifecycle events. Each doubles as its routing key.
const (
	RideCreated     = "ride.created"
	RideJoined      = "ride.joined"
	RideLeft        = "ride.left"
	RideHostChanged = "ride.host_changed"
	RideCompleted   = "ride.completed"
	RideDeleted     = "ride.deleted"
)

// Exchange is the topic exchange lifecycle events are published to.
const Exchange = "ride_topic"

// RideEvent is the body of a lifecycle event.
type RideEvent struct {
	Kind       string    `json:"kind"`
	RideID     string    `json:"ride_id"`
	ActorID    string    `json:"actor_id"`
	NewHostID  string    `json:"new_host_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher hands lifecycle events to external collaborators. Publishing is
// best-effort; implementations log failures instead of returning them.
type Publisher interface {
	Publish(ctx context.Context, event RideEvent)
	Close() error
}

type nopPublisher struct{}

// NewNopPublisher returns a Publisher that discards everything.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, RideEvent) {}

func (nopPublisher) Close() error { return nil }
