package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aditya/rideshare/internal/models"
	"github.com/aditya/rideshare/internal/realtime"
	"github.com/aditya/rideshare/internal/repository"
)

// SystemEventKind identifies a ride lifecycle transition.
type SystemEventKind int

const (
	SystemEventCreated SystemEventKind = iota
	SystemEventJoined
	SystemEventLeft
	SystemEventHostChanged
	SystemEventCompleted
)

// SystemEvent is everything needed to describe a transition in chat.
type SystemEvent struct {
	Kind        SystemEventKind
	Actor       *models.User
	NewHost     *models.User // host changes only
	Pickup      string       // creation only
	Destination string       // creation only
}

// SystemMessageText renders the chat line for an event.
func SystemMessageText(e SystemEvent) string {
	actor := e.Actor.FullName()
	switch e.Kind {
	case SystemEventCreated:
		return fmt.Sprintf("%s has created this ride from %s to %s.", actor, e.Pickup, e.Destination)
	case SystemEventJoined:
		return fmt.Sprintf("%s has joined this ride", actor)
	case SystemEventLeft:
		return fmt.Sprintf("%s has left the ride.", actor)
	case SystemEventHostChanged:
		return fmt.Sprintf("%s has left the ride. %s is now the host.", actor, e.NewHost.FullName())
	case SystemEventCompleted:
		return fmt.Sprintf("%s has marked this ride as completed.", actor)
	default:
		return actor
	}
}

// SystemMessageEmitter is the only writer of lifecycle chat messages.
type SystemMessageEmitter struct {
	chatRepo  repository.ChatRepository
	publisher realtime.Publisher
	now       func() time.Time
}

func NewSystemMessageEmitter(chatRepo repository.ChatRepository, publisher realtime.Publisher) *SystemMessageEmitter {
	return &SystemMessageEmitter{
		chatRepo:  chatRepo,
		publisher: publisher,
		now:       time.Now,
	}
}

// Payload builds the system payload for e without storing it.
func (e *SystemMessageEmitter) Payload(ev SystemEvent) models.ChatPayload {
	return models.NewSystemPayload(SystemMessageText(ev), e.now())
}

// Record stores the event as a chat message authored by the actor. It runs
// in whatever transaction ctx carries.
func (e *SystemMessageEmitter) Record(ctx context.Context, rideID string, ev SystemEvent) (models.ChatPayload, error) {
	now := e.now()
	payload := models.NewSystemPayload(SystemMessageText(ev), now)
	msg := &models.ChatMessage{
		RideID:    rideID,
		UserID:    ev.Actor.ID,
		Payload:   payload,
		CreatedAt: now,
	}
	if err := e.chatRepo.Create(ctx, msg); err != nil {
		return models.ChatPayload{}, err
	}
	return payload, nil
}

// Broadcast pushes payloads to the ride's live connections. Call it only
// after the transaction that recorded them has committed.
func (e *SystemMessageEmitter) Broadcast(rideID string, payloads ...models.ChatPayload) {
	for _, p := range payloads {
		e.publisher.Publish(rideID, p)
	}
}
