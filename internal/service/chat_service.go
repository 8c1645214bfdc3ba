package service

import (
	"context"
	"time"

	apperrors "github.com/aditya/rideshare/internal/errors"
	"github.com/aditya/rideshare/internal/models"
	"github.com/aditya/rideshare/internal/realtime"
	"github.com/aditya/rideshare/internal/repository"
)

// ChatService backs both the websocket gatekeeper and the HTTP history
// endpoint.
type ChatService interface {
	IsParticipant(ctx context.Context, rideID, userID string) (bool, error)
	History(ctx context.Context, rideID string) ([]models.ChatPayload, error)
	PostMessage(ctx context.Context, rideID, userID, text string) error
	ListMessages(ctx context.Context, rideID, viewerID string) ([]models.ChatPayload, error)
}

type chatService struct {
	rideRepo  repository.RideRepository
	chatRepo  repository.ChatRepository
	users     UserService
	publisher realtime.Publisher
	now       func() time.Time
}

func NewChatService(
	rideRepo repository.RideRepository,
	chatRepo repository.ChatRepository,
	users UserService,
	publisher realtime.Publisher,
) ChatService {
	return &chatService{
		rideRepo:  rideRepo,
		chatRepo:  chatRepo,
		users:     users,
		publisher: publisher,
		now:       time.Now,
	}
}

// IsParticipant reports whether userID hosts or rides in the ride. A ride
// that no longer exists has no participants.
func (s *chatService) IsParticipant(ctx context.Context, rideID, userID string) (bool, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return false, err
	}
	if ride == nil {
		return false, nil
	}
	if ride.IsHost(userID) {
		return true, nil
	}

	members, err := s.rideRepo.ListMemberIDs(ctx, rideID)
	if err != nil {
		return false, err
	}
	return contains(members, userID), nil
}

// History returns the ride's stored payloads oldest first.
func (s *chatService) History(ctx context.Context, rideID string) ([]models.ChatPayload, error) {
	msgs, err := s.chatRepo.ListByRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	out := make([]models.ChatPayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Payload)
	}
	return out, nil
}

// PostMessage stores a user's chat line and pushes it to the ride topic.
// Completed rides no longer take messages.
func (s *chatService) PostMessage(ctx context.Context, rideID, userID, text string) error {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride == nil {
		return apperrors.NotFound("ride")
	}
	if ride.IsCompleted {
		return apperrors.RideCompleted()
	}

	now := s.now()
	payload := models.NewUserPayload(user, text, now)
	msg := &models.ChatMessage{
		RideID:    rideID,
		UserID:    userID,
		Payload:   payload,
		CreatedAt: now,
	}
	// The ride may complete after the read above; the insert re-checks.
	stored, err := s.chatRepo.CreateIfRideOpen(ctx, msg)
	if err != nil {
		return err
	}
	if !stored {
		return apperrors.RideCompleted()
	}

	s.publisher.Publish(rideID, payload)
	return nil
}

func (s *chatService) ListMessages(ctx context.Context, rideID, viewerID string) ([]models.ChatPayload, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, apperrors.NotFound("ride")
	}

	ok, err := s.IsParticipant(ctx, rideID, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Forbidden("only ride participants can read this chat")
	}
	return s.History(ctx, rideID)
}
