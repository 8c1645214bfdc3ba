package repository

import (
	"context"
	"time"

	"github.com/aditya/rideshare/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ChatRepository interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	CreateIfRideOpen(ctx context.Context, msg *models.ChatMessage) (bool, error)
	ListByRide(ctx context.Context, rideID string) ([]*models.ChatMessage, error)
	DeleteByRide(ctx context.Context, rideID string) (int64, error)
}

type chatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO chat_messages (id, ride_id, user_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		msg.ID, msg.RideID, msg.UserID, msg.Payload, msg.CreatedAt)
	return err
}

// CreateIfRideOpen inserts msg only while its ride exists and is not
// completed, and reports whether a row was written. The share lock waits out
// a completion in flight so its purge cannot miss the new row.
func (r *chatRepository) CreateIfRideOpen(ctx context.Context, msg *models.ChatMessage) (bool, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO chat_messages (id, ride_id, user_id, payload, created_at)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (
			SELECT 1 FROM rides WHERE id = $2 AND is_completed = FALSE FOR SHARE
		)
	`
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		msg.ID, msg.RideID, msg.UserID, msg.Payload, msg.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByRide returns the ride's messages oldest first.
func (r *chatRepository) ListByRide(ctx context.Context, rideID string) ([]*models.ChatMessage, error) {
	var msgs []*models.ChatMessage
	query := `SELECT * FROM chat_messages WHERE ride_id = $1 ORDER BY created_at ASC, id ASC`
	err := conn(ctx, r.db).SelectContext(ctx, &msgs, query, rideID)
	return msgs, err
}

func (r *chatRepository) DeleteByRide(ctx context.Context, rideID string) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM chat_messages WHERE ride_id = $1`, rideID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
