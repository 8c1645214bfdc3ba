package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/aditya/rideshare/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RideRequestRepository is the membership ledger. It performs no validation;
// the ride service is its only writer.
type RideRequestRepository interface {
	RecordJoin(ctx context.Context, rideID, userID string, approved bool) (*models.RideRequest, error)
	Exists(ctx context.Context, rideID, userID string) (bool, error)
	EarliestApprovedJoiner(ctx context.Context, rideID string) (string, error)
	Remove(ctx context.Context, rideID, userID string) error
	DeleteByRide(ctx context.Context, rideID string) error
}

type rideRequestRepository struct {
	db *sqlx.DB
}

func NewRideRequestRepository(db *sqlx.DB) RideRequestRepository {
	return &rideRequestRepository{db: db}
}

func (r *rideRequestRepository) RecordJoin(ctx context.Context, rideID, userID string, approved bool) (*models.RideRequest, error) {
	req := &models.RideRequest{
		ID:          uuid.New().String(),
		RideID:      rideID,
		UserID:      userID,
		RequestedAt: time.Now(),
		IsApproved:  approved,
	}

	query := `
		INSERT INTO ride_requests (id, ride_id, user_id, requested_at, is_approved)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		req.ID, req.RideID, req.UserID, req.RequestedAt, req.IsApproved)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *rideRequestRepository) Exists(ctx context.Context, rideID, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM ride_requests WHERE ride_id = $1 AND user_id = $2)`
	err := conn(ctx, r.db).GetContext(ctx, &exists, query, rideID, userID)
	return exists, err
}

// EarliestApprovedJoiner returns the user with the oldest approved request,
// or "" when there is none.
func (r *rideRequestRepository) EarliestApprovedJoiner(ctx context.Context, rideID string) (string, error) {
	var userID string
	query := `
		SELECT user_id FROM ride_requests
		WHERE ride_id = $1 AND is_approved = TRUE
		ORDER BY requested_at ASC, id ASC
		LIMIT 1
	`
	err := conn(ctx, r.db).GetContext(ctx, &userID, query, rideID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return userID, err
}

func (r *rideRequestRepository) Remove(ctx context.Context, rideID, userID string) error {
	query := `DELETE FROM ride_requests WHERE ride_id = $1 AND user_id = $2`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, rideID, userID)
	return err
}

func (r *rideRequestRepository) DeleteByRide(ctx context.Context, rideID string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM ride_requests WHERE ride_id = $1`, rideID)
	return err
}
