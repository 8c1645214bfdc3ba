package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/aditya/rideshare/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RideRepository stores rides and their members set.
type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id string) (*models.Ride, error)
	GetByCode(ctx context.Context, code string) (*models.Ride, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.Ride, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, ride *models.Ride) error
	Delete(ctx context.Context, id string) error
	ListOpen(ctx context.Context, includeFemaleOnly bool) ([]*models.Ride, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*models.Ride, error)
	ListCompletedByUser(ctx context.Context, userID string) ([]*models.Ride, error)
	HasActiveRide(ctx context.Context, userID string) (bool, error)

	ListMemberIDs(ctx context.Context, rideID string) ([]string, error)
	AddMember(ctx context.Context, rideID, userID string) error
	RemoveMember(ctx context.Context, rideID, userID string) error
	DeleteMembers(ctx context.Context, rideID string) error
}

type rideRepository struct {
	db *sqlx.DB
}

func NewRideRepository(db *sqlx.DB) RideRepository {
	return &rideRepository{db: db}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if ride.ID == "" {
		ride.ID = uuid.New().String()
	}
	ride.CreatedAt = time.Now()

	query := `
		INSERT INTO rides (id, host_id, vehicle_type, pickup_name, pickup_lat, pickup_lng,
			destination_name, destination_lat, destination_lng, departure_time, total_fare,
			seats_available, is_female_only, vehicle_number_plate, ride_code, is_completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		ride.ID, ride.HostID, ride.VehicleType, ride.PickupName, ride.PickupLat, ride.PickupLng,
		ride.DestinationName, ride.DestinationLat, ride.DestinationLng, ride.DepartureTime, ride.TotalFare,
		ride.SeatsAvailable, ride.IsFemaleOnly, ride.VehicleNumberPlate, ride.RideCode, ride.IsCompleted, ride.CreatedAt)
	return err
}

func (r *rideRepository) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	var ride models.Ride
	query := `SELECT * FROM rides WHERE id = $1`
	err := conn(ctx, r.db).GetContext(ctx, &ride, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &ride, err
}

func (r *rideRepository) GetByCode(ctx context.Context, code string) (*models.Ride, error) {
	var ride models.Ride
	query := `SELECT * FROM rides WHERE ride_code = $1`
	err := conn(ctx, r.db).GetContext(ctx, &ride, query, code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &ride, err
}

// GetByIDForUpdate locks the ride row until the surrounding transaction ends.
func (r *rideRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Ride, error) {
	var ride models.Ride
	query := `SELECT * FROM rides WHERE id = $1 FOR UPDATE`
	err := conn(ctx, r.db).GetContext(ctx, &ride, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &ride, err
}

func (r *rideRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM rides WHERE ride_code = $1)`
	err := conn(ctx, r.db).GetContext(ctx, &exists, query, code)
	return exists, err
}

func (r *rideRepository) Update(ctx context.Context, ride *models.Ride) error {
	query := `
		UPDATE rides
		SET host_id = $1, seats_available = $2, is_completed = $3
		WHERE id = $4
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		ride.HostID, ride.SeatsAvailable, ride.IsCompleted, ride.ID)
	return err
}

func (r *rideRepository) Delete(ctx context.Context, id string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM rides WHERE id = $1`, id)
	return err
}

func (r *rideRepository) ListOpen(ctx context.Context, includeFemaleOnly bool) ([]*models.Ride, error) {
	var rides []*models.Ride
	query := `
		SELECT * FROM rides
		WHERE seats_available > 0 AND is_completed = FALSE
			AND ($1 OR is_female_only = FALSE)
		ORDER BY departure_time DESC
	`
	err := conn(ctx, r.db).SelectContext(ctx, &rides, query, includeFemaleOnly)
	return rides, err
}

func (r *rideRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.Ride, error) {
	return r.listByParticipant(ctx, userID, false)
}

func (r *rideRepository) ListCompletedByUser(ctx context.Context, userID string) ([]*models.Ride, error) {
	return r.listByParticipant(ctx, userID, true)
}

func (r *rideRepository) listByParticipant(ctx context.Context, userID string, completed bool) ([]*models.Ride, error) {
	var rides []*models.Ride
	query := `
		SELECT * FROM rides
		WHERE is_completed = $2
			AND (host_id = $1 OR id IN (SELECT ride_id FROM ride_members WHERE user_id = $1))
		ORDER BY departure_time DESC
	`
	err := conn(ctx, r.db).SelectContext(ctx, &rides, query, userID, completed)
	return rides, err
}

// HasActiveRide reports whether the user hosts or rides in a ride that is
// not completed.
func (r *rideRepository) HasActiveRide(ctx context.Context, userID string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE is_completed = FALSE
				AND (host_id = $1 OR id IN (SELECT ride_id FROM ride_members WHERE user_id = $1))
		)
	`
	err := conn(ctx, r.db).GetContext(ctx, &exists, query, userID)
	return exists, err
}

// ListMemberIDs returns member user ids in join order.
func (r *rideRepository) ListMemberIDs(ctx context.Context, rideID string) ([]string, error) {
	var ids []string
	query := `SELECT user_id FROM ride_members WHERE ride_id = $1 ORDER BY joined_at ASC`
	err := conn(ctx, r.db).SelectContext(ctx, &ids, query, rideID)
	return ids, err
}

func (r *rideRepository) AddMember(ctx context.Context, rideID, userID string) error {
	query := `INSERT INTO ride_members (ride_id, user_id, joined_at) VALUES ($1, $2, $3)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, rideID, userID, time.Now())
	return err
}

func (r *rideRepository) RemoveMember(ctx context.Context, rideID, userID string) error {
	query := `DELETE FROM ride_members WHERE ride_id = $1 AND user_id = $2`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, rideID, userID)
	return err
}

func (r *rideRepository) DeleteMembers(ctx context.Context, rideID string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM ride_members WHERE ride_id = $1`, rideID)
	return err
}
