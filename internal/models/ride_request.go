package models

import (
	"time"
)

// RideRequest records a user's join action on a ride. Approved requests in
// requested_at order decide host succession.
type RideRequest struct {
	ID          string    `db:"id" json:"id"`
	RideID      string    `db:"ride_id" json:"ride_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	RequestedAt time.Time `db:"requested_at" json:"requested_at"`
	IsApproved  bool      `db:"is_approved" json:"is_approved"`
}
