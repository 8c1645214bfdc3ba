package models

import (
	"math"
	"time"
)

// Vehicle types
const (
	VehicleTypeCar      = "Car"
	VehicleTypeBike     = "Bike"
	VehicleTypeCNG      = "CNG"
	VehicleTypeUber     = "Uber"
	VehicleTypeTaxi     = "Taxi"
	VehicleTypeRickshaw = "Rickshaw"
)

const defaultMaxSeats = 3

// maxSeats is the total capacity of each vehicle type, host included.
var maxSeats = map[string]int{
	VehicleTypeCar:      3,
	VehicleTypeCNG:      3,
	VehicleTypeUber:     3,
	VehicleTypeTaxi:     3,
	VehicleTypeBike:     2,
	VehicleTypeRickshaw: 2,
}

// MaxSeats returns the seat capacity for a vehicle type. Unknown types get 3.
func MaxSeats(vehicleType string) int {
	if n, ok := maxSeats[vehicleType]; ok {
		return n
	}
	return defaultMaxSeats
}

// InitialSeats is the number of open seats on a freshly created ride.
func InitialSeats(vehicleType string) int {
	return MaxSeats(vehicleType) - 1
}

type Place struct {
	Name string   `json:"name" validate:"required,max=100"`
	Lat  *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng  *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
}

type Ride struct {
	ID                 string    `db:"id" json:"id"`
	HostID             string    `db:"host_id" json:"host_id"`
	VehicleType        string    `db:"vehicle_type" json:"vehicle_type"`
	PickupName         string    `db:"pickup_name" json:"pickup_name"`
	PickupLat          *float64  `db:"pickup_lat" json:"pickup_lat,omitempty"`
	PickupLng          *float64  `db:"pickup_lng" json:"pickup_lng,omitempty"`
	DestinationName    string    `db:"destination_name" json:"destination_name"`
	DestinationLat     *float64  `db:"destination_lat" json:"destination_lat,omitempty"`
	DestinationLng     *float64  `db:"destination_lng" json:"destination_lng,omitempty"`
	DepartureTime      time.Time `db:"departure_time" json:"departure_time"`
	TotalFare          float64   `db:"total_fare" json:"total_fare"`
	SeatsAvailable     int       `db:"seats_available" json:"seats_available"`
	IsFemaleOnly       bool      `db:"is_female_only" json:"is_female_only"`
	VehicleNumberPlate *string   `db:"vehicle_number_plate" json:"vehicle_number_plate,omitempty"`
	RideCode           string    `db:"ride_code" json:"ride_code"`
	IsCompleted        bool      `db:"is_completed" json:"is_completed"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

type CreateRideRequest struct {
	VehicleType        string    `json:"vehicle_type" validate:"required,oneof=Car Bike CNG Uber Taxi Rickshaw"`
	Pickup             Place     `json:"pickup"`
	Destination        Place     `json:"destination"`
	DepartureTime      time.Time `json:"departure_time" validate:"required"`
	TotalFare          *float64  `json:"total_fare" validate:"required,gte=0"`
	IsFemaleOnly       *bool     `json:"is_female_only" validate:"required"`
	VehicleNumberPlate string    `json:"vehicle_number_plate,omitempty" validate:"omitempty,max=20"`
}

type JoinByCodeRequest struct {
	RideCode string `json:"ride_code" validate:"required,len=6,alphanum"`
}

type RideResponse struct {
	ID                 string          `json:"id"`
	Host               *UserResponse   `json:"host"`
	VehicleType        string          `json:"vehicle_type"`
	Pickup             Place           `json:"pickup"`
	Destination        Place           `json:"destination"`
	DepartureTime      time.Time       `json:"departure_time"`
	TotalFare          float64         `json:"total_fare"`
	PerPersonFare      float64         `json:"per_person_fare"`
	SeatsAvailable     int             `json:"seats_available"`
	IsFemaleOnly       bool            `json:"is_female_only"`
	VehicleNumberPlate *string         `json:"vehicle_number_plate,omitempty"`
	RideCode           string          `json:"ride_code"`
	IsCompleted        bool            `json:"is_completed"`
	CreatedAt          time.Time       `json:"created_at"`
	Members            []*UserResponse `json:"members"`
}

// ToResponse renders the ride with its host and members. members must not
// include the host; the rendered list always starts with the host.
func (r *Ride) ToResponse(host *UserResponse, members []*UserResponse) *RideResponse {
	list := make([]*UserResponse, 0, len(members)+1)
	if host != nil {
		list = append(list, host)
	}
	list = append(list, members...)

	return &RideResponse{
		ID:          r.ID,
		Host:        host,
		VehicleType: r.VehicleType,
		Pickup: Place{
			Name: r.PickupName,
			Lat:  r.PickupLat,
			Lng:  r.PickupLng,
		},
		Destination: Place{
			Name: r.DestinationName,
			Lat:  r.DestinationLat,
			Lng:  r.DestinationLng,
		},
		DepartureTime:      r.DepartureTime,
		TotalFare:          r.TotalFare,
		PerPersonFare:      PerPersonFare(r.TotalFare, len(members)),
		SeatsAvailable:     r.SeatsAvailable,
		IsFemaleOnly:       r.IsFemaleOnly,
		VehicleNumberPlate: r.VehicleNumberPlate,
		RideCode:           r.RideCode,
		IsCompleted:        r.IsCompleted,
		CreatedAt:          r.CreatedAt,
		Members:            list,
	}
}

// PerPersonFare splits the total fare between the host and memberCount
// members, rounded to cents.
func PerPersonFare(totalFare float64, memberCount int) float64 {
	riders := memberCount + 1
	return math.Round(totalFare/float64(riders)*100) / 100
}

// IsOpen reports whether the ride is listed publicly.
func (r *Ride) IsOpen() bool {
	return !r.IsCompleted && r.SeatsAvailable > 0
}

// IsHost reports whether userID owns the ride.
func (r *Ride) IsHost(userID string) bool {
	return r.HostID == userID
}
