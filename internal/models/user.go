package models

import (
	"time"
)

// Genders
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

type User struct {
	ID          string    `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	Gender      *string   `db:"gender" json:"gender,omitempty"`
	PhoneNumber *string   `db:"phone_number" json:"phone_number,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type UserResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Gender      *string `json:"gender,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Gender:      u.Gender,
		PhoneNumber: u.PhoneNumber,
	}
}

// IsFemale reports whether the user's recorded gender is Female.
func (u *User) IsFemale() bool {
	return u.Gender != nil && *u.Gender == GenderFemale
}

// FullName is "First Last" as shown in system messages.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
