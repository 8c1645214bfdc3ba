package utils

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const (
	RideCodeLength   = 6
	rideCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateID generates a new UUID v4
func GenerateID() string {
	return uuid.New().String()
}

// IsValidUUID checks if a string is a valid UUID
func IsValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// GenerateRideCode returns a random join code of uppercase letters and digits.
func GenerateRideCode() (string, error) {
	max := big.NewInt(int64(len(rideCodeAlphabet)))
	code := make([]byte, RideCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = rideCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
