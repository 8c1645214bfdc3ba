package auth

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/aditya/rideshare/internal/errors"
	"github.com/golang-jwt/jwt/v5"
)

func TestValidateCredential(t *testing.T) {
	svc := NewJWTService("secret", 10)

	token, err := svc.GenerateToken("user-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredToken, _ := expired.SignedString([]byte("secret"))

	other := NewJWTService("other-secret", 10)
	foreignToken, _ := other.GenerateToken("user-1")

	tests := []struct {
		name    string
		token   string
		wantID  string
		wantErr bool
	}{
		{"raw token", token, "user-1", false},
		{"bearer prefix", "Bearer " + token, "user-1", false},
		{"empty", "", "", true},
		{"garbage", "not-a-jwt", "", true},
		{"expired", expiredToken, "", true},
		{"wrong secret", foreignToken, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := svc.ValidateCredential(tt.token)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrUnauthorized) {
					t.Fatalf("ValidateCredential() error = %v, want unauthorized", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateCredential() error = %v", err)
			}
			if id.UserID != tt.wantID {
				t.Errorf("UserID = %q, want %q", id.UserID, tt.wantID)
			}
		})
	}
}
