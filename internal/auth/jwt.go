package auth

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/aditya/rideshare/internal/errors"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "rideshare"

// Identity is the authenticated caller behind a credential.
type Identity struct {
	UserID string
}

// Claims carried in access tokens.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Validator turns a bearer credential into an Identity.
type Validator interface {
	ValidateCredential(token string) (*Identity, error)
}

// JWTService issues and validates HS256 access tokens.
type JWTService struct {
	secret []byte
	expiry time.Duration
}

func NewJWTService(secret string, expiryMinutes int) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		expiry: time.Duration(expiryMinutes) * time.Minute,
	}
}

// GenerateToken signs a token for userID.
func (s *JWTService) GenerateToken(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateCredential accepts a raw token or a "Bearer <token>" header value.
// Every failure is reported as an unauthorized APIError.
func (s *JWTService) ValidateCredential(token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, apperrors.Unauthorized("missing credential")
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !parsed.Valid {
		return nil, apperrors.Unauthorized("invalid credential")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, apperrors.Unauthorized("credential has no user")
	}
	return &Identity{UserID: claims.UserID}, nil
}
