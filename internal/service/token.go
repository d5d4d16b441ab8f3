package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/essay-grader-api/internal/models"
)

// TokenIssuer signs access tokens understood by middleware.JWTProtected.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs an HS256 token issuer.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for the user and its lifetime.
func (i *TokenIssuer) Issue(user models.User) (string, time.Duration, error) {
	role := models.RoleStudent
	if user.Profile != nil && user.Profile.Role != "" {
		role = user.Profile.Role
	}

	now := i.now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"role":     role,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(i.ttl).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign access token: %w", err)
	}

	return signed, i.ttl, nil
}
