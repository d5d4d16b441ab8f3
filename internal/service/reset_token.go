package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/essay-grader-api/internal/models"
)

const resetPurpose = "password_reset"

var errResetToken = errors.New("invalid reset token")

type resetClaims struct {
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"pwd"`
	jwt.RegisteredClaims
}

// resetTokens mints and checks password reset tokens. A token is bound to the
// password hash current at minting time, so it stops working once used.
type resetTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newResetTokens(secret string, ttl time.Duration) resetTokens {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return resetTokens{
		secret: []byte(secret + ":password-reset"),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r resetTokens) make(user models.User) (string, error) {
	now := r.now()
	claims := resetClaims{
		Purpose:     resetPurpose,
		Fingerprint: passwordFingerprint(user.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return signed, nil
}

func (r resetTokens) check(token string, user models.User) error {
	var claims resetClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(r.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return errResetToken
	}

	switch {
	case claims.Purpose != resetPurpose:
		return errResetToken
	case claims.Subject != strconv.FormatUint(uint64(user.ID), 10):
		return errResetToken
	case claims.Fingerprint != passwordFingerprint(user.PasswordHash):
		return errResetToken
	}
	return nil
}

func encodeUID(id uint) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(id), 10)))
}

func decodeUID(uidb64 string) (uint, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uidb64)
	if err != nil {
		return 0, errResetToken
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, errResetToken
	}
	return uint(id), nil
}
