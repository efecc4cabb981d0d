package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrDisabled     = errors.New("access control is disabled")
)

const issuer = "pipprompter"

// service issues and checks control tokens. With an empty secret access
// control is disabled and every request is allowed.
type service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(secret string, ttl time.Duration) *service {
	return &service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s service) Enabled() bool {
	return len(s.secret) > 0
}

// Issue mints a token. A zero ttl produces a token without expiry.
func (s service) Issue() (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:       uuid.NewString(),
		Issuer:   issuer,
		Subject:  "control",
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return token, nil
}

func (s service) Verify(tokenString string) error {
	if !s.Enabled() {
		return nil
	}
	if tokenString == "" {
		return fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !token.Valid {
		return fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	return nil
}
