// Package call issues tokens for the external audio/video call provider.
package call

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotConfigured = errors.New("call provider is not configured")

// Claims is what the call provider expects inside a user token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type Issuer struct {
	apiKey string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(apiKey, secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		apiKey: apiKey,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (i *Issuer) Configured() bool {
	return i != nil && i.apiKey != "" && len(i.secret) > 0
}

func (i *Issuer) APIKey() string {
	return i.apiKey
}

// Issue signs an HS256 token for participantID that expires after the issuer's TTL.
func (i *Issuer) Issue(participantID string) (string, time.Time, error) {
	if !i.Configured() {
		return "", time.Time{}, ErrNotConfigured
	}
	if participantID == "" {
		return "", time.Time{}, errors.New("participant id is required")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		UserID: participantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign call token: %w", err)
	}
	return signed, expiresAt, nil
}
