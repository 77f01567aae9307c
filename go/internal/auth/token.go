// Package auth supplies bearer credentials to outbound calls. Login, refresh
// and session storage live elsewhere; this package only hands out the
// current token and refuses to hand out one that is already expired.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrNoToken is returned when no credential has been set.
	ErrNoToken = errors.New("no access token")
	// ErrTokenExpired is returned when the token's exp claim has passed.
	ErrTokenExpired = errors.New("access token expired")
)

// TokenSource yields the bearer credential for the local player.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource holds a token set by the session layer.
type StaticTokenSource struct {
	mu    sync.RWMutex
	token string
	clock clockwork.Clock
}

// NewStaticTokenSource creates a token source around token. An empty token
// makes every call fail with ErrNoToken until SetToken is called.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token, clock: clockwork.NewRealClock()}
}

// WithClock replaces the clock used for expiry checks.
func (s *StaticTokenSource) WithClock(clock clockwork.Clock) *StaticTokenSource {
	s.clock = clock
	return s
}

// SetToken swaps in a refreshed credential.
func (s *StaticTokenSource) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token returns the current credential.
func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return "", ErrNoToken
	}
	if Expired(token, s.clock.Now()) {
		return "", ErrTokenExpired
	}
	return token, nil
}

// Expired reports whether token is a JWT whose exp claim is before now.
// Opaque tokens and JWTs without exp are never considered expired; the
// server remains the judge of validity.
func Expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}

// Subject returns the sub claim of a JWT, if any.
func Subject(token string) string {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return ""
	}
	return claims.Subject
}
