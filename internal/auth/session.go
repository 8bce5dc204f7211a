// Package auth holds the device session: the signed token handed over by the
// backend after login, and the identity claims extracted from it.
//
// The engine itself performs no credential exchange. The hosting application
// obtains a token and installs it with SetToken; everything downstream only
// asks "who is the current user" and attaches the bearer token to remote
// calls. With no session installed, background sync is skipped silently.
package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoSession    = errors.New("no session token installed")
)

// Claims represents the identity claims carried by a session token.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	jwt.RegisteredClaims
}

// Session validates and caches the current user's token. Safe for concurrent
// use: the reconciler, uploader and identity resolver all read it.
type Session struct {
	secretKey []byte

	mu     sync.RWMutex
	token  string
	claims *Claims
}

// NewSession creates a session validator with the given signing secret.
// secretKey must match the key the backend signs session tokens with.
func NewSession(secretKey string) *Session {
	return &Session{secretKey: []byte(secretKey)}
}

// SetToken validates tokenString and installs it as the active session.
// An invalid token leaves the previous session untouched.
func (s *Session) SetToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			// Verify the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secretKey, nil
		},
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return ErrInvalidToken
	}

	s.mu.Lock()
	s.token = tokenString
	s.claims = claims
	s.mu.Unlock()
	return nil
}

// Clear drops the active session (logout).
func (s *Session) Clear() {
	s.mu.Lock()
	s.token = ""
	s.claims = nil
	s.mu.Unlock()
}

// UserID returns the authenticated user's ID, and whether a session exists.
func (s *Session) UserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return "", false
	}
	return s.claims.UserID, true
}

// DisplayName returns the authenticated user's display name, or empty
// without a session.
func (s *Session) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return ""
	}
	return s.claims.DisplayName
}

// Token returns the raw bearer token, or empty without a session.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}
