// Package auth implements the demo chat application's login: bcrypt
// password checks and short-lived JWT access tokens, generalized from an
// AuthService/TokenService pair down to the single in-memory user store
// the demo needs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both unknown users and password mismatch,
// deliberately not distinguishing them to a caller so a login failure
// never leaks which half was wrong.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Claims is the JWT payload minted on successful login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Store is an in-memory user directory for the demo server — the
// persistence layer proper lives in chatstore against Postgres, but
// credentials stay local since the demo has no signup flow.
type Store struct {
	mu    sync.RWMutex
	users map[string]string // username -> bcrypt hash
}

// NewStore seeds a Store with username/plaintext-password pairs, hashing
// each with bcrypt at its default cost.
func NewStore(seed map[string]string) (*Store, error) {
	s := &Store{users: make(map[string]string, len(seed))}
	for user, pass := range seed {
		hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("auth: hash seed password for %s: %w", user, err)
		}
		s.users[user] = string(hash)
	}
	return s, nil
}

// Service issues and validates JWT access tokens backed by a Store.
type Service struct {
	store  *Store
	secret []byte
	ttl    time.Duration
}

// NewService returns a Service minting tokens valid for ttl, signed with
// secret.
func NewService(store *Store, secret []byte, ttl time.Duration) *Service {
	return &Service{store: store, secret: secret, ttl: ttl}
}

// Login verifies username/password against the store and mints an access
// token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	s.store.mu.RLock()
	hash, ok := s.store.users[username]
	s.store.mu.RUnlock()
	if !ok {
		// Still run bcrypt against a dummy hash so the response timing
		// doesn't reveal whether the username exists.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidinvalidinvaliduinvalidinvalidinvalidinvalidinv"), []byte(password))
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			Issuer:    "loom-demo",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a bearer token, returning its claims.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	return claims, nil
}
