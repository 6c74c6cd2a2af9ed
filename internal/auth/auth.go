// Package auth issues and checks bearer tokens. Tokens are opaque UUIDs
// held in Redis so a restart or an explicit logout invalidates them without
// any state in the process.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukahub/dukahub/internal/shared"
)

// ErrInvalidCredentials covers both unknown emails and wrong passwords so
// responses do not reveal which one failed.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Credential is the subset of a user record login needs.
type Credential struct {
	UserID       int64
	PasswordHash string
	Active       bool
}

// CredentialPort looks up login credentials.
type CredentialPort interface {
	GetCredentialByEmail(ctx context.Context, email string) (Credential, error)
}

// Session is an issued token.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service authenticates users and manages their tokens.
type Service struct {
	credentials CredentialPort
	rdb         *redis.Client
	ttl         time.Duration
}

func NewService(credentials CredentialPort, rdb *redis.Client, ttl time.Duration) *Service {
	return &Service{credentials: credentials, rdb: rdb, ttl: ttl}
}

// Login verifies the password and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, shared.NewValidation("email and password required")
	}
	cred, err := s.credentials.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !cred.Active {
		return Session{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	session := Session{
		Token:     uuid.NewString(),
		UserID:    cred.UserID,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}
	err = s.rdb.Set(ctx, tokenKey(session.Token), strconv.FormatInt(cred.UserID, 10), s.ttl).Err()
	if err != nil {
		return Session{}, fmt.Errorf("store token: %w", err)
	}
	return session, nil
}

// Logout revokes a token. Revoking an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, tokenKey(token)).Err()
}

// Resolve returns the user id a token belongs to, or ErrInvalidCredentials.
func (s *Service) Resolve(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidCredentials
	}
	raw, err := s.rdb.Get(ctx, tokenKey(token)).Result()
	if err == redis.Nil {
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, fmt.Errorf("resolve token: %w", err)
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrInvalidCredentials
	}
	return userID, nil
}

func tokenKey(token string) string {
	return "auth:token:" + token
}
