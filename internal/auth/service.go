// Package auth handles account registration, login and bearer-token
// sessions. User records live in the SQL repository; sessions live in the
// key-value store and expire after a TTL.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillcoin/learn-engine/internal/models"
	"github.com/skillcoin/learn-engine/internal/storage"
	"github.com/skillcoin/learn-engine/internal/store"
)

// Common errors
var (
	ErrEmailTaken         = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

const sessionKeyPrefix = "session:"

// Config holds auth settings
type Config struct {
	// AdminEmail registers with the admin role instead of user
	AdminEmail string

	// SessionTTL bounds how long a login session stays valid
	SessionTTL time.Duration
}

// Service implements registration, login and session lookup
type Service struct {
	users storage.UserRepository
	store store.Store
	cfg   Config
}

// NewService creates an auth service
func NewService(users storage.UserRepository, s store.Store, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	return &Service{
		users: users,
		store: s,
		cfg:   cfg,
	}
}

// Register creates a new account. The configured admin email receives the
// admin role; everyone else registers as a regular user.
func (s *Service) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := models.RoleUser
	if s.cfg.AdminEmail != "" && email == strings.ToLower(s.cfg.AdminEmail) {
		role = models.RoleAdmin
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: string(hash),
		IsVerified:   true,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Insert(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID, "role", user.Role)

	return user, nil
}

// Login verifies credentials and opens a new session
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up email: %w", err)
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}

	if err := store.SetJSON(ctx, s.store, sessionKeyPrefix+token, session); err != nil {
		return nil, nil, fmt.Errorf("failed to save session: %w", err)
	}

	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		slog.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}

	slog.Info("user logged in", "user_id", user.ID)

	return session, user, nil
}

// Logout removes the session for a token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.Remove(ctx, sessionKeyPrefix+token)
}

// SessionByToken returns the live session for a bearer token. Expired
// sessions are removed on sight.
func (s *Service) SessionByToken(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	var session models.Session
	err := store.GetJSON(ctx, s.store, sessionKeyPrefix+token, &session)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.Expired() {
		if err := s.store.Remove(ctx, sessionKeyPrefix+token); err != nil {
			slog.Warn("failed to remove expired session", "error", err)
		}
		return nil, ErrInvalidSession
	}

	return &session, nil
}

// PruneExpiredSessions removes all expired sessions from the store.
// Called by the background worker.
func (s *Service) PruneExpiredSessions(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx, sessionKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}

	pruned := 0
	for _, key := range keys {
		var session models.Session
		if err := store.GetJSON(ctx, s.store, key, &session); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			slog.Error("failed to load session during prune", "error", err)
			continue
		}

		if !session.Expired() {
			continue
		}

		if err := s.store.Remove(ctx, key); err != nil {
			slog.Error("failed to remove expired session", "error", err)
			continue
		}
		pruned++
	}

	return pruned, nil
}

// generateSessionToken creates a cryptographically random 48-char hex token
func generateSessionToken() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
