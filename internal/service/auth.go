// Package service provides the authentication and catalog business logic,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/boxcatalog/internal/models"
	"github.com/atinyakov/boxcatalog/internal/security"
	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long a session may stay inactive before it expires.
const DefaultIdleTimeout = time.Hour

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	// GetUserByUsername returns the user or models.ErrUserNotFound.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// CreateUser inserts a user or returns models.ErrUserExists.
	CreateUser(ctx context.Context, u models.User) error
	// UpdatePasswordHash replaces the stored hash of a user.
	UpdatePasswordHash(ctx context.Context, username, hash string) error
	// UpsertSession records a login, replacing any previous session of the user.
	UpsertSession(ctx context.Context, s models.ActiveSession) error
	// GetSession returns the session of a user or models.ErrSessionNotFound.
	GetSession(ctx context.Context, username string) (*models.ActiveSession, error)
	// TouchSession updates the last activity of a session.
	TouchSession(ctx context.Context, username string, at time.Time) error
	// DeleteSession removes the session of a user, if any.
	DeleteSession(ctx context.Context, username string) error
}

// AuthService implements credential checks and single-session bookkeeping.
type AuthService struct {
	repo AuthRepository
	idle time.Duration
	log  *zap.Logger
	now  func() time.Time
}

// NewAuthService constructs an AuthService. A non-positive idle uses
// DefaultIdleTimeout.
func NewAuthService(repo AuthRepository, idle time.Duration, log *zap.Logger) *AuthService {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{repo: repo, idle: idle, log: log, now: time.Now}
}

// IdleTimeout returns the configured inactivity limit.
func (s *AuthService) IdleTimeout() time.Duration {
	return s.idle
}

// Authenticate verifies a username/password pair and returns the user's role.
// Unknown users and wrong passwords both yield models.ErrInvalidCredentials.
// A matching legacy digest is upgraded to bcrypt.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (models.Role, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, models.ErrUserNotFound) {
		return "", models.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !security.ComparePasswords(u.PasswordHash, password) {
		return "", models.ErrInvalidCredentials
	}

	if security.IsLegacyHash(u.PasswordHash) {
		hash, err := security.HashPassword(password)
		if err == nil {
			err = s.repo.UpdatePasswordHash(ctx, username, hash)
		}
		if err != nil {
			s.log.Warn("failed to upgrade password hash", zap.String("username", username), zap.Error(err))
		} else {
			s.log.Info("upgraded legacy password hash", zap.String("username", username))
		}
	}
	return u.Role, nil
}

// Login registers a new session for username and returns its token.
// Any earlier session of the same user stops resolving.
func (s *AuthService) Login(ctx context.Context, username string) (string, error) {
	token, hash := security.NewSessionToken()
	now := s.now().UTC()
	err := s.repo.UpsertSession(ctx, models.ActiveSession{
		Username:     username,
		TokenHash:    hash,
		LoginTime:    now,
		LastActivity: now,
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Logout removes the session of username. It is safe to call when no
// session exists.
func (s *AuthService) Logout(ctx context.Context, username string) error {
	return s.repo.DeleteSession(ctx, username)
}

// ResolveSession returns the active session of username if token is the
// one issued by its latest login.
func (s *AuthService) ResolveSession(ctx context.Context, username, token string) (*models.ActiveSession, error) {
	if username == "" || token == "" {
		return nil, models.ErrSessionNotFound
	}
	sess, err := s.repo.GetSession(ctx, username)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(security.HashToken(token)), []byte(sess.TokenHash)) != 1 {
		return nil, models.ErrSessionNotFound
	}
	return sess, nil
}

// CheckIdleTimeout reports whether sess has been inactive for longer than
// the idle timeout at now. An expired session is logged out.
func (s *AuthService) CheckIdleTimeout(ctx context.Context, sess *models.ActiveSession, now time.Time) (bool, error) {
	if now.Sub(sess.LastActivity) <= s.idle {
		return false, nil
	}
	if err := s.Logout(ctx, sess.Username); err != nil {
		return true, err
	}
	s.log.Info("session expired", zap.String("username", sess.Username))
	return true, nil
}

// Touch records activity for the session of username at now.
func (s *AuthService) Touch(ctx context.Context, username string, now time.Time) error {
	return s.repo.TouchSession(ctx, username, now.UTC())
}

// CreateUser provisions a user with a bcrypt password hash.
func (s *AuthService) CreateUser(ctx context.Context, username, password string, role models.Role) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required: %w", models.ErrValidation)
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q: %w", role, models.ErrValidation)
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	return s.repo.CreateUser(ctx, models.User{Username: username, PasswordHash: hash, Role: role})
}
