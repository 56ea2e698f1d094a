// Package repository provides persistence implementations for the
// authentication and catalog services. Queries are written with '?'
// placeholders and rebound for the connected driver.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/boxcatalog/internal/models"
	"github.com/jmoiron/sqlx"
)

// AuthRepository implements user and session persistence.
type AuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sqlx.DB
}

// NewAuthRepository creates a new AuthRepository with the given database connection.
func NewAuthRepository(db *sqlx.DB) *AuthRepository {
	return &AuthRepository{DB: db}
}

// GetUserByUsername returns the user with the given username,
// or models.ErrUserNotFound.
func (r *AuthRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.DB.GetContext(ctx, &u,
		r.DB.Rebind(`SELECT id, username, password_hash, role FROM users WHERE username = ?`),
		username,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetUserByUsername: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user. Returns models.ErrUserExists if the
// username is taken.
func (r *AuthRepository) CreateUser(ctx context.Context, u models.User) error {
	_, err := r.DB.ExecContext(ctx,
		r.DB.Rebind(`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`),
		u.Username, u.PasswordHash, string(u.Role),
	)
	if isUniqueViolation(err) {
		return models.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash of a user.
func (r *AuthRepository) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		r.DB.Rebind(`UPDATE users SET password_hash = ? WHERE username = ?`),
		hash, username,
	)
	if err != nil {
		return fmt.Errorf("UpdatePasswordHash: %w", err)
	}
	return nil
}

// UpsertSession records a login. An existing row for the same username is
// overwritten: the token and last activity change, the login time is kept.
func (r *AuthRepository) UpsertSession(ctx context.Context, s models.ActiveSession) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		INSERT INTO active_sessions (username, token_hash, login_time, last_activity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			token_hash = excluded.token_hash,
			last_activity = excluded.last_activity
	`), s.Username, s.TokenHash, s.LoginTime, s.LastActivity)
	if err != nil {
		return fmt.Errorf("UpsertSession: %w", err)
	}
	return nil
}

// GetSession returns the active session of username, or models.ErrSessionNotFound.
func (r *AuthRepository) GetSession(ctx context.Context, username string) (*models.ActiveSession, error) {
	var s models.ActiveSession
	err := r.DB.GetContext(ctx, &s,
		r.DB.Rebind(`SELECT username, token_hash, login_time, last_activity FROM active_sessions WHERE username = ?`),
		username,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSession: %w", err)
	}
	return &s, nil
}

// TouchSession updates the last activity of username's session.
func (r *AuthRepository) TouchSession(ctx context.Context, username string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		r.DB.Rebind(`UPDATE active_sessions SET last_activity = ? WHERE username = ?`),
		at, username,
	)
	if err != nil {
		return fmt.Errorf("TouchSession: %w", err)
	}
	return nil
}

// DeleteSession removes the session of username. Deleting a missing
// session is not an error.
func (r *AuthRepository) DeleteSession(ctx context.Context, username string) error {
	_, err := r.DB.ExecContext(ctx,
		r.DB.Rebind(`DELETE FROM active_sessions WHERE username = ?`),
		username,
	)
	if err != nil {
		return fmt.Errorf("DeleteSession: %w", err)
	}
	return nil
}
