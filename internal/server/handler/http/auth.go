// Package http provides the HTML handlers and routing of the box catalog.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/atinyakov/boxcatalog/internal/middleware"
	"github.com/atinyakov/boxcatalog/internal/models"
	"go.uber.org/zap"
)

// AuthService defines the authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Authenticate checks credentials and returns the user's role.
	Authenticate(ctx context.Context, username, password string) (models.Role, error)
	// Login registers a session for username and returns its token.
	Login(ctx context.Context, username string) (string, error)
	// Logout removes the session of username.
	Logout(ctx context.Context, username string) error
}

// AuthHandler handles the login and logout pages.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	// Sessions manages the session cookie.
	Sessions *middleware.Sessions
	// Views renders the pages.
	Views *Views
	// Log records authentication events.
	Log *zap.Logger
}

// LoginPage renders the login form along with any pending flash messages,
// such as the inactivity notice.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.Views.render(w, pageLogin, http.StatusOK, pageData{
		Title:   "Login",
		Flashes: h.Sessions.Flashes(w, r),
	})
}

// Login verifies the submitted credentials, registers a new session and
// redirects to the catalog. Bad credentials re-render the form with 401.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	role, err := h.AuthService.Authenticate(r.Context(), username, password)
	if errors.Is(err, models.ErrInvalidCredentials) {
		h.Log.Info("login failed", zap.String("username", username))
		h.Views.render(w, pageLogin, http.StatusUnauthorized, pageData{
			Title: "Login",
			Error: "Invalid username or password",
			Form:  formValues{Username: username},
		})
		return
	}
	if err != nil {
		h.Log.Error("authenticate", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	token, err := h.AuthService.Login(r.Context(), username)
	if err != nil {
		h.Log.Error("register session", zap.String("username", username), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := h.Sessions.Start(w, r, models.Identity{Username: username, Role: role}, token); err != nil {
		h.Log.Error("save session cookie", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.Log.Info("user logged in", zap.String("username", username), zap.String("role", string(role)))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout ends the caller's session and returns to the login page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		if err := h.AuthService.Logout(r.Context(), id.Username); err != nil {
			h.Log.Error("logout", zap.String("username", id.Username), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		h.Log.Info("user logged out", zap.String("username", id.Username))
	}
	if err := h.Sessions.End(w, r); err != nil {
		h.Log.Warn("clear session cookie", zap.Error(err))
	}
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}
