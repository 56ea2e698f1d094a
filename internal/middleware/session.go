package middleware

import (
	"context"
	"crypto/sha256"
	"errors"
	"net/http"
	"time"

	"github.com/atinyakov/boxcatalog/internal/models"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// SessionName is the name of the session cookie.
const SessionName = "boxcatalog"

// LoginPath is where unauthenticated requests are sent.
const LoginPath = "/login"

// Flash messages shown on the login page after a forced logout.
const (
	FlashExpired    = "Session expired due to inactivity."
	FlashSuperseded = "You were signed out because your account signed in elsewhere."
)

const (
	keyUsername = "username"
	keyRole     = "role"
	keyToken    = "token"
)

type ctxKey string

const identityKey ctxKey = "identity"

// SessionAuthenticator is the part of the auth service the session
// middleware relies on.
type SessionAuthenticator interface {
	ResolveSession(ctx context.Context, username, token string) (*models.ActiveSession, error)
	CheckIdleTimeout(ctx context.Context, sess *models.ActiveSession, now time.Time) (bool, error)
	Touch(ctx context.Context, username string, now time.Time) error
}

// SessionKeys derives the cookie signing and encryption keys from secret.
// An empty secret yields random keys, so cookies do not survive a restart;
// generated reports that case.
func SessionKeys(secret string) (hashKey, blockKey []byte, generated bool) {
	if secret == "" {
		return securecookie.GenerateRandomKey(64), securecookie.GenerateRandomKey(32), true
	}
	sum := sha256.Sum256([]byte(secret))
	return []byte(secret), sum[:], false
}

// NewCookieStore returns an HttpOnly, SameSite=Lax cookie store.
func NewCookieStore(hashKey, blockKey []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Sessions ties the browser cookie to the server-side active session.
type Sessions struct {
	store sessions.Store
	auth  SessionAuthenticator
	log   *zap.Logger
	now   func() time.Time
}

// NewSessions creates a Sessions helper backed by store and auth.
func NewSessions(store sessions.Store, auth SessionAuthenticator, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{store: store, auth: auth, log: log, now: time.Now}
}

// get returns the session, starting a fresh one if the cookie cannot be decoded.
func (s *Sessions) get(r *http.Request) *sessions.Session {
	sess, err := s.store.Get(r, SessionName)
	if err != nil {
		s.log.Debug("discarding unreadable session cookie", zap.Error(err))
	}
	return sess
}

// Start stores the identity and session token in the cookie.
func (s *Sessions) Start(w http.ResponseWriter, r *http.Request, id models.Identity, token string) error {
	sess := s.get(r)
	sess.Values[keyUsername] = id.Username
	sess.Values[keyRole] = string(id.Role)
	sess.Values[keyToken] = token
	return sess.Save(r, w)
}

// End removes the identity from the cookie. Pending flash messages are kept.
func (s *Sessions) End(w http.ResponseWriter, r *http.Request) error {
	sess := s.get(r)
	clearIdentity(sess)
	return sess.Save(r, w)
}

// AddFlash queues a message for the next page render.
func (s *Sessions) AddFlash(w http.ResponseWriter, r *http.Request, msg string) error {
	sess := s.get(r)
	sess.AddFlash(msg)
	return sess.Save(r, w)
}

// Flashes returns and consumes the queued flash messages.
func (s *Sessions) Flashes(w http.ResponseWriter, r *http.Request) []string {
	sess := s.get(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		s.log.Warn("failed to save session", zap.Error(err))
	}
	msgs := make([]string, 0, len(raw))
	for _, f := range raw {
		if m, ok := f.(string); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// Require lets a request through only when its cookie carries the token of
// the user's current, non-idle session. Activity is recorded and the
// caller's identity is put into the request context.
func (s *Sessions) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := s.get(r)
		username, _ := sess.Values[keyUsername].(string)
		token, _ := sess.Values[keyToken].(string)
		role, _ := sess.Values[keyRole].(string)

		if username == "" || token == "" {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}

		active, err := s.auth.ResolveSession(ctx, username, token)
		if errors.Is(err, models.ErrSessionNotFound) {
			s.log.Info("session no longer active", zap.String("username", username))
			s.signOut(w, r, sess, FlashSuperseded)
			return
		}
		if err != nil {
			s.log.Error("failed to resolve session", zap.String("username", username), zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		now := s.now().UTC()
		expired, err := s.auth.CheckIdleTimeout(ctx, active, now)
		if err != nil {
			s.log.Error("failed to expire session", zap.String("username", username), zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if expired {
			s.signOut(w, r, sess, FlashExpired)
			return
		}

		if err := s.auth.Touch(ctx, username, now); err != nil {
			s.log.Warn("failed to record activity", zap.String("username", username), zap.Error(err))
		}

		id := models.Identity{Username: username, Role: models.Role(role)}
		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
	})
}

func (s *Sessions) signOut(w http.ResponseWriter, r *http.Request, sess *sessions.Session, flash string) {
	clearIdentity(sess)
	sess.AddFlash(flash)
	if err := sess.Save(r, w); err != nil {
		s.log.Warn("failed to save session", zap.Error(err))
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func clearIdentity(sess *sessions.Session) {
	delete(sess.Values, keyUsername)
	delete(sess.Values, keyRole)
	delete(sess.Values, keyToken)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the authenticated caller from the request
// context. ok is false outside Require.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}
