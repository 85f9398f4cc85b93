package session

import (
	"net/http"
	"time"
)

// Cookie names used by the gateway.
const (
	// AuthCookieName carries the public session token.
	AuthCookieName = "auth_session"

	// RedirectCookieName carries the pre-login redirect target.
	RedirectCookieName = "auth_redirect"
)

// DefaultSessionTTL is the session cookie lifetime when none is
// configured.
const DefaultSessionTTL = 24 * time.Hour

// Config holds the cookie attributes shared by both cookies.
type Config struct {
	// Domain scopes the cookies. Empty means host-only.
	Domain string

	// Secure marks the cookies Secure.
	Secure bool

	// SessionTTL is the session cookie lifetime.
	SessionTTL time.Duration
}

// Manager builds, reads, and clears the gateway's cookies.
type Manager struct {
	cfg Config
}

// NewManager creates a cookie manager.
func NewManager(cfg Config) *Manager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	return &Manager{cfg: cfg}
}

// SetSession writes the session cookie holding the public token.
func (m *Manager) SetSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		Domain:   m.cfg.Domain,
		Expires:  time.Now().Add(m.cfg.SessionTTL),
		MaxAge:   int(m.cfg.SessionTTL / time.Second),
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken reads the session cookie value. A missing or empty cookie
// yields the empty string, which downstream means anonymous.
func (m *Manager) SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(AuthCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ClearSession overwrites the session cookie with an empty, already
// expired one carrying the same attributes, so browsers actually drop it.
func (m *Manager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.cfg.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
