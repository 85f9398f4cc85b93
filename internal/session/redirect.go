package session

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

// RedirectTarget is where an unauthenticated caller was trying to go.
type RedirectTarget struct {
	Subdomain string `json:"subdomain,omitempty"`
	Path      string `json:"path"`
}

// SetRedirect stores the target in a browser-session cookie. No expiry is
// set, so the cookie dies with the browser session.
func (m *Manager) SetRedirect(w http.ResponseWriter, target RedirectTarget) {
	value, err := json.Marshal(target)
	if err != nil {
		// A two-string struct cannot fail to marshal; keep the
		// fallback anyway so a future field change degrades safely.
		value = []byte("{}")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RedirectCookieName,
		Value:    encodeCookieValue(value),
		Path:     "/",
		Domain:   m.cfg.Domain,
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ConsumeRedirect reads the target and clears the cookie in one step, so a
// second call in the same session yields nothing. Corrupted or foreign
// cookie values are treated as no target, not as an error.
func (m *Manager) ConsumeRedirect(w http.ResponseWriter, r *http.Request) (RedirectTarget, bool) {
	cookie, err := r.Cookie(RedirectCookieName)
	if err != nil || cookie.Value == "" {
		return RedirectTarget{}, false
	}

	m.clearRedirect(w)

	raw, err := decodeCookieValue(cookie.Value)
	if err != nil {
		return RedirectTarget{}, false
	}

	var target RedirectTarget
	if err := json.Unmarshal(raw, &target); err != nil {
		return RedirectTarget{}, false
	}
	if target.Path == "" {
		return RedirectTarget{}, false
	}
	return target, true
}

// encodeCookieValue makes the serialized target safe for a cookie value.
func encodeCookieValue(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeCookieValue reverses encodeCookieValue.
func decodeCookieValue(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// clearRedirect expires the redirect cookie.
func (m *Manager) clearRedirect(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RedirectCookieName,
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
