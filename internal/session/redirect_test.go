package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip replays the cookies a recorder set onto a fresh request, the
// way a browser would on the next request.
func roundTrip(rec *httptest.ResponseRecorder, path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return req
}

func TestRedirectRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{})

	rec := httptest.NewRecorder()
	m.SetRedirect(rec, RedirectTarget{Subdomain: "forgejo", Path: "/repo/issues"})

	c := findCookie(t, rec, RedirectCookieName)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Zero(t, c.MaxAge, "redirect cookie lives for the browser session")

	req := roundTrip(rec, "/auth/login")
	rec2 := httptest.NewRecorder()

	target, ok := m.ConsumeRedirect(rec2, req)
	require.True(t, ok)
	assert.Equal(t, "forgejo", target.Subdomain)
	assert.Equal(t, "/repo/issues", target.Path)

	// Consume clears the cookie, so the next request carries none.
	cleared := findCookie(t, rec2, RedirectCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	req2 := roundTrip(rec2, "/auth/login")
	rec3 := httptest.NewRecorder()
	_, ok = m.ConsumeRedirect(rec3, req2)
	assert.False(t, ok, "redirect state is single-use")
}

func TestConsumeRedirectNoSubdomain(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{})

	rec := httptest.NewRecorder()
	m.SetRedirect(rec, RedirectTarget{Path: "/dashboard"})

	target, ok := m.ConsumeRedirect(httptest.NewRecorder(), roundTrip(rec, "/"))
	require.True(t, ok)
	assert.Empty(t, target.Subdomain)
	assert.Equal(t, "/dashboard", target.Path)
}

func TestConsumeRedirectMissingCookie(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := m.ConsumeRedirect(httptest.NewRecorder(), req)
	assert.False(t, ok)
}

func TestConsumeRedirectGarbledValue(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{})

	tests := []struct {
		name  string
		value string
	}{
		{"not base64", "%%%"},
		{"not json", "bm90LWpzb24"},
		{"empty path", "e30"}, // {}
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: RedirectCookieName, Value: tt.value})

			_, ok := m.ConsumeRedirect(httptest.NewRecorder(), req)
			assert.False(t, ok, "garbled cookie degrades to no redirect target")
		})
	}
}
