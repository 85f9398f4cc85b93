package gateway

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wardenlabs/warden/internal/observability"
	"github.com/wardenlabs/warden/internal/session"
)

// Forward-auth request and response headers.
const (
	HeaderSubdomain         = "X-Subdomain"
	HeaderOriginalURI       = "X-Original-URI"
	HeaderAuthenticatedUser = "X-Authenticated-User"
)

// Messages shown on the login page. Unknown user and wrong password share
// one message so the form does not leak which usernames exist.
const (
	msgBadCredentials = "Invalid username or password."
	msgThrottled      = "Too many attempts. Try again later."
	msgForbidden      = "You are signed in, but not allowed to access that page."
)

// noCache marks a response as identity dependent so intermediaries never
// reuse it across sessions.
func noCache(c *gin.Context) {
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Vary", "Cookie")
}

// requestPath extracts the path portion of a forwarded URI, dropping any
// query string.
func requestPath(uri string) string {
	if uri == "" {
		return "/"
	}
	if idx := strings.IndexByte(uri, '?'); idx >= 0 {
		uri = uri[:idx]
	}
	if uri == "" {
		return "/"
	}
	return uri
}

// identify resolves the session cookie to a username. A missing, empty, or
// unknown token means anonymous.
func (g *Gateway) identify(c *gin.Context) (string, bool) {
	token := g.sessions.SessionToken(c.Request)
	if token == "" {
		return "", false
	}
	return g.users.ResolveSessionToken(token)
}

// handleCheck is the forward-auth decision endpoint the proxy subrequests
// against. It never serves content, only a verdict.
func (g *Gateway) handleCheck(c *gin.Context) {
	noCache(c)

	subdomain := c.GetHeader(HeaderSubdomain)
	if subdomain == "" {
		GetMetrics().checkDecisionsTotal.WithLabelValues(outcomeBadInput).Inc()
		c.String(http.StatusBadRequest, "missing %s header", HeaderSubdomain)
		return
	}
	path := requestPath(c.GetHeader(HeaderOriginalURI))

	username, authenticated := g.identify(c)

	if g.engine.Evaluate(subdomain, path, username) {
		GetMetrics().checkDecisionsTotal.WithLabelValues(outcomeAllowed).Inc()
		if authenticated {
			c.Header(HeaderAuthenticatedUser, username)
		}
		c.Status(http.StatusOK)
		return
	}

	// Denials are where credential probing shows up, so the check limiter
	// gates only this branch.
	ip := g.extractor().Extract(c.Request)
	if !g.checkLimiter.Allow(c.Request.Context(), ip) {
		GetMetrics().checkDecisionsTotal.WithLabelValues(outcomeThrottled).Inc()
		c.Status(http.StatusTooManyRequests)
		return
	}

	GetMetrics().checkDecisionsTotal.WithLabelValues(outcomeDenied).Inc()
	g.sessions.SetRedirect(c.Writer, session.RedirectTarget{
		Subdomain: subdomain,
		Path:      path,
	})
	if authenticated {
		g.logger.Info("access denied",
			observability.String("user", username),
			observability.String("subdomain", subdomain),
			observability.String("path", path),
		)
		c.Status(g.forbidden())
		return
	}
	c.Status(http.StatusUnauthorized)
}

// handleLoginPage renders the login form.
func (g *Gateway) handleLoginPage(c *gin.Context) {
	noCache(c)

	var data LoginPageData
	if username, ok := g.identify(c); ok {
		data.WelcomeMessage = "Signed in as " + username + "."
	}
	g.renderLogin(c, http.StatusOK, data)
}

// handleLogin verifies the submitted credentials and establishes the
// session.
func (g *Gateway) handleLogin(c *gin.Context) {
	noCache(c)

	ip := g.extractor().Extract(c.Request)
	if !g.loginLimiter.Allow(c.Request.Context(), ip) {
		GetMetrics().loginAttemptsTotal.WithLabelValues(loginThrottled).Inc()
		g.logger.Warn("login throttled", observability.String("client", ip))
		g.renderLogin(c, http.StatusTooManyRequests, LoginPageData{ErrorMessage: msgThrottled})
		return
	}

	username := c.PostForm("username")
	password := c.PostForm("password")

	if !g.users.Verify(username, password) {
		GetMetrics().loginAttemptsTotal.WithLabelValues(loginFailure).Inc()
		g.logger.Info("login failed", observability.String("client", ip))
		g.renderLogin(c, http.StatusUnauthorized, LoginPageData{ErrorMessage: msgBadCredentials})
		return
	}

	g.loginLimiter.Clear(c.Request.Context(), ip)

	token, err := g.users.IssueSessionToken(username)
	if err != nil {
		g.logger.Error("issuing session token",
			observability.String("user", username),
			observability.Error(err),
		)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	g.sessions.SetSession(c.Writer, token)

	GetMetrics().loginAttemptsTotal.WithLabelValues(loginSuccess).Inc()
	g.logger.Info("login succeeded",
		observability.String("user", username),
		observability.String("client", ip),
	)

	target, ok := g.sessions.ConsumeRedirect(c.Writer, c.Request)
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}

	// The target was recorded before authentication; the fresh identity
	// may still not be allowed there.
	if !g.engine.Evaluate(target.Subdomain, target.Path, username) {
		g.renderLogin(c, g.forbidden(), LoginPageData{ErrorMessage: msgForbidden})
		return
	}
	c.Redirect(http.StatusFound, g.targetURL(target))
}

// targetURL reconstructs the post-login redirect location. Cross-subdomain
// targets need a fully qualified URL; without a configured domain only the
// path is usable.
func (g *Gateway) targetURL(target session.RedirectTarget) string {
	g.mu.RLock()
	domain := g.domain
	g.mu.RUnlock()

	if target.Subdomain == "" || domain == "" {
		return target.Path
	}
	return SubdomainURL(domain, target.Subdomain, target.Path)
}

// handleLogout clears the session cookie. The server-side verifier stays;
// the token simply stops arriving.
func (g *Gateway) handleLogout(c *gin.Context) {
	noCache(c)

	if username, ok := g.identify(c); ok {
		g.logger.Info("logout", observability.String("user", username))
	}
	g.sessions.ClearSession(c.Writer)
	c.Redirect(http.StatusFound, "/auth/login")
}

// handleHealthz is the liveness probe.
func (g *Gateway) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// renderLogin writes the login page through the configured renderer.
func (g *Gateway) renderLogin(c *gin.Context, status int, data LoginPageData) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := g.renderer.LoginPage(c.Writer, data); err != nil {
		g.logger.Error("rendering login page", observability.Error(err))
	}
}
