package gateway

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/wardenlabs/warden/internal/observability"
	"github.com/wardenlabs/warden/internal/session"
)

const (
	// RequestIDHeader is the header carrying the request ID.
	RequestIDHeader = "X-Request-ID"

	// requestIDKey is the gin context key for the request ID.
	requestIDKey = "requestID"
)

// GetRequestID returns the request ID stored in the context, or "".
func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get(requestIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// requestIDMiddleware assigns each request an ID, reusing one the proxy
// already set.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// recoveryMiddleware converts panics into 500s and logs the stack.
func (g *Gateway) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				g.logger.Error("panic recovered",
					observability.Any("error", err),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("requestID", GetRequestID(c)),
					observability.String("stack", string(debug.Stack())),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// accessLogMiddleware logs each request and records its latency. Health
// probes are skipped to keep the log useful.
func (g *Gateway) accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if path == "/healthz" {
			return
		}

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		GetMetrics().requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(latency.Seconds())

		fields := []observability.Field{
			observability.String("requestID", GetRequestID(c)),
			observability.String("method", c.Request.Method),
			observability.String("path", path),
			observability.Int("status", status),
			observability.Duration("latency", latency),
			observability.String("client", g.extractor().Extract(c.Request)),
		}
		switch {
		case status >= 500:
			g.logger.Error("request", fields...)
		case status >= 400:
			g.logger.Warn("request", fields...)
		default:
			g.logger.Info("request", fields...)
		}
	}
}

// tracingMiddleware opens a span per request and records the verdict
// status code.
func (g *Gateway) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := g.tracer.Start(c.Request.Context(), c.Request.Method+" "+route)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.String("http.method", c.Request.Method),
		)
	}
}

// clientLimiter pairs a token bucket with its last use, for eviction.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// maxClientIdle is how long a client's bucket survives without traffic
// before the eviction loop drops it.
const maxClientIdle = 3 * time.Minute

// clientThrottle holds per-client token buckets with background eviction,
// so the map stays bounded. The eviction loop runs until Stop.
type clientThrottle struct {
	rps   int
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter

	ticker *time.Ticker
	done   chan struct{}
	closed bool
}

// newClientThrottle creates a throttle and starts its eviction loop.
func newClientThrottle(rps, burst int) *clientThrottle {
	if burst <= 0 {
		burst = rps
	}
	t := &clientThrottle{
		rps:     rps,
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		ticker:  time.NewTicker(time.Minute),
		done:    make(chan struct{}),
	}
	go t.evictLoop()
	return t
}

// allow reports whether the client's bucket admits another request.
func (t *clientThrottle) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cl, ok := t.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(t.rps), t.burst)}
		t.clients[ip] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter.Allow()
}

// evictLoop drops idle buckets until Stop is called.
func (t *clientThrottle) evictLoop() {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			t.evict()
		}
	}
}

// evict removes every bucket idle for longer than maxClientIdle.
func (t *clientThrottle) evict() {
	now := time.Now()

	t.mu.Lock()
	for ip, cl := range t.clients {
		if now.Sub(cl.lastSeen) > maxClientIdle {
			delete(t.clients, ip)
		}
	}
	t.mu.Unlock()
}

// Stop ends the eviction loop. Idempotent.
func (t *clientThrottle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	t.ticker.Stop()
	close(t.done)
}

// len returns the number of live buckets. Used by tests.
func (t *clientThrottle) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// throttleMiddleware applies a coarse per-client request budget across the
// whole surface. It is independent of the login attempt limiter, which
// guards credentials specifically. The throttle's eviction loop is owned
// by the gateway and stops with it.
func (g *Gateway) throttleMiddleware(rps, burst int) gin.HandlerFunc {
	t := newClientThrottle(rps, burst)
	g.mu.Lock()
	g.throttles = append(g.throttles, t)
	g.mu.Unlock()

	return func(c *gin.Context) {
		ip := g.extractor().Extract(c.Request)
		if !t.allow(ip) {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}

// RequireAccess is the same-origin variant of the check endpoint: a
// middleware for routes the gateway serves itself. It identifies the
// caller, evaluates the current path against the default rule set, and
// redirects unauthorized browsers to the login page with redirect state
// recorded. Auth and static paths bypass the check so the login flow
// itself stays reachable.
func (g *Gateway) RequireAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/auth/") || strings.HasPrefix(path, "/static/") {
			c.Next()
			return
		}

		username, _ := g.identify(c)
		if g.engine.Evaluate("", path, username) {
			c.Next()
			return
		}

		noCache(c)
		g.sessions.SetRedirect(c.Writer, session.RedirectTarget{Path: path})
		c.Redirect(http.StatusFound, "/auth/login")
		c.Abort()
	}
}
