package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wardenlabs/warden/internal/config"
	"github.com/wardenlabs/warden/internal/credentials"
	"github.com/wardenlabs/warden/internal/observability"
	"github.com/wardenlabs/warden/internal/policy"
	"github.com/wardenlabs/warden/internal/ratelimit"
	"github.com/wardenlabs/warden/internal/ratelimit/store"
	"github.com/wardenlabs/warden/internal/session"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// ErrNoUsersFile is returned by ReloadUsers when the configuration names
// no users file.
var ErrNoUsersFile = errors.New("no users file configured")

// Gateway wires the credential store, policy engine, limiters, and cookie
// manager into the forward-auth HTTP surface.
type Gateway struct {
	users        *credentials.Store
	engine       *policy.Engine
	sessions     *session.Manager
	loginLimiter ratelimit.Limiter
	checkLimiter ratelimit.Limiter
	renderer     PageRenderer
	logger       observability.Logger
	tracer       *observability.Tracer
	registry     *prometheus.Registry

	mu              sync.RWMutex
	clientIP        *ClientIPExtractor
	forbiddenStatus int
	domain          string
	usersFile       string
	throttles       []*clientThrottle

	limitStore store.Store
}

// Option is a functional option for the gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithRenderer replaces the built-in login page renderer.
func WithRenderer(r PageRenderer) Option {
	return func(g *Gateway) {
		g.renderer = r
	}
}

// WithTracer sets the tracer used to span request handling.
func WithTracer(t *observability.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = t
	}
}

// WithRegistry sets the Prometheus registry that /metrics serves and the
// gateway collectors register with.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(g *Gateway) {
		g.registry = reg
	}
}

// WithUsers injects a pre-built credential store, bypassing the users
// file. Used by tests and by callers that manage persistence themselves.
func WithUsers(users *credentials.Store) Option {
	return func(g *Gateway) {
		g.users = users
	}
}

// New builds a gateway from configuration.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	g := &Gateway{
		logger:   observability.NopLogger(),
		renderer: NewDefaultRenderer(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.users == nil {
		userOpts := []credentials.StoreOption{credentials.WithStoreLogger(g.logger)}
		if cfg.Auth.BcryptCost > 0 {
			userOpts = append(userOpts, credentials.WithBcryptCost(cfg.Auth.BcryptCost))
		}
		if cfg.Auth.UsersFile != "" {
			users, err := credentials.LoadFile(cfg.Auth.UsersFile, userOpts...)
			if err != nil {
				return nil, fmt.Errorf("loading users file: %w", err)
			}
			g.users = users
		} else {
			g.users = credentials.NewStore(userOpts...)
		}
	}

	rules, err := policy.ParseRules(cfg.AccessRules)
	if err != nil {
		return nil, fmt.Errorf("parsing access rules: %w", err)
	}
	g.engine = policy.NewEngine(rules, policy.WithEngineLogger(g.logger))

	g.sessions = session.NewManager(session.Config{
		Domain:     cfg.Cookies.Domain,
		Secure:     cfg.Cookies.Secure,
		SessionTTL: cfg.Cookies.SessionTTL.Duration(),
	})

	if err := g.buildLimiters(cfg); err != nil {
		return nil, err
	}

	g.clientIP = NewClientIPExtractor(cfg.TrustedProxies)
	g.forbiddenStatus = cfg.Auth.ForbiddenStatus
	g.domain = cfg.Cookies.Domain
	g.usersFile = cfg.Auth.UsersFile

	if g.registry != nil {
		GetMetrics().MustRegister(g.registry)
		ratelimit.GetMetrics().MustRegister(g.registry)
	}
	GetMetrics().Init()
	ratelimit.GetMetrics().Init("login", "check")

	return g, nil
}

// buildLimiters creates the rate-limit store and both limiters.
func (g *Gateway) buildLimiters(cfg *config.Config) error {
	var st store.Store
	if cfg.RateLimit.Redis.Enabled {
		rs, err := store.NewRedisStore(context.Background(), store.RedisConfig{
			Address:  cfg.RateLimit.Redis.Address,
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connecting rate-limit redis: %w", err)
		}
		st = rs
	} else {
		st = store.NewMemoryStore()
	}
	g.limitStore = st

	login, err := newLimiter("login", cfg.RateLimit.Login, st, g.logger)
	if err != nil {
		return err
	}
	check, err := newLimiter("check", cfg.RateLimit.Check, st, g.logger)
	if err != nil {
		return err
	}
	g.loginLimiter = login
	g.checkLimiter = check
	return nil
}

// newLimiter maps one limiter config onto a ratelimit.Limiter. An empty
// policy name disables the limiter.
func newLimiter(name string, cfg config.LimiterConfig, st store.Store, logger observability.Logger) (ratelimit.Limiter, error) {
	if cfg.Policy == "" {
		return ratelimit.NewNoopLimiter(), nil
	}
	lim, err := ratelimit.New(ratelimit.Config{
		Name:        name,
		Policy:      ratelimit.Policy(cfg.Policy),
		Delay:       cfg.Delay.Duration(),
		Window:      cfg.Window.Duration(),
		MaxAttempts: cfg.MaxAttempts,
		TTL:         cfg.TTL.Duration(),
	}, st, ratelimit.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("building %s limiter: %w", name, err)
	}
	return lim, nil
}

// ApplyConfig applies a reloaded configuration. Only the parts that are
// safe to swap at runtime change: access rules, forbidden status, trusted
// proxies, and the users file path. Listener and store settings need a
// restart.
func (g *Gateway) ApplyConfig(cfg *config.Config) error {
	rules, err := policy.ParseRules(cfg.AccessRules)
	if err != nil {
		return fmt.Errorf("parsing access rules: %w", err)
	}
	g.engine.Replace(rules)

	g.mu.Lock()
	g.clientIP = NewClientIPExtractor(cfg.TrustedProxies)
	g.forbiddenStatus = cfg.Auth.ForbiddenStatus
	g.usersFile = cfg.Auth.UsersFile
	g.mu.Unlock()

	g.logger.Info("configuration applied",
		observability.Int("access_rules", len(cfg.AccessRules)),
	)
	return nil
}

// ReloadUsers re-reads the users file, replacing the credential table.
func (g *Gateway) ReloadUsers() error {
	g.mu.RLock()
	path := g.usersFile
	g.mu.RUnlock()

	if path == "" {
		return ErrNoUsersFile
	}
	if err := g.users.Reload(path); err != nil {
		return fmt.Errorf("reloading users: %w", err)
	}
	g.logger.Info("user table reloaded", observability.String("path", path))
	return nil
}

// Users exposes the credential store for administrative operations.
func (g *Gateway) Users() *credentials.Store {
	return g.users
}

// extractor returns the current client IP extractor.
func (g *Gateway) extractor() *ClientIPExtractor {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.clientIP
}

// forbidden returns the status for an authenticated caller the rules
// reject.
func (g *Gateway) forbidden() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.forbiddenStatus
}

// Router builds the gin engine with all routes and middleware attached.
func (g *Gateway) Router(throttle config.ThrottleConfig) *gin.Engine {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()
	engine.Use(g.recoveryMiddleware())
	engine.Use(requestIDMiddleware())
	if g.tracer != nil {
		engine.Use(g.tracingMiddleware())
	}
	engine.Use(g.accessLogMiddleware())
	if throttle.RPS > 0 {
		engine.Use(g.throttleMiddleware(throttle.RPS, throttle.Burst))
	}

	engine.GET("/auth/check", g.handleCheck)
	engine.GET("/auth/login", g.handleLoginPage)
	engine.POST("/auth/login", g.handleLogin)
	engine.GET("/auth/logout", g.handleLogout)
	engine.GET("/healthz", g.handleHealthz)

	if g.registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{})))
	}

	return engine
}

// Close stops the throttle eviction loops and releases the rate-limit
// store.
func (g *Gateway) Close() error {
	g.mu.Lock()
	throttles := g.throttles
	g.throttles = nil
	g.mu.Unlock()

	for _, t := range throttles {
		t.Stop()
	}

	if g.limitStore != nil {
		return g.limitStore.Close()
	}
	return nil
}

// Server wraps the gateway in an http.Server with graceful shutdown.
type Server struct {
	gateway    *Gateway
	httpServer *http.Server
	logger     observability.Logger
}

// NewServer builds the HTTP server around a gateway.
func NewServer(g *Gateway, cfg config.ServerConfig, throttle config.ThrottleConfig, logger observability.Logger) *Server {
	return &Server{
		gateway: g,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
			Handler:      g.Router(throttle),
			ReadTimeout:  cfg.ReadTimeout.Duration(),
			WriteTimeout: cfg.WriteTimeout.Duration(),
			IdleTimeout:  cfg.IdleTimeout.Duration(),
		},
		logger: logger,
	}
}

// Start runs the listener until it fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting gateway",
		observability.String("address", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping gateway")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return s.gateway.Close()
}
