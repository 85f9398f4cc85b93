package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/wardenlabs/warden/internal/observability"
	"github.com/wardenlabs/warden/internal/ratelimit/store"
)

// DefaultTTL is the eviction horizon for rate-limit entries. Entries older
// than this are dropped regardless of outcome.
const DefaultTTL = 60 * time.Second

// Policy selects the limiting algorithm.
type Policy string

const (
	// PolicyFixedDelay rejects a key until Delay has elapsed since its
	// last attempt.
	PolicyFixedDelay Policy = "fixed_delay"

	// PolicyAttemptCounted admits at most MaxAttempts attempts per
	// Window.
	PolicyAttemptCounted Policy = "attempt_counted"
)

// ErrUnknownPolicy is returned by New for an unrecognized policy name.
var ErrUnknownPolicy = errors.New("unknown rate-limit policy")

// Limiter is the admission gate for authentication attempts.
type Limiter interface {
	// Allow reports whether an attempt for the given key is admitted.
	// Store failures fail closed.
	Allow(ctx context.Context, key string) bool

	// Clear drops the state for the given key, lifting any throttle
	// immediately.
	Clear(ctx context.Context, key string)
}

// Config holds configuration for creating a limiter.
type Config struct {
	// Name labels the limiter in metrics and namespaces its store keys.
	Name string

	// Policy is the limiting algorithm.
	Policy Policy

	// Delay is the minimum interval between attempts (fixed-delay).
	Delay time.Duration

	// Window is the counting window (attempt-counted).
	Window time.Duration

	// MaxAttempts is the number of admitted attempts per window
	// (attempt-counted).
	MaxAttempts int64

	// TTL is the store eviction horizon. Zero means DefaultTTL.
	TTL time.Duration
}

// Option is a functional option for limiters.
type Option func(*base)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// base carries the pieces shared by both policies.
type base struct {
	name   string
	store  store.Store
	ttl    time.Duration
	logger observability.Logger
}

// New creates a limiter for the given configuration. A zero Delay
// (fixed-delay) or zero MaxAttempts (attempt-counted) yields a limiter
// that admits everything, matching a disabled configuration.
func New(cfg Config, st store.Store, opts ...Option) (Limiter, error) {
	b := base{
		name:   cfg.Name,
		store:  st,
		ttl:    cfg.TTL,
		logger: observability.NopLogger(),
	}
	if b.ttl <= 0 {
		b.ttl = DefaultTTL
	}
	for _, opt := range opts {
		opt(&b)
	}

	switch cfg.Policy {
	case PolicyFixedDelay:
		if cfg.Delay <= 0 {
			return NewNoopLimiter(), nil
		}
		return &FixedDelayLimiter{base: b, delay: cfg.Delay}, nil
	case PolicyAttemptCounted:
		if cfg.MaxAttempts <= 0 {
			return NewNoopLimiter(), nil
		}
		// An entry evicted mid-window would reset the count early, so
		// the eviction horizon always covers the window.
		if b.ttl < cfg.Window {
			b.ttl = cfg.Window
		}
		return &AttemptLimiter{base: b, window: cfg.Window, max: cfg.MaxAttempts}, nil
	default:
		return nil, ErrUnknownPolicy
	}
}

// key namespaces a caller key by limiter name so limiters can share one
// store.
func (b *base) key(key string) string {
	return b.name + ":" + key
}

// load fetches the entry for a key. The error has already been logged;
// callers treat it as a deny.
func (b *base) load(ctx context.Context, key string) (store.Attempt, bool, error) {
	attempt, ok, err := b.store.Get(ctx, b.key(key))
	if err != nil {
		b.logger.Error("rate-limit store read failed",
			observability.String("limiter", b.name),
			observability.Error(err),
		)
	}
	return attempt, ok, err
}

// save writes the entry for a key. Write failures are logged and ignored;
// the admission verdict has already been made.
func (b *base) save(ctx context.Context, key string, attempt store.Attempt) {
	if err := b.store.Set(ctx, b.key(key), attempt, b.ttl); err != nil {
		b.logger.Error("rate-limit store write failed",
			observability.String("limiter", b.name),
			observability.Error(err),
		)
	}
}

// clear drops the entry for a key.
func (b *base) clear(ctx context.Context, key string) {
	if err := b.store.Delete(ctx, b.key(key)); err != nil {
		b.logger.Error("rate-limit store delete failed",
			observability.String("limiter", b.name),
			observability.Error(err),
		)
	}
}

// FixedDelayLimiter rejects a key until the configured delay has elapsed
// since its last attempt. Every attempt, admitted or not, restarts the
// delay.
type FixedDelayLimiter struct {
	base
	delay time.Duration
}

// Allow implements Limiter.
func (l *FixedDelayLimiter) Allow(ctx context.Context, key string) bool {
	now := time.Now()

	entry, ok, err := l.load(ctx, key)
	if err != nil {
		GetMetrics().decisionsTotal.WithLabelValues(l.name, verdictError).Inc()
		return false
	}

	allowed := !ok || now.Sub(entry.Last) >= l.delay
	l.save(ctx, key, store.Attempt{Last: now})

	GetMetrics().decisionsTotal.WithLabelValues(l.name, verdict(allowed)).Inc()
	return allowed
}

// Clear implements Limiter.
func (l *FixedDelayLimiter) Clear(ctx context.Context, key string) {
	l.base.clear(ctx, key)
}

// AttemptLimiter admits at most max attempts per window. The counter
// resets once the window has elapsed since the last attempt, or on Clear.
type AttemptLimiter struct {
	base
	window time.Duration
	max    int64
}

// Allow implements Limiter.
func (l *AttemptLimiter) Allow(ctx context.Context, key string) bool {
	now := time.Now()

	entry, ok, err := l.load(ctx, key)
	if err != nil {
		GetMetrics().decisionsTotal.WithLabelValues(l.name, verdictError).Inc()
		return false
	}

	var count int64 = 1
	if ok && now.Sub(entry.Last) < l.window {
		count = entry.Count + 1
	}

	allowed := count <= l.max
	l.save(ctx, key, store.Attempt{Last: now, Count: count})

	GetMetrics().decisionsTotal.WithLabelValues(l.name, verdict(allowed)).Inc()
	return allowed
}

// Clear implements Limiter.
func (l *AttemptLimiter) Clear(ctx context.Context, key string) {
	l.base.clear(ctx, key)
}

// NoopLimiter admits every attempt.
type NoopLimiter struct{}

// NewNoopLimiter creates a limiter that never throttles.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(ctx context.Context, key string) bool {
	return true
}

// Clear implements Limiter.
func (l *NoopLimiter) Clear(ctx context.Context, key string) {}
