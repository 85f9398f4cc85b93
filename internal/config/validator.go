package config

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validate checks a configuration for errors. It returns nil or a
// ValidationErrors value listing every problem found.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	addErr := func(path, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		addErr("server.port", "must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	switch cfg.Auth.ForbiddenStatus {
	case http.StatusUnauthorized, http.StatusForbidden:
	default:
		addErr("auth.forbidden_status", "must be 401 or 403, got %d", cfg.Auth.ForbiddenStatus)
	}

	validateLimiter(addErr, "ratelimit.login", cfg.RateLimit.Login)
	validateLimiter(addErr, "ratelimit.check", cfg.RateLimit.Check)

	if cfg.RateLimit.Redis.Enabled && cfg.RateLimit.Redis.Address == "" {
		addErr("ratelimit.redis.address", "required when redis is enabled")
	}

	if cfg.Throttle.RPS < 0 {
		addErr("throttle.rps", "must not be negative, got %d", cfg.Throttle.RPS)
	}

	for _, proxy := range cfg.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			if net.ParseIP(proxy) == nil {
				addErr("trusted_proxies", "invalid CIDR or IP %q", proxy)
			}
		}
	}

	for key, principals := range cfg.AccessRules {
		pattern := key
		if idx := strings.Index(key, "@"); idx >= 0 {
			pattern = key[idx+1:]
		}
		if pattern == "" || !strings.HasPrefix(pattern, "/") {
			addErr("access_rules", "pattern in key %q must start with '/'", key)
		}
		if len(principals) == 0 {
			addErr("access_rules", "key %q grants access to nobody; remove it instead", key)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateLimiter checks one limiter block.
func validateLimiter(addErr func(path, format string, args ...interface{}), path string, cfg LimiterConfig) {
	switch cfg.Policy {
	case "", "fixed_delay", "attempt_counted":
	default:
		addErr(path+".policy", "must be fixed_delay or attempt_counted, got %q", cfg.Policy)
	}
	if cfg.Policy == "attempt_counted" && cfg.MaxAttempts > 0 && cfg.Window.Duration() <= 0 {
		addErr(path+".window", "required for attempt_counted policy")
	}
	if cfg.MaxAttempts < 0 {
		addErr(path+".max_attempts", "must not be negative, got %d", cfg.MaxAttempts)
	}
	if cfg.Policy == "attempt_counted" && cfg.TTL.Duration() > 0 && cfg.Window.Duration() > cfg.TTL.Duration() {
		addErr(path+".ttl", "must cover the window; entries evicted mid-window weaken the attempt budget")
	}
}
