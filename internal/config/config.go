package config

import (
	"net/http"
	"time"
)

// Config is the root gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Cookies   CookieConfig    `yaml:"cookies"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Throttle  ThrottleConfig  `yaml:"throttle"`

	// TrustedProxies lists CIDRs whose X-Forwarded-For is honored.
	TrustedProxies []string `yaml:"trusted_proxies"`

	// AccessRules maps "pattern" or "subdomain@pattern" keys to the
	// principals allowed there.
	AccessRules map[string][]string `yaml:"access_rules"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address      string   `yaml:"address"`
	Port         int      `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// CookieConfig holds the attributes of the cookies the gateway issues.
type CookieConfig struct {
	// Domain scopes the cookies and is also the suffix used to build
	// fully qualified subdomain URLs after login.
	Domain     string   `yaml:"domain"`
	Secure     bool     `yaml:"secure"`
	SessionTTL Duration `yaml:"session_ttl"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// UsersFile is the path to the persisted user table.
	UsersFile string `yaml:"users_file"`

	// ForbiddenStatus is the check-endpoint status for an
	// authenticated caller the rules reject: 401 or 403. Anonymous
	// denials always answer 401.
	ForbiddenStatus int `yaml:"forbidden_status"`

	// BcryptCost overrides the bcrypt cost for new verifiers. Zero
	// means the library default.
	BcryptCost int `yaml:"bcrypt_cost"`
}

// RateLimitConfig holds the login and check limiter settings plus the
// optional shared Redis store.
type RateLimitConfig struct {
	Login LimiterConfig    `yaml:"login"`
	Check LimiterConfig    `yaml:"check"`
	Redis RedisStoreConfig `yaml:"redis"`
}

// LimiterConfig configures one limiter.
type LimiterConfig struct {
	// Policy is "fixed_delay" or "attempt_counted". Empty disables the
	// limiter.
	Policy      string   `yaml:"policy"`
	Delay       Duration `yaml:"delay"`
	Window      Duration `yaml:"window"`
	MaxAttempts int64    `yaml:"max_attempts"`
	TTL         Duration `yaml:"ttl"`
}

// RedisStoreConfig configures the optional Redis rate-limit store.
type RedisStoreConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ThrottleConfig is the coarse gateway-wide request throttle, distinct
// from the login attempt limiter. Zero RPS disables it.
type ThrottleConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      "127.0.0.1",
			Port:         8080,
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
			IdleTimeout:  Duration(120 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Tracing: TracingConfig{
			SamplingRate: 1.0,
		},
		Cookies: CookieConfig{
			Secure:     true,
			SessionTTL: Duration(24 * time.Hour),
		},
		Auth: AuthConfig{
			ForbiddenStatus: http.StatusForbidden,
		},
		RateLimit: RateLimitConfig{
			Login: LimiterConfig{
				Policy:      "attempt_counted",
				Window:      Duration(time.Minute),
				MaxAttempts: 5,
			},
		},
		AccessRules: map[string][]string{},
	}
}
