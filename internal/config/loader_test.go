package config

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  address: "0.0.0.0"
  port: 9090
log:
  level: debug
  format: console
cookies:
  domain: nginx.lan
  secure: true
  session_ttl: 12h
auth:
  users_file: /etc/warden/users.yaml
  forbidden_status: 401
ratelimit:
  login:
    policy: attempt_counted
    window: 30s
    max_attempts: 3
  check:
    policy: fixed_delay
    delay: 250ms
trusted_proxies:
  - 10.0.0.0/8
  - 192.168.1.1
access_rules:
  "/": ["*"]
  "/admin": ["alice"]
  "incus@/": ["desktop"]
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "nginx.lan", cfg.Cookies.Domain)
	assert.Equal(t, 12*time.Hour, cfg.Cookies.SessionTTL.Duration())
	assert.Equal(t, http.StatusUnauthorized, cfg.Auth.ForbiddenStatus)
	assert.Equal(t, int64(3), cfg.RateLimit.Login.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RateLimit.Check.Delay.Duration())
	assert.Len(t, cfg.AccessRules, 3)
	assert.Equal(t, []string{"desktop"}, cfg.AccessRules["incus@/"])
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader("access_rules:\n  \"/\": [\"*\"]\n"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Address)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Cookies.Secure)
	assert.Equal(t, 24*time.Hour, cfg.Cookies.SessionTTL.Duration())
	assert.Equal(t, http.StatusForbidden, cfg.Auth.ForbiddenStatus)
	assert.Equal(t, "attempt_counted", cfg.RateLimit.Login.Policy)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "warden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("server: [not a map"))
	assert.Error(t, err)
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("WARDEN_TEST_DOMAIN", "example.org")

	cfg, err := LoadFromReader(strings.NewReader(`
cookies:
  domain: ${WARDEN_TEST_DOMAIN}
auth:
  users_file: ${WARDEN_TEST_USERS:-/tmp/users.yaml}
access_rules:
  "/": ["*"]
`))
	require.NoError(t, err)

	assert.Equal(t, "example.org", cfg.Cookies.Domain)
	assert.Equal(t, "/tmp/users.yaml", cfg.Auth.UsersFile, "unset variable falls back to default")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(cfg *Config) { cfg.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "bad forbidden status",
			mutate:  func(cfg *Config) { cfg.Auth.ForbiddenStatus = 500 },
			wantErr: "auth.forbidden_status",
		},
		{
			name: "attempt counted without window",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Login = LimiterConfig{Policy: "attempt_counted", MaxAttempts: 5}
			},
			wantErr: "ratelimit.login.window",
		},
		{
			name: "attempt counted window exceeds ttl",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Login = LimiterConfig{
					Policy:      "attempt_counted",
					Window:      Duration(5 * time.Minute),
					MaxAttempts: 5,
					TTL:         Duration(time.Second),
				}
			},
			wantErr: "ratelimit.login.ttl",
		},
		{
			name: "unknown policy",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Check = LimiterConfig{Policy: "leaky_bucket"}
			},
			wantErr: "ratelimit.check.policy",
		},
		{
			name: "redis enabled without address",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Redis.Enabled = true
			},
			wantErr: "ratelimit.redis.address",
		},
		{
			name: "bad trusted proxy",
			mutate: func(cfg *Config) {
				cfg.TrustedProxies = []string{"not-an-ip"}
			},
			wantErr: "trusted_proxies",
		},
		{
			name: "rule pattern without slash",
			mutate: func(cfg *Config) {
				cfg.AccessRules = map[string][]string{"incus@admin": {"*"}}
			},
			wantErr: "access_rules",
		},
		{
			name: "rule with no principals",
			mutate: func(cfg *Config) {
				cfg.AccessRules = map[string][]string{"/": {}}
			},
			wantErr: "access_rules",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
