package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"GATE_TOKEN_TTL", "GATE_TOKEN_PARAM", "GATE_SESSION_COOKIE", "GATE_SESSION_DRIVER",
		"GATE_REDIS_PREFIX", "GATE_KEY_FILE", "PORT", "HOUSEKEEPING_INTERVAL", "GATE_SESSION_MAX_AGE",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	require.Equal(t, 600*time.Second, cfg.TokenTTL)
	require.Equal(t, "wdb_token", cfg.TokenParam)
	require.Equal(t, "PHPSESSID", cfg.SessionCookie)
	require.Equal(t, SessionDriverLocal, cfg.SessionDriver)
	require.Equal(t, "PHPREDIS_SESSION:", cfg.RedisPrefix)
	require.Equal(t, "private.key", cfg.KeyFile)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
	require.Zero(t, cfg.SessionMaxAge, "session pruning is opt-in")
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("GATE_TOKEN_TTL", "90")
	t.Setenv("GATE_TOKEN_PARAM", "iiif_t")
	t.Setenv("GATE_SESSION_DRIVER", "MySQL")
	t.Setenv("GATE_SESSION_DSN", "user:pw@tcp(db:3306)/host")
	t.Setenv("GATE_REDIS_DB", "3")
	t.Setenv("HOUSEKEEPING_INTERVAL", "15")

	cfg := LoadConfig()
	require.Equal(t, 90*time.Second, cfg.TokenTTL)
	require.Equal(t, "iiif_t", cfg.TokenParam)
	require.Equal(t, SessionDriverMySQL, cfg.SessionDriver)
	require.Equal(t, 3, cfg.RedisDB)
	require.Equal(t, 15*time.Minute, cfg.HousekeepingInterval)
	require.Zero(t, cfg.SessionMaxAge)
	require.NoError(t, cfg.Validate())
}

func TestGetEnvSecondsOrDefault(t *testing.T) {
	t.Setenv("TEST_TTL", "10m")
	require.Equal(t, 10*time.Minute, getEnvSecondsOrDefault("TEST_TTL", time.Second))

	t.Setenv("TEST_TTL", "soon")
	require.Equal(t, time.Second, getEnvSecondsOrDefault("TEST_TTL", time.Second))
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := Config{TokenTTL: time.Minute, KeyFile: "k", SessionDriver: SessionDriverLocal, Port: 8080}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short ttl", func(c *Config) { c.TokenTTL = 0 }, "GATE_TOKEN_TTL"},
		{"no key", func(c *Config) { c.KeyFile = "" }, "GATE_PRIVATE_KEY"},
		{"unknown driver", func(c *Config) { c.SessionDriver = "oracle" }, "unsupported GATE_SESSION_DRIVER"},
		{"driver without dsn", func(c *Config) { c.SessionDriver = SessionDriverPostgres }, "GATE_SESSION_DSN"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"unknown derivation", func(c *Config) { c.SecretDerivation = "md5" }, "GATE_SECRET_DERIVATION"},
		{"pruning host sessions", func(c *Config) {
			c.SessionDriver = SessionDriverMySQL
			c.SessionDSN = "dsn"
			c.SessionMaxAge = time.Hour
		}, "GATE_SESSION_MAX_AGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}
