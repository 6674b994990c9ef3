package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wdb/iiifgate/internal/gate/session"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
)

// Session table drivers accepted in GATE_SESSION_DRIVER. An empty value
// reads sessions from the gate's own database.
const (
	SessionDriverLocal    = "local"
	SessionDriverMySQL    = session.DriverMySQL
	SessionDriverPostgres = session.DriverPostgres
)

type Config struct {
	TokenTTL    time.Duration // Token lifetime (default: 600s)
	TokenParam  string        // Query parameter carrying tokens (default: wdb_token)
	RefreshPath string        // Refresh URL pattern returned to viewers (default: /wdb/api/iiif_token/{page})

	KeyFile    string // Path to private key material, generated when missing (default: ./private.key)
	PrivateKey string // Optional: inline key material, takes precedence over KeyFile
	HashSalt   string // Site-wide salt mixed into the signing secret

	// SecretDerivation is "site" (default, shared with the host) or "hkdf".
	SecretDerivation string

	SessionCookie string // Canonical session cookie name (default: PHPSESSID)
	RedisAddr     string // Optional: host:port of the Redis session handler
	RedisPassword string // Optional
	RedisDB       int    // Optional (default: 0)
	RedisPrefix   string // Session key prefix (default: PHPREDIS_SESSION:)
	SessionDriver string // Raw session table driver: local, mysql, pgx (default: local)
	SessionDSN    string // DSN for the mysql or pgx session table

	DatabaseFile string // Path to SQLite database file (default: ./gate.db)
	SeedFile     string // Optional: HCL file upserted at startup

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Session cleanup interval (default: 1h)
	SessionMaxAge        time.Duration // Optional: prune local sessions older than this (default: off)
}

func LoadConfig() Config {
	return Config{
		TokenTTL:    getEnvSecondsOrDefault("GATE_TOKEN_TTL", iiiftoken.DefaultTTL),
		TokenParam:  getEnvOrDefault("GATE_TOKEN_PARAM", iiiftoken.DefaultParam),
		RefreshPath: os.Getenv("GATE_REFRESH_PATH"),

		KeyFile:    getEnvOrDefault("GATE_KEY_FILE", "private.key"),
		PrivateKey: os.Getenv("GATE_PRIVATE_KEY"),
		HashSalt:   os.Getenv("GATE_HASH_SALT"),

		SecretDerivation: strings.ToLower(os.Getenv("GATE_SECRET_DERIVATION")),

		SessionCookie: getEnvOrDefault("GATE_SESSION_COOKIE", session.DefaultCookieName),
		RedisAddr:     os.Getenv("GATE_REDIS_ADDR"),
		RedisPassword: os.Getenv("GATE_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("GATE_REDIS_DB", 0),
		RedisPrefix:   getEnvOrDefault("GATE_REDIS_PREFIX", session.DefaultRedisPrefix),
		SessionDriver: strings.ToLower(getEnvOrDefault("GATE_SESSION_DRIVER", SessionDriverLocal)),
		SessionDSN:    os.Getenv("GATE_SESSION_DSN"),

		DatabaseFile: getEnvOrDefault("GATE_DATABASE_FILE", "gate.db"),
		SeedFile:     os.Getenv("GATE_SEED_FILE"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
		SessionMaxAge:        getEnvDurationOrDefault("GATE_SESSION_MAX_AGE", 0),
	}
}

// Validate reports configuration the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.TokenTTL < time.Second {
		errs = append(errs, fmt.Errorf("GATE_TOKEN_TTL must be at least 1s, got %s", c.TokenTTL))
	}
	if c.PrivateKey == "" && c.KeyFile == "" {
		errs = append(errs, errors.New("one of GATE_PRIVATE_KEY or GATE_KEY_FILE is required"))
	}
	if _, err := iiiftoken.ParseDerivation(c.SecretDerivation); err != nil {
		errs = append(errs, fmt.Errorf("GATE_SECRET_DERIVATION: %w", err))
	}

	switch c.SessionDriver {
	case "", SessionDriverLocal:
	case SessionDriverMySQL, SessionDriverPostgres:
		if c.SessionDSN == "" {
			errs = append(errs, fmt.Errorf("GATE_SESSION_DSN is required for session driver %q", c.SessionDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported GATE_SESSION_DRIVER %q", c.SessionDriver))
	}

	if c.SessionMaxAge > 0 && !c.ownsSessions() {
		errs = append(errs, fmt.Errorf("GATE_SESSION_MAX_AGE only applies to the local session table, not %q", c.SessionDriver))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}

	return errors.Join(errs...)
}

// ownsSessions reports whether sessions are read from the gate's own
// database rather than the host application's.
func (c Config) ownsSessions() bool {
	return c.SessionDriver == "" || c.SessionDriver == SessionDriverLocal
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// getEnvSecondsOrDefault is getEnvDurationOrDefault with bare integers read
// as seconds, matching how token lifetimes are usually written.
func getEnvSecondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
