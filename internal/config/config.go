// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Storage backends selectable with BACKEND.
const (
	// BackendMariaDB stores messages in MariaDB and spam tracking in Redis.
	BackendMariaDB = "mariadb"

	// BackendFirestore stores all three collections in Cloud Firestore.
	BackendFirestore = "firestore"

	// BackendMemory keeps everything in process memory. Development only.
	BackendMemory = "memory"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for links on the board page.
	BaseURL string

	// LogLevel overrides the environment's default verbosity: "debug",
	// "info", "warn" or "error". Empty keeps the default.
	LogLevel string

	// Backend selects the storage stack (see Backend* constants).
	Backend string

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Firestore holds Cloud Firestore service account settings.
	Firestore FirestoreConfig

	// SpamGuard holds the rate limit / ban policy.
	SpamGuard SpamGuardConfig

	// Identity holds client identifier derivation settings.
	Identity IdentityConfig

	// HTTP holds cross-cutting HTTP surface settings.
	HTTP HTTPConfig
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so
// container orchestrators can manage each independently.
// If DATABASE_URL is set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "chatboard").
	User string

	// Password is the MariaDB password (default: "chatboard").
	Password string

	// Name is the database name (default: "chatboard").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
// Allows users to set DB_HOST=mydb (gets :3306) or DB_HOST=mydb:3307 (as-is).
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// FirestoreConfig holds the service account fields for Cloud Firestore.
// They are injected as three separate variables the way serverless hosts
// expose them, and assembled into a credentials document by CredentialsJSON.
type FirestoreConfig struct {
	ProjectID   string
	PrivateKey  string
	ClientEmail string
}

// CredentialsJSON builds a service account credentials document from the
// individual fields. Hosting dashboards store the PEM key with literal "\n"
// sequences, which are expanded back into newlines here.
func (f FirestoreConfig) CredentialsJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   f.ProjectID,
		"private_key":  strings.ReplaceAll(f.PrivateKey, `\n`, "\n"),
		"client_email": f.ClientEmail,
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
}

// SpamGuardConfig holds the fixed-window rate limit and ban policy.
type SpamGuardConfig struct {
	// Enabled toggles the whole check. When false every post is admitted.
	Enabled bool

	// MessageLimit is the number of posts that saturates a window. At least 2.
	MessageLimit int

	// Window is the fixed counting window length.
	Window time.Duration

	// BanDuration is how long a client stays banned after saturation.
	BanDuration time.Duration
}

// IdentityConfig controls how client identifiers are derived.
type IdentityConfig struct {
	// Hash stores a one-way digest of the client address instead of the
	// address itself.
	Hash bool

	// HashKey optionally keys the digest so identifiers cannot be
	// brute-forced from the IPv4 space without it.
	HashKey string

	// ExemptHash is a stored identifier that is redacted on messages.
	ExemptHash string

	// TrustedProxies lists CIDRs whose forwarding headers are honoured.
	// Empty means forwarding headers are trusted from any peer.
	TrustedProxies []string
}

// HTTPConfig holds settings for the HTTP surface.
type HTTPConfig struct {
	// AllowedOrigins is the CORS origin list ("*" for any).
	AllowedOrigins []string

	// ThrottleRPS is the per-IP request rate across the whole server.
	// Zero disables the throttle.
	ThrottleRPS float64

	// ThrottleBurst is the per-IP burst allowance for the throttle.
	ThrottleBurst int

	// SanitizeMode is "escape" (default) or "strict".
	SanitizeMode string

	// ErrorDetails includes lower-level error text in 500 responses.
	ErrorDetails bool
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		Backend:  strings.ToLower(getEnv("BACKEND", BackendMariaDB)),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "chatboard"),
			Password:        getEnv("DB_PASSWORD", "chatboard"),
			Name:            getEnv("DB_NAME", "chatboard"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "db/migrations"),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Firestore: FirestoreConfig{
			ProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
			PrivateKey:  getEnv("FIREBASE_PRIVATE_KEY", ""),
			ClientEmail: getEnv("FIREBASE_CLIENT_EMAIL", ""),
		},

		SpamGuard: SpamGuardConfig{
			Enabled:      getEnvBool("SPAM_GUARD_ENABLED", true),
			MessageLimit: getEnvInt("SPAM_MESSAGE_LIMIT", 5),
			Window:       getEnvDuration("SPAM_WINDOW", 60*time.Second),
			BanDuration:  getEnvDuration("SPAM_BAN_DURATION", 5*time.Minute),
		},

		Identity: LoadIdentity(),

		HTTP: HTTPConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
			ThrottleRPS:    getEnvFloat("THROTTLE_RPS", 10),
			ThrottleBurst:  getEnvInt("THROTTLE_BURST", 20),
			SanitizeMode:   strings.ToLower(getEnv("SANITIZE_MODE", "escape")),
			ErrorDetails:   getEnvBool("ERROR_DETAILS", true),
		},
	}

	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadIdentity reads only the identity settings. It does not validate the
// rest of the environment, so tools that just need the digest key can run
// without a complete server configuration.
func LoadIdentity() IdentityConfig {
	return IdentityConfig{
		Hash:           getEnvBool("IDENTITY_HASH", true),
		HashKey:        getEnv("IDENTITY_HASH_KEY", ""),
		ExemptHash:     strings.ToLower(getEnv("IDENTITY_EXEMPT_HASH", "")),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
	}
}

// validate rejects settings the server cannot start with.
func (c *Config) validate() error {
	switch c.Backend {
	case BackendMariaDB, BackendMemory:
	case BackendFirestore:
		if c.Firestore.ProjectID == "" || c.Firestore.PrivateKey == "" || c.Firestore.ClientEmail == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID, FIREBASE_PRIVATE_KEY and FIREBASE_CLIENT_EMAIL are required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown BACKEND %q (want mariadb, firestore or memory)", c.Backend)
	}

	if c.IsProduction() && c.Backend == BackendMemory {
		return fmt.Errorf("BACKEND=memory is not allowed in production")
	}

	// The first post of a window is always admitted, so 1 would act as 2.
	if c.SpamGuard.MessageLimit < 2 {
		return fmt.Errorf("SPAM_MESSAGE_LIMIT must be at least 2")
	}
	if c.SpamGuard.Window <= 0 || c.SpamGuard.BanDuration <= 0 {
		return fmt.Errorf("SPAM_WINDOW and SPAM_BAN_DURATION must be positive")
	}

	for _, cidr := range c.Identity.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", cidr, err)
		}
	}

	switch c.HTTP.SanitizeMode {
	case "escape", "strict":
	default:
		return fmt.Errorf("unknown SANITIZE_MODE %q (want escape or strict)", c.HTTP.SanitizeMode)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true if running in production mode. Case-insensitive
// check catches common variants like "Production" and "prod".
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvFloat reads a float env var or returns the default.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvBool reads a boolean env var ("true", "1", "false", ...) or returns
// the default.
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "5m") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var, dropping empty entries.
func getEnvList(key string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
