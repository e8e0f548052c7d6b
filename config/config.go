package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/movie-auth-gateway/auth"
)

// DevSigningKey is the local signing key used when JWT_KEY is unset. It is rejected in production.
const DevSigningKey = "dev-only-local-signing-key-change-me-0123456789"

// MinSigningKeyBytes is the minimum HS256 key length accepted
const MinSigningKeyBytes = 32

// Database drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	LocalAuth     LocalAuthConfig
	SSO           SSOConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
	Version       string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds storage configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	Driver           string // memory or postgres
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	Seed             bool
}

// LocalAuthConfig holds the trust material for locally issued tokens
type LocalAuthConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
}

// SSOConfig holds the external identity provider configuration
type SSOConfig struct {
	Enabled       bool
	Authority     string // exact expected issuer, e.g. https://tenant.eu.auth0.com/
	Audience      string
	IssuerDomain  string // routing hint matched against the unverified issuer
	JWKSURL       string // discovered from the authority when empty
	AllowedAlgs   []string
	KeysCacheTTL  time.Duration
	HTTPTimeout   time.Duration
	RetryInterval time.Duration
	ClockSkew     time.Duration
}

// CORSConfig holds cross-origin settings for the browser client
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		LocalAuth: LocalAuthConfig{
			SigningKey: getEnv("JWT_KEY", DevSigningKey),
			Issuer:     getEnv("JWT_ISSUER", "movie-auth-gateway"),
			Audience:   getEnv("JWT_AUDIENCE", "movie-api"),
			TokenTTL:   getEnvAsDuration("JWT_TOKEN_TTL", time.Hour),
		},
		SSO: SSOConfig{
			Enabled:       getEnvAsBool("SSO_ENABLED", true),
			Authority:     getEnv("SSO_AUTHORITY", "https://sudhirthakur.eu.auth0.com/"),
			Audience:      getEnv("SSO_AUDIENCE", "https://moviesystem/api"),
			IssuerDomain:  getEnv("SSO_ISSUER_DOMAIN", "auth0.com"),
			JWKSURL:       getEnv("SSO_JWKS_URL", ""),
			AllowedAlgs:   getEnvAsSlice("SSO_ALLOWED_ALGS", []string{"RS256"}),
			KeysCacheTTL:  getEnvAsDuration("SSO_KEYS_CACHE_TTL", time.Hour),
			HTTPTimeout:   getEnvAsDuration("SSO_HTTP_TIMEOUT", 10*time.Second),
			RetryInterval: getEnvAsDuration("SSO_RETRY_INTERVAL", 30*time.Second),
			ClockSkew:     getEnvAsDuration("SSO_CLOCK_SKEW", 0),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			MaxAge:         getEnvAsInt("CORS_MAX_AGE", 300),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		// DATABASE_URL or DB_* vars
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	default:
		return fmt.Errorf("unsupported database driver %q: use %s or %s", c.Database.Driver, DriverMemory, DriverPostgres)
	}

	// Local token authority
	if len(c.LocalAuth.SigningKey) < MinSigningKeyBytes {
		return fmt.Errorf("JWT_KEY must be at least %d bytes", MinSigningKeyBytes)
	}
	if c.IsProduction() && c.LocalAuth.SigningKey == DevSigningKey {
		return fmt.Errorf("JWT_KEY must be set in production")
	}
	if c.LocalAuth.Issuer == "" {
		return fmt.Errorf("JWT issuer is required")
	}
	if c.LocalAuth.Audience == "" {
		return fmt.Errorf("JWT audience is required")
	}
	if c.LocalAuth.TokenTTL <= 0 {
		return fmt.Errorf("JWT token TTL must be positive")
	}

	// Remote token authority
	if c.SSO.Enabled {
		u, err := url.Parse(c.SSO.Authority)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("SSO authority must be an absolute http(s) URL")
		}
		if c.SSO.Audience == "" {
			return fmt.Errorf("SSO audience is required")
		}
		if c.SSO.IssuerDomain == "" {
			return fmt.Errorf("SSO issuer domain is required")
		}
		// Tokens are routed by a substring match on the issuer, so the two issuers must
		// land on their own authorities.
		if !strings.Contains(c.SSO.Authority, c.SSO.IssuerDomain) {
			return fmt.Errorf("SSO authority %q does not contain issuer domain %q", c.SSO.Authority, c.SSO.IssuerDomain)
		}
		if strings.Contains(c.LocalAuth.Issuer, c.SSO.IssuerDomain) {
			return fmt.Errorf("JWT issuer %q must not contain SSO issuer domain %q", c.LocalAuth.Issuer, c.SSO.IssuerDomain)
		}
		if len(c.SSO.AllowedAlgs) == 0 {
			return fmt.Errorf("at least one SSO signing algorithm is required")
		}
		for _, alg := range c.SSO.AllowedAlgs {
			if strings.HasPrefix(alg, "HS") || alg == "none" {
				return fmt.Errorf("SSO signing algorithm %q is not allowed", alg)
			}
		}
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	if c.Observability.LogFormat != "json" && c.Observability.LogFormat != "console" {
		return fmt.Errorf("log format must be json or console")
	}

	return nil
}

// TrustConfiguration builds the trust material shared by both token authorities
func (c *Config) TrustConfiguration() auth.TrustConfiguration {
	ssoDomain := ""
	if c.SSO.Enabled {
		ssoDomain = c.SSO.IssuerDomain
	}
	return auth.NewTrustConfiguration(
		[]byte(c.LocalAuth.SigningKey),
		c.LocalAuth.Issuer,
		c.LocalAuth.Audience,
		c.LocalAuth.TokenTTL,
		c.SSO.Authority,
		c.SSO.Audience,
		ssoDomain,
	)
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// The driver defaults to postgres when DATABASE_URL is set and to memory otherwise.
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", DriverPostgres),
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Seed:             getEnvAsBool("DB_SEED", true),
		}
	}
	return DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", DriverMemory),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", "movies_password"),
		Database:        getEnv("DB_NAME", "movies"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		Seed:            getEnvAsBool("DB_SEED", true),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice splits a comma-separated value, dropping empty entries
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
