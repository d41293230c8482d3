package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/rentledger/pkg/database"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	CORSAllowedOrigins []string

	Database database.Config

	// RedisURL is optional; without it the Daraja token is cached in process.
	RedisURL string

	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	Daraja Daraja

	KafkaBrokers []string
	KafkaTopic   string

	ReminderInterval time.Duration

	// TracingEndpoint is the OTLP/HTTP collector; empty disables tracing.
	TracingEndpoint string

	RateLimitPerMinute    int
	STKRateLimitPerMinute int
	// TrustedProxies are the networks allowed to set X-Forwarded-For.
	TrustedProxies []*net.IPNet
}

// Daraja holds the M-Pesa Daraja settings.
type Daraja struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	OAuthTimeout   time.Duration
	STKTimeout     time.Duration
}

// Enabled reports whether enough is configured to talk to Daraja.
func (d Daraja) Enabled() bool {
	return d.BaseURL != "" && d.ConsumerKey != "" && d.ConsumerSecret != ""
}

// Load reads configuration from environment variables. A .env file in the
// working directory, if present, seeds variables that are not already set.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*Config, error) {
	var errs []error
	intVar := func(key, def string) int {
		v, err := strconv.Atoi(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	durVar := func(key, def string) time.Duration {
		v, err := time.ParseDuration(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  intVar("SERVER_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),

		Database: database.Config{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            intVar("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "rentledger"),
			Password:        getEnv("DB_PASSWORD", "dev"),
			Database:        getEnv("DB_NAME", "rentledger"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			SQLitePath:      getEnv("DB_SQLITE_PATH", "rentledger.db"),
			MaxOpenConns:    intVar("DB_MAX_OPEN_CONNS", "25"),
			MaxIdleConns:    intVar("DB_MAX_IDLE_CONNS", "5"),
			ConnMaxLifetime: durVar("DB_CONN_MAX_LIFETIME", "5m"),
			LogQueries:      getEnv("DB_LOG_QUERIES", "false") == "true",
		},

		RedisURL: os.Getenv("REDIS_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTIssuer: getEnv("JWT_ISSUER", "rentledger"),
		JWTTTL:    durVar("JWT_TTL", "24h"),

		Daraja: Daraja{
			BaseURL:        getEnv("DARAJA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    os.Getenv("DARAJA_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("DARAJA_CONSUMER_SECRET"),
			ShortCode:      getEnv("DARAJA_LNM_SHORTCODE", "174379"),
			PassKey:        os.Getenv("DARAJA_LNM_PASSKEY"),
			CallbackURL:    os.Getenv("DARAJA_CALLBACK_URL"),
			OAuthTimeout:   durVar("DARAJA_OAUTH_TIMEOUT", "20s"),
			STKTimeout:     durVar("DARAJA_STK_TIMEOUT", "30s"),
		},

		KafkaBrokers: parseCSVEnv("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "rentledger.events"),

		ReminderInterval: durVar("REMINDER_INTERVAL", "24h"),

		TracingEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		RateLimitPerMinute:    intVar("RATE_LIMIT_PER_MINUTE", "100"),
		STKRateLimitPerMinute: intVar("STK_RATE_LIMIT_PER_MINUTE", "5"),
	}

	proxies, err := parseNetworks(parseCSVEnv("TRUSTED_PROXIES", nil))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err))
	}
	cfg.TrustedProxies = proxies

	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("invalid DB_DRIVER %q: want postgres or sqlite", cfg.Database.Driver))
	}
	if cfg.JWTSecret == "" {
		if cfg.Environment == "production" {
			errs = append(errs, errors.New("JWT_SECRET must be set in production"))
		}
		cfg.JWTSecret = "dev-secret-change-me"
	}
	if cfg.ReminderInterval <= 0 {
		errs = append(errs, errors.New("REMINDER_INTERVAL must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseNetworks accepts CIDRs and bare addresses.
func parseNetworks(values []string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, v := range values {
		if !strings.Contains(v, "/") {
			ip := net.ParseIP(v)
			if ip == nil {
				return nil, fmt.Errorf("%q is not an IP address", v)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
