package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App      AppSettings
	HTTP     HTTPSettings
	Auth     AuthSettings
	Log      LogSettings
	Database DatabaseSettings
	Gateway  GatewaySettings
	Odex     OdexSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type HTTPSettings struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ForwardTimeout  time.Duration // Extended timeout for routes that dispatch a carrier call
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type AuthSettings struct {
	Enabled     bool
	IssuerURI   string
	JWKSetURI   string
	ClockSkew   time.Duration
	BypassPaths []string
}

type LogSettings struct {
	Level string
}

type DatabaseSettings struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// GatewaySettings controls how much of each request/response pair is
// captured into structured logs alongside the durable api_logs rows.
type GatewaySettings struct {
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodySize     int
	DefaultPageSize int
	MaxPageSize     int
}

// OdexSettings configures the outbound carrier client.
type OdexSettings struct {
	BaseURL                 string
	APITimeout              time.Duration // Fixed timeout on outbound ODeX calls
	BreakerMaxFailures      int
	BreakerFailureThreshold float64
	BreakerCooldown         time.Duration
	TokenTTL                time.Duration // How long a carrier session token is reused before re-authenticating
}

// Load resolves the application configuration from environment variables.
// It first attempts to load variables from a .env file if it exists.
// Environment variables set in the system take precedence over .env file values.
func Load() (AppConfig, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	// This allows the application to work both with .env files (local dev)
	// and environment variables (Docker, production)
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "ms_odex_gateway"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Environment: getEnv("APP_ENV", "local"),
		},
		HTTP: HTTPSettings{
			Port:            getEnvAsInt("APP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			ForwardTimeout:  getEnvAsDuration("HTTP_FORWARD_TIMEOUT", 45*time.Second),
			IdleTimeout:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthSettings{
			Enabled:     getEnvAsBool("AUTH_ENABLED", false),
			IssuerURI:   strings.TrimSpace(os.Getenv("JWT_ISSUER_URI")),
			JWKSetURI:   strings.TrimSpace(os.Getenv("JWT_JWK_SET_URI")),
			ClockSkew:   getEnvAsDuration("AUTH_CLOCK_SKEW", 2*time.Minute),
			BypassPaths: getEnvAsCSV("AUTH_BYPASS_PATHS", []string{"/health", "/metrics"}),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseSettings{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "ms_odex_gateway"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Gateway: GatewaySettings{
			LogRequestBody:  getEnvAsBool("GATEWAY_LOG_REQUEST_BODY", true),
			LogResponseBody: getEnvAsBool("GATEWAY_LOG_RESPONSE_BODY", true),
			MaxBodySize:     getEnvAsInt("GATEWAY_MAX_BODY_SIZE", 102400),
			DefaultPageSize: getEnvAsInt("GATEWAY_DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:     getEnvAsInt("GATEWAY_MAX_PAGE_SIZE", 100),
		},
		Odex: OdexSettings{
			BaseURL:                 strings.TrimSpace(os.Getenv("ODEX_BASE_URL")),
			APITimeout:              getEnvAsDuration("ODEX_API_TIMEOUT", 30*time.Second),
			BreakerMaxFailures:      getEnvAsInt("ODEX_BREAKER_MAX_FAILURES", 10),
			BreakerFailureThreshold: getEnvAsFloat("ODEX_BREAKER_FAILURE_THRESHOLD", 0.5),
			BreakerCooldown:         getEnvAsDuration("ODEX_BREAKER_COOLDOWN", 30*time.Second),
			TokenTTL:                getEnvAsDuration("ODEX_TOKEN_TTL", 55*time.Minute),
		},
	}

	if cfg.Odex.APITimeout <= 0 {
		return cfg, errors.New("invalid config: ODEX_API_TIMEOUT must be greater than 0")
	}
	if cfg.Gateway.MaxBodySize <= 0 {
		return cfg, errors.New("invalid config: GATEWAY_MAX_BODY_SIZE must be greater than 0")
	}
	if cfg.Gateway.DefaultPageSize <= 0 || cfg.Gateway.MaxPageSize < cfg.Gateway.DefaultPageSize {
		return cfg, errors.New("invalid config: GATEWAY_MAX_PAGE_SIZE must be >= GATEWAY_DEFAULT_PAGE_SIZE > 0")
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURI == "" {
			return cfg, errors.New("invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true")
		}
		if cfg.Auth.JWKSetURI == "" {
			return cfg, errors.New("invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true")
		}
	}

	return cfg, nil
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsCSV(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
