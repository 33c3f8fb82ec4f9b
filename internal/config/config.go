// Package config validates and loads the process environment into a typed
// Config. Validation happens once at bootstrap; the one other environment
// read under internal/ is OTEL_INSECURE_SKIP_VERIFY in internal/telemetry.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration for the conferences
// control plane.
type Config struct {
	// Required variables
	PostgresDSN string
	BusAddr     string
	AgentID     string // this service's own agent id, used for its backend-response subscription topic
	Audience    string // this service's own audience tag
	APIVersion  string // e.g. "v1", used in backend topic names

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	BusPassword string

	// Authorization gate
	AuthzBaseURL string
	AuthzTimeout time.Duration

	// Correlation table
	CorrelationTableCapacity int

	// Vacuum scheduler
	VacuumCron string

	// Ops surface
	MetricsAddr string

	// Tracing
	OtelCollectorAddr string
	OtelEnabled       bool
}

// ValidateEnv validates all required environment variables and returns a
// Config object. Returns an error if any required variable is missing or
// invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	if cfg.PostgresDSN == "" {
		errors = append(errors, "POSTGRES_DSN is required")
	}

	cfg.BusAddr = os.Getenv("BUS_ADDR")
	if cfg.BusAddr == "" {
		errors = append(errors, "BUS_ADDR is required")
	} else if !isValidHostPort(cfg.BusAddr) {
		errors = append(errors, fmt.Sprintf("BUS_ADDR must be in format 'host:port' (got '%s')", cfg.BusAddr))
	}
	cfg.BusPassword = os.Getenv("BUS_PASSWORD")

	cfg.AgentID = os.Getenv("AGENT_ID")
	if cfg.AgentID == "" {
		errors = append(errors, "AGENT_ID is required")
	}

	cfg.Audience = os.Getenv("AUDIENCE")
	if cfg.Audience == "" {
		errors = append(errors, "AUDIENCE is required")
	}

	cfg.APIVersion = getEnvOrDefault("API_VERSION", "v1")

	cfg.AuthzBaseURL = os.Getenv("AUTHZ_BASE_URL")
	if cfg.AuthzBaseURL == "" {
		errors = append(errors, "AUTHZ_BASE_URL is required")
	}
	cfg.AuthzTimeout = durationOrDefault("AUTHZ_TIMEOUT", 5*time.Second)

	cfg.CorrelationTableCapacity = intOrDefault("CORRELATION_TABLE_CAPACITY", 16384)
	if cfg.CorrelationTableCapacity <= 0 {
		errors = append(errors, "CORRELATION_TABLE_CAPACITY must be positive")
	}

	cfg.VacuumCron = getEnvOrDefault("VACUUM_CRON", "*/5 * * * *")

	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9090")

	cfg.OtelCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")
	cfg.OtelEnabled = cfg.OtelCollectorAddr != ""

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port".
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}
	return parts[0] != ""
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"postgres_dsn", redactDSN(cfg.PostgresDSN),
		"bus_addr", cfg.BusAddr,
		"agent_id", cfg.AgentID,
		"audience", cfg.Audience,
		"api_version", cfg.APIVersion,
		"authz_base_url", cfg.AuthzBaseURL,
		"correlation_table_capacity", cfg.CorrelationTableCapacity,
		"vacuum_cron", cfg.VacuumCron,
		"metrics_addr", cfg.MetricsAddr,
		"otel_enabled", cfg.OtelEnabled,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func intOrDefault(key string, defaultValue int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func durationOrDefault(key string, defaultValue time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

// redactDSN hides credentials embedded in a connection string, showing only
// the first 8 characters of the remainder.
func redactDSN(dsn string) string {
	if len(dsn) <= 8 {
		return "***"
	}
	return dsn[:8] + "***"
}
