// Package config loads environment configuration. Both the historical CNR_*
// and the CNR_POSTGRESQL_* naming styles are accepted.
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

// Config holds application configuration.
type Config struct {
	AppName    string
	AppVersion string
	LogLevel   string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// KPI enrichment collaborator. Enrichment is disabled when the base
	// URL is empty.
	KPIBaseURL    string
	KPITimeout    time.Duration
	KPIPrecedence string
	PUEFallback   float64
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:    getenv("APP_SERVICE", "cnr-ingest"),
		AppVersion: getenv("APP_VERSION", "0.1.0"),
		LogLevel:   getenv("LOG_LEVEL", "info"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     firstenv("CNR_POSTGRESQL_HOST", "CNR_HOST"),
		DBPort:     getenvFirst("5432", "CNR_POSTGRESQL_PORT", "CNR_PORT"),
		DBName:     firstenv("CNR_POSTGRESQL_DB", "CNR_GD_DB"),
		DBUser:     firstenv("CNR_POSTGRESQL_USER", "CNR_USER"),
		DBPassword: firstenv("CNR_POSTGRESQL_PASSWORD", "CNR_PASSWORD"),
		DBSSLMode:  getenv("CNR_POSTGRESQL_SSLMODE", "disable"),

		KPIBaseURL:    strings.TrimSpace(getenv("KPI_BASE", "")),
		KPITimeout:    getenvDuration("KPI_TIMEOUT", 30*time.Second),
		KPIPrecedence: strings.ToLower(strings.TrimSpace(getenv("KPI_PRECEDENCE", ""))),
		PUEFallback:   getenvFloat("PUE_DEFAULT", 1.7),
	}
}

// ValidateDB reports the missing database settings. The loader fails fast on
// these instead of hanging against an unreachable store.
func (c Config) ValidateDB() error {
	missing := make([]string, 0, 4)
	for _, item := range []struct{ name, value string }{
		{"host", c.DBHost},
		{"user", c.DBUser},
		{"password", c.DBPassword},
		{"dbname", c.DBName},
	} {
		if strings.TrimSpace(item.value) == "" {
			missing = append(missing, item.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing DB env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateKPI checks the enrichment settings. The precedence between
// partner-supplied and computed carbon values is a deliberate deployment
// choice, so it has no default.
func (c Config) ValidateKPI() error {
	if c.KPIBaseURL == "" {
		return nil
	}
	switch c.KPIPrecedence {
	case "prefer-partner", "prefer-computed":
		return nil
	case "":
		return errors.New("KPI_PRECEDENCE is required when KPI_BASE is set (prefer-partner or prefer-computed)")
	default:
		return fmt.Errorf("invalid KPI_PRECEDENCE %q", c.KPIPrecedence)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstenv(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

func getenvFirst(def string, names ...string) string {
	if v := firstenv(names...); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
