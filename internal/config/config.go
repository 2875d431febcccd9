// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aimquant/aim/internal/domain"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for the database (always absolute)
	DatabaseName     string
	UniverseFile     string // Optional YAML universe definition
	LogLevel         string
	LogPretty        bool
	DefaultStrategy  domain.Strategy
	DefaultPositions int
	RiskTolerance    domain.RiskTolerance
	Schedule         string // Cron expression (with seconds) for the daily pipeline
	MetricsAddr      string // Empty disables the metrics listener
	FeatureWorkers   int
}

// Load reads configuration from environment variables (and .env if present)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if it doesn't)
	_ = godotenv.Load()

	dataDir := getEnv("AIM_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory %s: %w", dataDir, err)
	}

	strategy, err := domain.ParseStrategy(getEnv("AIM_DEFAULT_STRATEGY", string(domain.StrategyScoreWeighted)))
	if err != nil {
		return nil, fmt.Errorf("invalid AIM_DEFAULT_STRATEGY: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		DatabaseName:     getEnv("AIM_DATABASE_NAME", "aim"),
		UniverseFile:     getEnv("AIM_UNIVERSE_FILE", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvAsBool("LOG_PRETTY", false),
		DefaultStrategy:  strategy,
		DefaultPositions: getEnvAsInt("AIM_DEFAULT_POSITIONS", 10),
		RiskTolerance:    domain.ParseRiskTolerance(getEnv("AIM_RISK_TOLERANCE", string(domain.ToleranceModerate))),
		Schedule:         getEnv("AIM_SCHEDULE", "0 0 19 * * MON-FRI"),
		MetricsAddr:      getEnv("AIM_METRICS_ADDR", ""),
		FeatureWorkers:   getEnvAsInt("AIM_FEATURE_WORKERS", 8),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DatabasePath returns the SQLite file path inside the data directory
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, c.DatabaseName+".db")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.DatabaseName == "" {
		return fmt.Errorf("database name is required")
	}
	if c.DefaultPositions < 1 {
		return fmt.Errorf("default positions must be at least 1, got %d", c.DefaultPositions)
	}
	if c.FeatureWorkers < 1 {
		return fmt.Errorf("feature workers must be at least 1, got %d", c.FeatureWorkers)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
