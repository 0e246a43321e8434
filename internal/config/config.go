// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/blotter/internal/curve"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for data files, always absolute
	Port             int
	LogLevel         string
	DevMode          bool
	TickInterval     time.Duration // cadence of the simulation loop
	DriftVolatility  float64       // stddev of per-tick parameter perturbation
	BucketDrift      bool          // use the partial-bucket drift variant
	PositionsFile    string        // CSV with the bond portfolio
	SODResetSchedule string        // cron spec for the scheduled SOD reset, empty disables
	Curve            curve.Parameters
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("BLOTTER_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8000),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		TickInterval:     time.Duration(getEnvAsInt("TICK_INTERVAL_MS", 500)) * time.Millisecond,
		DriftVolatility:  getEnvAsFloat("DRIFT_VOLATILITY", 0.0002),
		BucketDrift:      getEnvAsBool("BUCKET_DRIFT", false),
		PositionsFile:    getEnv("POSITIONS_FILE", filepath.Join(absDataDir, "positions.csv")),
		SODResetSchedule: getEnv("SOD_RESET_SCHEDULE", ""),
		Curve: curve.Parameters{
			Beta0:  getEnvAsFloat("CURVE_BETA0", 0.055),
			Beta1:  getEnvAsFloat("CURVE_BETA1", -0.015),
			Beta2:  getEnvAsFloat("CURVE_BETA2", 0.008),
			Lambda: getEnvAsFloat("CURVE_LAMBDA", 0.6),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.DriftVolatility < 0 {
		return fmt.Errorf("drift volatility must be non-negative, got %g", c.DriftVolatility)
	}
	if c.Curve.Lambda <= 0 {
		return fmt.Errorf("curve decay parameter must be positive, got %g", c.Curve.Lambda)
	}
	return nil
}

// Helper functions
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
