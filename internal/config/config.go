package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration values.
type Config struct {
	DatabaseDriver string
	DatabaseDSN    string
	HTTPPort       string
	LogLevel       string
	LogFormat      string
	CORSOrigins    []string
	SeedFile       string

	ForecastDays int
	StockHigh    int64
	StockMedium  int64

	// Warnings collects values that were invalid and replaced by defaults.
	Warnings []string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	cfg := Config{
		DatabaseDriver: getenv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		HTTPPort:       getenv("HTTP_PORT", "8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "json"),
		SeedFile:       os.Getenv("SEED_FILE"),
	}

	if cfg.DatabaseDSN == "" {
		if cfg.DatabaseDriver == "postgres" {
			cfg.DatabaseDSN = postgresDSN()
		} else {
			cfg.DatabaseDSN = "blood_bank.db"
		}
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid HTTP_PORT value %q, defaulting to 8080", cfg.HTTPPort))
		cfg.HTTPPort = "8080"
	}

	cfg.ForecastDays = int(cfg.positiveInt("FORECAST_DAYS", 30))
	cfg.StockHigh = cfg.positiveInt("STOCK_HIGH", 10)
	cfg.StockMedium = cfg.positiveInt("STOCK_MEDIUM", 5)
	if cfg.StockMedium > cfg.StockHigh {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("STOCK_MEDIUM %d exceeds STOCK_HIGH %d, using defaults", cfg.StockMedium, cfg.StockHigh))
		cfg.StockHigh, cfg.StockMedium = 10, 5
	}

	cfg.CORSOrigins = []string{"*"}
	if raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); raw != "" {
		var origins []string
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) > 0 {
			cfg.CORSOrigins = origins
		}
	}

	return cfg
}

func postgresDSN() string {
	host := getenv("DB_HOST", "localhost")
	user := getenv("DB_USER", "postgres")
	port := getenv("DB_PORT", "5432")
	name := getenv("DB_NAME", "bloodbank")
	password := os.Getenv("DB_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
}

func (c *Config) positiveInt(key string, def int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s value %q, defaulting to %d", key, raw, def))
		return def
	}
	return v
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
