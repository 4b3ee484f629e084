package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Port       string
	JwtSecret  string
	Storage    string
	DbURL      string
	BcryptCost int
	LogLevel   string
	LogFormat  string
}

// Load reads the configuration from a .env file or environment variables and returns a Config struct.
// It returns an error if any required variable is missing.
func Load() (*Config, error) {
	// Try to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getenv("PORT", "8080"),
		JwtSecret: os.Getenv("JWT_SECRET"),
		Storage:   strings.ToLower(getenv("STORAGE", StorageMemory)),
		DbURL:     os.Getenv("DATABASE_URL"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),
	}

	cost, err := strconv.Atoi(getenv("BCRYPT_COST", strconv.Itoa(bcrypt.DefaultCost)))
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("var", "BCRYPT_COST").Wrapf(err, "parse bcrypt cost")
	}
	cfg.BcryptCost = cost

	return cfg, nil
}

// Validate checks the settings that Load leaves to flag overrides.
func (c *Config) Validate() error {
	if c.JwtSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("missing required environment variable JWT_SECRET")
	}
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DbURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL is required when STORAGE=%s", StoragePostgres)
		}
	default:
		return oops.Code("CONFIG_INVALID").With("storage", c.Storage).
			Errorf("unknown storage backend %q", c.Storage)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return oops.Code("CONFIG_INVALID").
			Errorf("bcrypt cost %d out of range [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q: %w", c.Port, err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
