package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr   string
	LogLevel     string
	MaxBodyBytes int64

	// Database configuration
	DatabaseURL  string
	EnsureSchema bool

	// Ingestion configuration
	WhaleThresholdSOL decimal.Decimal
	EnvelopePolicy    string
	SelectionPolicy   string
	StrictAddresses   bool

	// Event publishing configuration. Empty values disable a publisher.
	NATSURL        string
	KafkaBrokers   []string
	KafkaTopic     string
	PublishTimeout time.Duration
}

// DefaultEnvFile is read by Load when ENV_FILE is unset.
const DefaultEnvFile = ".env"

// Load reads configuration from environment variables and validates all required fields.
// Variables from an optional .env file are applied first; real environment
// variables always win. Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	var errs []error

	if err := loadEnvFile(getEnvOrDefault("ENV_FILE", DefaultEnvFile)); err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{}

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	maxBody, err := parseInt("MAX_BODY_BYTES", 1<<20)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxBodyBytes = int64(maxBody)
	}

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	ensure, err := parseBool("ENSURE_SCHEMA", true)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.EnsureSchema = ensure
	}

	// Ingestion configuration
	threshold, err := parseDecimal("WHALE_THRESHOLD_SOL", "1000")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.WhaleThresholdSOL = threshold
	}

	cfg.EnvelopePolicy = getEnvOrDefault("ENVELOPE_POLICY", "all")
	cfg.SelectionPolicy = getEnvOrDefault("SELECTION_POLICY", "first")

	strict, err := parseBool("STRICT_ADDRESSES", false)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.StrictAddresses = strict
	}

	// Event publishing configuration
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.KafkaBrokers = parseList("KAFKA_BROKERS")
	cfg.KafkaTopic = getEnvOrDefault("KAFKA_TOPIC", "solhook-records")

	publishTimeout, err := parseDuration("PUBLISH_TIMEOUT", 2*time.Second)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PublishTimeout = publishTimeout
	}

	if err := cfg.validateValues(); err != nil {
		errs = append(errs, err)
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}
	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}
	if err := c.validateValues(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (c *Config) validateValues() error {
	var errs []error

	if !c.WhaleThresholdSOL.IsPositive() {
		errs = append(errs, fmt.Errorf("WHALE_THRESHOLD_SOL must be greater than 0, got %s", c.WhaleThresholdSOL))
	}
	if c.EnvelopePolicy != "all" && c.EnvelopePolicy != "first" {
		errs = append(errs, fmt.Errorf("ENVELOPE_POLICY must be 'all' or 'first', got %q", c.EnvelopePolicy))
	}
	if c.SelectionPolicy != "first" && c.SelectionPolicy != "all" {
		errs = append(errs, fmt.Errorf("SELECTION_POLICY must be 'first' or 'all', got %q", c.SelectionPolicy))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes))
	}
	if c.PublishTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PUBLISH_TIMEOUT must be positive, got %s", c.PublishTimeout))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}

	return errors.Join(errs...)
}

// loadEnvFile applies a dotenv file without overriding variables that are
// already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}

func parseDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnvOrDefault(key, defaultValue)
	result, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q: %w", key, value, err)
	}
	return result, nil
}

func parseDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return result, nil
}

// parseList splits a comma-separated variable, dropping blanks.
func parseList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
