package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"deployer/internal/retry"

	"github.com/stellar/go/network"
)

type Config struct {
	// Network passphrase, namespaces contract addresses and signatures
	NetworkPassphrase string

	// PostgreSQL connection string ( empty means in-memory ledger )
	DatabaseURL string

	// Port of the HTTP API
	APIPort int

	// debug, info, warn or error
	LogLevel string

	// Seed the factory contract id is derived from ( sha256 of the seed )
	FactorySeed string

	// Requests per second each client may send to the factory POST endpoints ( 0 disables the limit )
	RateLimitRPS   float64
	RateLimitBurst int

	// Retry policy for the database connection
	Retry retry.Config
}

// Load returns the configuration read from environment variables
func Load() *Config {
	defaults := retry.DefaultConfig()

	return &Config{
		NetworkPassphrase: getEnv("NETWORK_PASSPHRASE", network.TestNetworkPassphrase),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		APIPort:           getEnvAsInt("API_PORT", 8080),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		FactorySeed:       getEnv("FACTORY_SEED", "deployer"),
		RateLimitRPS:      getEnvAsFloat("API_RATE_LIMIT_RPS", 20),
		RateLimitBurst:    getEnvAsInt("API_RATE_LIMIT_BURST", 40),
		Retry: retry.Config{
			Enabled:      getEnvAsBool("RETRY_ENABLED", defaults.Enabled),
			MaxRetries:   getEnvAsInt("RETRY_MAX_RETRIES", defaults.MaxRetries),
			InitialDelay: time.Duration(getEnvAsInt("RETRY_INITIAL_DELAY_SEC", int(defaults.InitialDelay/time.Second))) * time.Second,
			MaxDelay:     time.Duration(getEnvAsInt("RETRY_MAX_DELAY_SEC", int(defaults.MaxDelay/time.Second))) * time.Second,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.NetworkPassphrase == "" {
		return fmt.Errorf("NetworkPassphrase is required")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535, got %d", c.APIPort)
	}
	if c.FactorySeed == "" {
		return fmt.Errorf("FactorySeed is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown LogLevel %q", c.LogLevel)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RateLimitRPS cannot be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("RateLimitBurst must be positive when rate limiting is enabled")
	}
	if c.Retry.Enabled && c.Retry.MaxRetries < 0 {
		return fmt.Errorf("Retry.MaxRetries cannot be negative")
	}
	return nil
}

// Helper: get string from env
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Helper: get bool from env
func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

// Helper: get int from env
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

// Helper: get float from env
func getEnvAsFloat(key string, defaultVal float64) float64 {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return defaultVal
	}
	return val
}
