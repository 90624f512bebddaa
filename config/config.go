// Package config provides configuration management functionality.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names read by Load. Explicit constructor options
// always win over the environment.
const (
	EnvAlphaVantageKey  = "ALPHAVANTAGE_API_KEY"
	EnvBloombergGateway = "BLOOMBERG_GATEWAY_ADDR"
	EnvBloombergProcess = "BLOOMBERG_PROCESS"
	EnvIBKRGatewayURL   = "IBKR_GATEWAY_URL"
	EnvLogLevel         = "MARKETDATA_LOG_LEVEL"
)

// Defaults for the local gateway endpoints and the terminal process name.
const (
	DefaultBloombergGateway = "localhost:8194"
	DefaultBloombergProcess = "bbcomm"
	DefaultIBKRGatewayURL   = "https://localhost:5000/v1/api"
)

// Config holds provider configuration
type Config struct {
	AlphaVantageAPIKey string
	BloombergGateway   string // host:port of the local terminal gateway
	BloombergProcess   string // terminal process name checked by the probe
	IBKRGatewayURL     string // base URL of the brokerage gateway
	LogLevel           string
}

// Load reads configuration from environment variables. A .env file is
// loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AlphaVantageAPIKey: os.Getenv(EnvAlphaVantageKey),
		BloombergGateway:   getEnv(EnvBloombergGateway, DefaultBloombergGateway),
		BloombergProcess:   getEnv(EnvBloombergProcess, DefaultBloombergProcess),
		IBKRGatewayURL:     getEnv(EnvIBKRGatewayURL, DefaultIBKRGatewayURL),
		LogLevel:           getEnv(EnvLogLevel, "info"),
	}
}

// getEnv retrieves an environment variable value, returning a fallback if
// the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
