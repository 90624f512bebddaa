package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvAlphaVantageKey, "")
	t.Setenv(EnvBloombergGateway, "")
	t.Setenv(EnvBloombergProcess, "")
	t.Setenv(EnvIBKRGatewayURL, "")
	t.Setenv(EnvLogLevel, "")

	cfg := Load()

	assert.Empty(t, cfg.AlphaVantageAPIKey)
	assert.Equal(t, DefaultBloombergGateway, cfg.BloombergGateway)
	assert.Equal(t, DefaultBloombergProcess, cfg.BloombergProcess)
	assert.Equal(t, DefaultIBKRGatewayURL, cfg.IBKRGatewayURL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv(EnvAlphaVantageKey, "abc123")
	t.Setenv(EnvBloombergGateway, "10.0.0.5:8194")
	t.Setenv(EnvIBKRGatewayURL, "https://10.0.0.6:5000/v1/api")
	t.Setenv(EnvLogLevel, "debug")

	cfg := Load()

	assert.Equal(t, "abc123", cfg.AlphaVantageAPIKey)
	assert.Equal(t, "10.0.0.5:8194", cfg.BloombergGateway)
	assert.Equal(t, "https://10.0.0.6:5000/v1/api", cfg.IBKRGatewayURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}
