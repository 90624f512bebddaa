package factory

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketdata/clients/alphavantage"
	"github.com/aristath/marketdata/clients/bloomberg"
	"github.com/aristath/marketdata/clients/ibkr"
	"github.com/aristath/marketdata/config"
	"github.com/aristath/marketdata/domain"
)

// testConfig points the gateway providers at dead endpoints so construction
// fails fast and deterministically.
func testConfig() *config.Config {
	return &config.Config{
		BloombergGateway: "127.0.0.1:1",
		BloombergProcess: "no-such-process-zzz",
		IBKRGatewayURL:   "https://127.0.0.1:1/v1/api",
	}
}

func noProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvAlphaVantageKey, "")
	t.Setenv(config.EnvBloombergGateway, "127.0.0.1:1")
	t.Setenv(config.EnvBloombergProcess, "no-such-process-zzz")
	t.Setenv(config.EnvIBKRGatewayURL, "https://127.0.0.1:1/v1/api")
}

func TestAvailableDefaultOnly(t *testing.T) {
	noProviderEnv(t)
	f := New(testConfig(), zerolog.Nop())

	assert.Equal(t, []string{DefaultProvider}, f.Available())
}

func TestAvailableWithAPIKey(t *testing.T) {
	noProviderEnv(t)
	t.Setenv(config.EnvAlphaVantageKey, "some-key")
	f := New(testConfig(), zerolog.Nop())

	assert.Equal(t, []string{DefaultProvider, alphavantage.DisplayName}, f.Available(),
		"registry order preserved")
}

func TestGetCachesSingleton(t *testing.T) {
	f := New(testConfig(), zerolog.Nop())

	first, err := f.Get(DefaultProvider)
	require.NoError(t, err)
	second, err := f.Get(DefaultProvider)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestClearCacheDropsInstances(t *testing.T) {
	f := New(testConfig(), zerolog.Nop())

	first, err := f.Get(DefaultProvider)
	require.NoError(t, err)

	f.ClearCache()

	second, err := f.Get(DefaultProvider)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestGetWithOptionsBypassesCache(t *testing.T) {
	f := New(testConfig(), zerolog.Nop())

	cached, err := f.Get(DefaultProvider)
	require.NoError(t, err)

	custom, err := f.Get(DefaultProvider, WithHTTPClient(&http.Client{}))
	require.NoError(t, err)
	assert.NotSame(t, cached, custom, "options build a fresh instance")

	again, err := f.Get(DefaultProvider)
	require.NoError(t, err)
	assert.Same(t, cached, again, "the customized instance is never cached")
}

func TestGetUnknownProvider(t *testing.T) {
	noProviderEnv(t)
	f := New(testConfig(), zerolog.Nop())

	_, err := f.Get("Quandl")

	var unknown domain.ErrUnknownProvider
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, `unknown provider "Quandl", available: [Yahoo Finance]`, err.Error())
}

func TestGetPropagatesConstructionError(t *testing.T) {
	noProviderEnv(t)
	f := New(testConfig(), zerolog.Nop())

	_, err := f.Get(alphavantage.DisplayName)

	var cfgErr domain.ConfigError
	require.ErrorAs(t, err, &cfgErr, "construction errors pass through unmodified")
}

func TestGetWithAPIKeyOption(t *testing.T) {
	noProviderEnv(t)
	f := New(testConfig(), zerolog.Nop())

	p, err := f.Get(alphavantage.DisplayName, WithAPIKey("opt-key"))

	require.NoError(t, err, "an explicit key substitutes for configuration")
	assert.Equal(t, alphavantage.DisplayName, p.Name())
}

func TestGetSafeFallsBackToDefault(t *testing.T) {
	noProviderEnv(t)
	f := New(testConfig(), zerolog.Nop())

	p, err := f.GetSafe(alphavantage.DisplayName)
	require.NoError(t, err)
	assert.Equal(t, DefaultProvider, p.Name())

	p, err = f.GetSafe(bloomberg.DisplayName)
	require.NoError(t, err)
	assert.Equal(t, DefaultProvider, p.Name())

	p, err = f.GetSafe(ibkr.DisplayName)
	require.NoError(t, err)
	assert.Equal(t, DefaultProvider, p.Name())

	p, err = f.GetSafe("No Such Provider")
	require.NoError(t, err)
	assert.Equal(t, DefaultProvider, p.Name())
}

func TestGetSafeReturnsRequestedWhenHealthy(t *testing.T) {
	noProviderEnv(t)
	t.Setenv(config.EnvAlphaVantageKey, "some-key")
	cfg := testConfig()
	cfg.AlphaVantageAPIKey = "some-key"
	f := New(cfg, zerolog.Nop())

	p, err := f.GetSafe(alphavantage.DisplayName)

	require.NoError(t, err)
	assert.Equal(t, alphavantage.DisplayName, p.Name())
}
