package alphavantage

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketdata/config"
	"github.com/aristath/marketdata/domain"
)

// fixtureServer routes requests by the function query parameter.
func fixtureServer(t *testing.T, fixtures map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := fixtures[r.URL.Query().Get("function")]
		if !ok {
			w.Write([]byte(`{"Error Message": "unexpected function"}`))
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func testProvider(t *testing.T, fixtures map[string]string) *Provider {
	t.Helper()
	p, err := NewProvider("test-key", zerolog.Nop())
	require.NoError(t, err)
	p.client.baseURL = fixtureServer(t, fixtures).URL
	p.client.retry.WithSleep(func(time.Duration) {})
	return p
}

const dailyFixture = `{
	"Time Series (Daily)": {
		"2025-06-03": {"1. open": "101.0", "2. high": "103.0", "3. low": "100.5", "4. close": "102.0", "5. adjusted close": "101.8", "6. volume": "1200"},
		"2025-06-02": {"1. open": "100.0", "2. high": "101.5", "3. low": "99.0", "4. close": "101.0", "5. adjusted close": "100.8", "6. volume": "1000"},
		"2020-01-02": {"1. open": "50.0", "2. high": "51.0", "3. low": "49.0", "4. close": "50.5", "5. adjusted close": "48.0", "6. volume": "5000"}
	}
}`

const overviewFixture = `{
	"Name": "International Business Machines",
	"Sector": "TECHNOLOGY",
	"Industry": "COMPUTER & OFFICE EQUIPMENT",
	"MarketCapitalization": "245000000000",
	"Beta": "0.7",
	"SharesOutstanding": "920000000",
	"DividendYield": "0.0254",
	"ShortPercentFloat": "2.5",
	"Currency": "USD",
	"Exchange": "NYSE",
	"Country": "USA",
	"FullTimeEmployees": "282200",
	"TrailingPE": "24.5",
	"ForwardPE": "19.1",
	"ProfitMargin": "0.135",
	"ReturnOnEquityTTM": "0.35",
	"Description": "IBM is a technology company."
}`

func TestResolveKey(t *testing.T) {
	t.Setenv(config.EnvAlphaVantageKey, "")

	_, err := NewProvider("", zerolog.Nop())
	var cfgErr domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, DisplayName, cfgErr.Provider)

	t.Setenv(config.EnvAlphaVantageKey, "env-key")
	p, err := NewProvider("", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "env-key", p.client.apiKey)

	p, err = NewProvider("explicit-key", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "explicit-key", p.client.apiKey, "explicit key wins over environment")
}

func TestIsAvailable(t *testing.T) {
	t.Setenv(config.EnvAlphaVantageKey, "")
	assert.False(t, IsAvailable())

	t.Setenv(config.EnvAlphaVantageKey, "some-key")
	assert.True(t, IsAvailable())
}

func TestFetchDailyPrices(t *testing.T) {
	p := testProvider(t, map[string]string{"TIME_SERIES_DAILY_ADJUSTED": dailyFixture})

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	bars, err := p.FetchDailyPrices([]string{"IBM"}, start, end)

	require.NoError(t, err)
	require.Len(t, bars, 2, "the 2020 bar falls outside the window")
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 100.8, bars[0].AdjClose)
	assert.Equal(t, "IBM", bars[0].Ticker)
	assert.True(t, bars[0].Date.Before(bars[1].Date))
}

func TestFetchDailyPricesEmptyTickers(t *testing.T) {
	p := testProvider(t, nil)

	bars, err := p.FetchDailyPrices(nil, time.Now().AddDate(0, -1, 0), time.Now())

	require.NoError(t, err)
	require.NotNil(t, bars)
	assert.Empty(t, bars)
}

func TestFetchDailyPricesDegradesPerTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "BAD" {
			w.Write([]byte(`{"Error Message": "Invalid API call"}`))
			return
		}
		w.Write([]byte(dailyFixture))
	}))
	t.Cleanup(server.Close)

	p, err := NewProvider("test-key", zerolog.Nop())
	require.NoError(t, err)
	p.client.baseURL = server.URL
	p.client.retry.WithSleep(func(time.Duration) {})

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	bars, err := p.FetchDailyPrices([]string{"BAD", "IBM"}, start, end)

	require.NoError(t, err, "one bad ticker degrades, never fails the batch")
	assert.Len(t, bars, 2)
}

func TestFetchTickerInfo(t *testing.T) {
	p := testProvider(t, map[string]string{"OVERVIEW": overviewFixture})

	info := p.FetchTickerInfo("IBM")

	assert.Equal(t, 245e9, info.MarketCap)
	assert.Equal(t, "TECHNOLOGY", info.Sector)
	assert.Equal(t, 0.7, info.Beta)
	assert.Equal(t, int64(920000000), info.SharesOutstanding)
	assert.Equal(t, 0.0254, info.DividendYield)
	assert.Equal(t, 0.025, info.ShortPctOfFloat, "percent rescaled to fraction")
}

func TestFetchTickerInfoDefaultsOnFailure(t *testing.T) {
	p := testProvider(t, nil) // every function answers with an error

	info := p.FetchTickerInfo("IBM")

	assert.Equal(t, domain.DefaultTickerInfo(), info)
}

func TestFetchCurrentPrices(t *testing.T) {
	p := testProvider(t, map[string]string{
		"GLOBAL_QUOTE": `{"Global Quote": {"01. symbol": "IBM", "05. price": "243.55"}}`,
	})

	prices, err := p.FetchCurrentPrices([]string{"IBM"})

	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"IBM": 243.55}, prices)
}

func TestFetchCurrentPricesSkipsFailures(t *testing.T) {
	p := testProvider(t, nil)

	prices, err := p.FetchCurrentPrices([]string{"IBM"})

	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestFetchRiskFreeRate(t *testing.T) {
	p := testProvider(t, map[string]string{
		"TREASURY_YIELD": `{"data": [{"date": "2025-06-12", "value": "5.0"}]}`,
	})

	assert.Equal(t, 0.05, p.FetchRiskFreeRate())
}

func TestFetchRiskFreeRateFallback(t *testing.T) {
	p := testProvider(t, nil)

	assert.Equal(t, domain.FallbackRiskFreeRate, p.FetchRiskFreeRate())
}
