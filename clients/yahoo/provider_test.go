package yahoo

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketdata/domain"
)

// fixtures routes quote/chart/summary requests to canned bodies. Chart
// bodies are keyed by symbol.
type fixtures struct {
	quote   map[string]string
	chart   map[string]string
	summary map[string]string
}

func serveFixtures(t *testing.T, fx fixtures) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/quote"):
			symbol := r.URL.Query().Get("symbols")
			if body, ok := fx.quote[symbol]; ok {
				w.Write([]byte(body))
				return
			}
			w.Write([]byte(`{"quoteResponse": {"result": [], "error": null}}`))
		case strings.HasPrefix(r.URL.Path, "/chart/"):
			symbol := strings.TrimPrefix(r.URL.Path, "/chart/")
			if body, ok := fx.chart[symbol]; ok {
				w.Write([]byte(body))
				return
			}
			w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found"}}}`))
		case strings.HasPrefix(r.URL.Path, "/summary/"):
			symbol := strings.TrimPrefix(r.URL.Path, "/summary/")
			if body, ok := fx.summary[symbol]; ok {
				w.Write([]byte(body))
				return
			}
			w.Write([]byte(`{"quoteSummary": {"result": null, "error": {"code": "Not Found"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testProvider(t *testing.T, fx fixtures) *Provider {
	t.Helper()
	server := serveFixtures(t, fx)

	p := NewProvider(zerolog.Nop())
	p.client.quoteURL = server.URL + "/quote"
	p.client.chartURL = server.URL + "/chart"
	p.client.summaryURL = server.URL + "/summary"
	p.retry.WithSleep(func(time.Duration) {})
	return p
}

// chartBody builds a minimal chart response with the given day timestamps
// and closes. Opens/highs/lows mirror the closes.
func chartBody(dates []time.Time, closes []float64, adjCloses []float64) string {
	var ts, cl, adj []string
	for i := range dates {
		ts = append(ts, fmt.Sprintf("%d", dates[i].Unix()))
		cl = append(cl, fmt.Sprintf("%g", closes[i]))
		adj = append(adj, fmt.Sprintf("%g", adjCloses[i]))
	}
	quote := fmt.Sprintf(`{"open": [%s], "high": [%s], "low": [%s], "close": [%s], "volume": [%s]}`,
		join(cl), join(cl), join(cl), join(cl), join(cl))
	return fmt.Sprintf(`{"chart": {"result": [{
		"timestamp": [%s],
		"indicators": {"quote": [%s], "adjclose": [{"adjclose": [%s]}]}
	}], "error": null}}`, join(ts), quote, join(adj))
}

func join(parts []string) string { return strings.Join(parts, ",") }

const appleQuote = `{"quoteResponse": {"result": [{
	"symbol": "AAPL",
	"longName": "Apple Inc.",
	"shortName": "Apple",
	"currency": "USD",
	"fullExchangeName": "NasdaqGS",
	"regularMarketPrice": 195.5,
	"marketCap": 3000000000000,
	"sector": "Technology",
	"industry": "Consumer Electronics",
	"beta": 1.25,
	"sharesOutstanding": 15400000000,
	"averageDailyVolume3Month": 58000000,
	"dividendYield": 0.0055,
	"shortPercentOfFloat": 0.0072,
	"trailingPE": 30.5,
	"profitMargins": 0.253,
	"totalRevenue": 383000000000
}], "error": null}}`

func TestFetchTickerInfo(t *testing.T) {
	p := testProvider(t, fixtures{quote: map[string]string{"AAPL": appleQuote}})

	info := p.FetchTickerInfo("AAPL")

	assert.Equal(t, 3e12, info.MarketCap)
	assert.Equal(t, "Technology", info.Sector)
	assert.Equal(t, "Consumer Electronics", info.Industry)
	assert.Equal(t, 1.25, info.Beta)
	assert.Equal(t, int64(15400000000), info.SharesOutstanding)
	assert.Equal(t, int64(58000000), info.AvgVolume)
	assert.Equal(t, 0.0055, info.DividendYield)
	assert.Equal(t, 0.0072, info.ShortPctOfFloat)
}

func TestFetchTickerInfoDefaultsOnFailure(t *testing.T) {
	p := testProvider(t, fixtures{})

	info := p.FetchTickerInfo("MISSING")

	assert.Equal(t, domain.DefaultTickerInfo(), info)
}

func TestFetchTickerInfoBetaDefault(t *testing.T) {
	p := testProvider(t, fixtures{quote: map[string]string{
		"KO": `{"quoteResponse": {"result": [{"symbol": "KO", "marketCap": 260000000000}], "error": null}}`,
	}})

	info := p.FetchTickerInfo("KO")

	assert.Equal(t, 1.0, info.Beta, "missing beta defaults to market beta")
	assert.Equal(t, 260e9, info.MarketCap)
}

func TestFetchDailyPrices(t *testing.T) {
	d1 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	p := testProvider(t, fixtures{chart: map[string]string{
		"MSFT": chartBody([]time.Time{d1, d2}, []float64{410, 412}, []float64{409.5, 411.5}),
	}})

	bars, err := p.FetchDailyPrices([]string{"MSFT", "MISSING"}, d1, d2)

	require.NoError(t, err, "per-ticker failures degrade, never fail the batch")
	require.Len(t, bars, 2)
	assert.Equal(t, "MSFT", bars[0].Ticker)
	assert.Equal(t, 410.0, bars[0].Close)
	assert.Equal(t, 409.5, bars[0].AdjClose)
	assert.True(t, bars[0].Date.Before(bars[1].Date))
}

func TestFetchDailyPricesEmptyTickers(t *testing.T) {
	p := testProvider(t, fixtures{})

	bars, err := p.FetchDailyPrices(nil, time.Now().AddDate(0, -1, 0), time.Now())

	require.NoError(t, err)
	require.NotNil(t, bars)
	assert.Empty(t, bars)
}

func TestFetchCurrentPrices(t *testing.T) {
	p := testProvider(t, fixtures{quote: map[string]string{"AAPL": appleQuote}})

	prices, err := p.FetchCurrentPrices([]string{"AAPL", "MISSING"})

	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"AAPL": 195.5}, prices, "falls back to regularMarketPrice, skips failures")
}

func TestFetchRiskFreeRate(t *testing.T) {
	d := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	p := testProvider(t, fixtures{chart: map[string]string{
		"^IRX": chartBody([]time.Time{d}, []float64{5.22}, []float64{5.22}),
	}})

	assert.InDelta(t, 0.0522, p.FetchRiskFreeRate(), 1e-9)
}

func TestFetchRiskFreeRateFallback(t *testing.T) {
	p := testProvider(t, fixtures{})

	assert.Equal(t, domain.FallbackRiskFreeRate, p.FetchRiskFreeRate())
}

func TestChartSkipsNullBars(t *testing.T) {
	d1 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	body := fmt.Sprintf(`{"chart": {"result": [{
		"timestamp": [%d, %d],
		"indicators": {"quote": [{"open": [0, 100], "high": [0, 101], "low": [0, 99], "close": [0, 100.5], "volume": [0, 1000]}]}
	}], "error": null}}`, d1.Unix(), d2.Unix())

	p := testProvider(t, fixtures{chart: map[string]string{"HALT": body}})

	bars, err := p.client.chartRange("HALT", "5d")

	require.NoError(t, err)
	require.Len(t, bars, 1, "all-zero padding rows are dropped")
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 100.5, bars[0].AdjClose, "missing adjclose falls back to close")
}
