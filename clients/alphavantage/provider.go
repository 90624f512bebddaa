package alphavantage

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketdata/config"
	"github.com/aristath/marketdata/domain"
)

// DisplayName is the registry name of this provider.
const DisplayName = "Alpha Vantage"

// IsAvailable reports whether the adapter can be constructed right now:
// true iff an API key is present in the environment.
func IsAvailable() bool {
	return os.Getenv(config.EnvAlphaVantageKey) != ""
}

// resolveKey applies the credential rule shared by both adapters: an
// explicit key wins, otherwise the environment, otherwise a ConfigError.
func resolveKey(apiKey string) (string, error) {
	if apiKey == "" {
		apiKey = os.Getenv(config.EnvAlphaVantageKey)
	}
	if apiKey == "" {
		return "", domain.ConfigError{
			Provider: DisplayName,
			Reason: "API key required: set " + config.EnvAlphaVantageKey +
				" or pass an explicit key",
		}
	}
	return apiKey, nil
}

// Provider implements domain.DataProvider against Alpha Vantage.
// One ticker per request: per-ticker failures degrade the batch.
type Provider struct {
	client *Client
	log    zerolog.Logger
}

// NewProvider creates the tabular Alpha Vantage provider. Construction
// fails with a ConfigError when no API key can be resolved.
func NewProvider(apiKey string, log zerolog.Logger) (*Provider, error) {
	key, err := resolveKey(apiKey)
	if err != nil {
		return nil, err
	}
	return &Provider{
		client: NewClient(key, log),
		log:    log.With().Str("provider", "alphavantage").Logger(),
	}, nil
}

// SetHTTPClient replaces the transport. Used by factory options and tests.
func (p *Provider) SetHTTPClient(hc *http.Client) { p.client.SetHTTPClient(hc) }

// Name implements domain.DataProvider
func (p *Provider) Name() string { return DisplayName }

// SupportsBidAsk implements domain.DataProvider. Alpha Vantage has no
// bid/ask feed: same mid-price fill behavior as Yahoo.
func (p *Provider) SupportsBidAsk() bool { return false }

// FetchDailyPrices implements domain.DataProvider
func (p *Provider) FetchDailyPrices(tickers []string, start, end time.Time) ([]domain.PriceBar, error) {
	bars := make([]domain.PriceBar, 0)
	if len(tickers) == 0 {
		return bars, nil
	}

	p.log.Info().
		Int("tickers", len(tickers)).
		Time("start", start).
		Time("end", end).
		Msg("Fetching daily prices")

	for _, ticker := range tickers {
		series, err := p.client.dailyTimeSeries(ticker)
		if err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("Price fetch failed, skipping ticker")
			continue
		}
		if len(series) == 0 {
			p.log.Warn().Str("ticker", ticker).Msg("No daily data in response")
			continue
		}

		for dateStr, bar := range series {
			barDate := parseDate(dateStr)
			if barDate.IsZero() || barDate.Before(start) || barDate.After(end) {
				continue
			}
			bars = append(bars, domain.PriceBar{
				Date:     barDate,
				Ticker:   ticker,
				Open:     parseFloat64(bar["1. open"]),
				High:     parseFloat64(bar["2. high"]),
				Low:      parseFloat64(bar["3. low"]),
				Close:    parseFloat64(bar["4. close"]),
				AdjClose: parseFloat64(bar["5. adjusted close"]),
				Volume:   parseFloat64(bar["6. volume"]),
			})
		}
	}

	domain.SortBars(bars)
	return bars, nil
}

// FetchTickerInfo implements domain.DataProvider
func (p *Provider) FetchTickerInfo(ticker string) domain.TickerInfo {
	overview, err := p.client.companyOverview(ticker)
	if err != nil {
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("Overview fetch failed, using defaults")
		return domain.DefaultTickerInfo()
	}

	beta := 1.0
	if v := parseFloat64Ptr(overview["Beta"]); v != nil {
		beta = *v
	}

	shortPct := 0.0
	if v := parseFloat64Ptr(overview["ShortPercentFloat"]); v != nil {
		shortPct = *v / 100.0
	}

	return domain.TickerInfo{
		MarketCap:         parseFloat64(overview["MarketCapitalization"]),
		Sector:            overview["Sector"],
		Industry:          overview["Industry"],
		Beta:              beta,
		SharesOutstanding: parseInt64(overview["SharesOutstanding"]),
		AvgVolume:         0, // not in OVERVIEW; would need a separate series call
		DividendYield:     parseFloat64(overview["DividendYield"]),
		ShortPctOfFloat:   shortPct,
	}
}

// FetchCurrentPrices implements domain.DataProvider
func (p *Provider) FetchCurrentPrices(tickers []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(tickers))

	for _, ticker := range tickers {
		quote, err := p.client.globalQuote(ticker)
		if err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("Current price fetch failed")
			continue
		}
		if price := parseFloat64(quote["05. price"]); price > 0 {
			prices[ticker] = price
		}
	}

	return prices, nil
}

// FetchRiskFreeRate implements domain.DataProvider. Uses the 3-month
// Treasury yield endpoint; the value is a percentage.
func (p *Provider) FetchRiskFreeRate() float64 {
	yield, err := p.client.treasuryYield3Month()
	if err != nil || yield <= 0 {
		p.log.Warn().Err(err).Msg("Treasury yield fetch failed, using fallback")
		return domain.FallbackRiskFreeRate
	}
	return yield / 100.0
}
