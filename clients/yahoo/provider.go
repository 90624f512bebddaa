package yahoo

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketdata/domain"
	"github.com/aristath/marketdata/pkg/retry"
)

// DisplayName is the registry name of this provider.
const DisplayName = "Yahoo Finance"

// Provider implements domain.DataProvider against Yahoo Finance.
// It fetches one ticker per request, so per-ticker failures degrade the
// batch instead of failing it.
type Provider struct {
	client *Client
	retry  *retry.Policy
	log    zerolog.Logger
}

// NewProvider creates the tabular Yahoo provider. It cannot fail: the
// endpoints are public and keyless.
func NewProvider(log zerolog.Logger) *Provider {
	return &Provider{
		client: NewClient(log),
		retry:  retry.New(log),
		log:    log.With().Str("provider", "yahoo").Logger(),
	}
}

// SetHTTPClient replaces the transport. Used by factory options and tests.
func (p *Provider) SetHTTPClient(hc *http.Client) { p.client.SetHTTPClient(hc) }

// Name implements domain.DataProvider
func (p *Provider) Name() string { return DisplayName }

// SupportsBidAsk implements domain.DataProvider. Yahoo has no bid/ask feed.
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
		// chartWindow's period2 is exclusive; pad one day so end is included.
		raw, err := p.client.chartWindow(ticker, start, end.AddDate(0, 0, 1))
		if err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("Price fetch failed, skipping ticker")
			continue
		}
		for _, b := range raw {
			if b.Date.Before(start) || b.Date.After(end.AddDate(0, 0, 1)) {
				continue
			}
			bars = append(bars, domain.PriceBar{
				Date:     b.Date,
				Ticker:   ticker,
				Open:     b.Open,
				High:     b.High,
				Low:      b.Low,
				Close:    b.Close,
				AdjClose: b.AdjClose,
				Volume:   b.Volume,
			})
		}
	}

	domain.SortBars(bars)
	return bars, nil
}

// FetchTickerInfo implements domain.DataProvider
func (p *Provider) FetchTickerInfo(ticker string) domain.TickerInfo {
	q, err := p.client.quote(ticker)
	if err != nil {
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("Ticker info fetch failed, using defaults")
		return domain.DefaultTickerInfo()
	}

	info := domain.TickerInfo{
		MarketCap:         q.Get("marketCap").Float(),
		Sector:            q.Get("sector").String(),
		Industry:          q.Get("industry").String(),
		Beta:              1.0,
		SharesOutstanding: q.Get("sharesOutstanding").Int(),
		AvgVolume:         q.Get("averageDailyVolume3Month").Int(),
		DividendYield:     q.Get("dividendYield").Float(),
		ShortPctOfFloat:   q.Get("shortPercentOfFloat").Float(),
	}
	if beta := floatPtr(q, "beta"); beta != nil {
		info.Beta = *beta
	}
	return info
}

// FetchCurrentPrices implements domain.DataProvider
func (p *Provider) FetchCurrentPrices(tickers []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(tickers))

	for _, ticker := range tickers {
		var price float64
		err := p.retry.Do("current_price", func() error {
			q, err := p.client.quote(ticker)
			if err != nil {
				return err
			}
			price = q.Get("currentPrice").Float()
			if price == 0 {
				price = q.Get("regularMarketPrice").Float()
			}
			return nil
		})
		if err != nil || price <= 0 {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("Current price fetch failed")
			continue
		}
		prices[ticker] = price
	}

	return prices, nil
}

// FetchRiskFreeRate implements domain.DataProvider. Uses the 13-week T-bill
// index; its last close is a percentage, so divide by 100.
func (p *Provider) FetchRiskFreeRate() float64 {
	bars, err := p.client.chartRange(riskFreeSymbol, "5d")
	if err != nil || len(bars) == 0 {
		p.log.Warn().Err(err).Msg("Risk-free rate fetch failed, using fallback")
		return domain.FallbackRiskFreeRate
	}

	rate := bars[len(bars)-1].Close / 100.0
	if rate <= 0 {
		return domain.FallbackRiskFreeRate
	}
	return rate
}
