package ibkr

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketdata/domain"
)

// DisplayName is the registry name of this provider.
const DisplayName = "Interactive Brokers"

// Provider implements domain.DataProvider against the brokerage gateway.
// Contracts resolve one at a time, so per-ticker failures degrade batch
// operations to partial results.
type Provider struct {
	client *Client
	log    zerolog.Logger
}

// NewProvider connects to the brokerage gateway at baseURL. Construction
// fails with a ConfigError when no authenticated gateway session is
// reachable; callers should consult IsAvailable first.
func NewProvider(baseURL string, log zerolog.Logger) (*Provider, error) {
	client, err := NewClient(baseURL, log)
	if err != nil {
		return nil, domain.ConfigError{Provider: DisplayName, Reason: err.Error()}
	}
	return &Provider{
		client: client,
		log:    log.With().Str("provider", "ibkr").Logger(),
	}, nil
}

// Close implements domain.Closer
func (p *Provider) Close() error { return p.client.Close() }

// Name implements domain.DataProvider
func (p *Provider) Name() string { return DisplayName }

// SupportsBidAsk implements domain.DataProvider. The brokerage feed carries
// live quotes; the most recent bar gets the current bid/ask.
func (p *Provider) SupportsBidAsk() bool { return true }

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

	period := periodCovering(start)
	for _, ticker := range tickers {
		conid, err := p.client.resolveConid(ticker)
		if err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("Contract lookup failed, skipping ticker")
			continue
		}

		raw, err := p.client.history(conid, period)
		if err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("History fetch failed, skipping ticker")
			continue
		}

		first := len(bars)
		for _, b := range raw {
			date := barDate(b.T)
			if date.Before(start) || date.After(end) {
				continue
			}
			bars = append(bars, domain.PriceBar{
				Date:     date,
				Ticker:   ticker,
				Open:     b.O,
				High:     b.H,
				Low:      b.L,
				Close:    b.C,
				AdjClose: b.C,
				Volume:   b.V,
			})
		}

		// Stamp the live quote onto the newest bar.
		if len(bars) > first {
			if snap, err := p.client.snapshot([]int64{conid}, []string{fieldBid, fieldAsk}); err == nil {
				if values, ok := snap[conid]; ok {
					last := &bars[len(bars)-1]
					last.Bid = snapshotFloat(values[fieldBid])
					last.Ask = snapshotFloat(values[fieldAsk])
				}
			}
		}
	}

	domain.SortBars(bars)
	return bars, nil
}

// FetchTickerInfo implements domain.DataProvider. The gateway snapshot
// carries no sector or float data, so only the quote-derived fields are
// filled; the rest keep the documented defaults.
func (p *Provider) FetchTickerInfo(ticker string) domain.TickerInfo {
	info := domain.DefaultTickerInfo()

	conid, err := p.client.resolveConid(ticker)
	if err != nil {
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("Contract lookup failed, using defaults")
		return info
	}

	snap, err := p.client.snapshot([]int64{conid}, []string{fieldMktCap, fieldDivYield, fieldVolume})
	if err != nil {
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("Snapshot fetch failed, using defaults")
		return info
	}
	values, ok := snap[conid]
	if !ok {
		return info
	}

	info.MarketCap = snapshotFloat(values[fieldMktCap])
	info.AvgVolume = int64(snapshotFloat(values[fieldVolume]))
	// Snapshot yield is a display percentage.
	info.DividendYield = snapshotFloat(values[fieldDivYield]) / 100.0
	return info
}

// FetchCurrentPrices implements domain.DataProvider. One batched snapshot
// call; tickers whose contract cannot be resolved are skipped.
func (p *Provider) FetchCurrentPrices(tickers []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(tickers))
	if len(tickers) == 0 {
		return prices, nil
	}

	conids := make([]int64, 0, len(tickers))
	byConid := make(map[int64]string, len(tickers))
	for _, ticker := range tickers {
		conid, err := p.client.resolveConid(ticker)
		if err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("Contract lookup failed")
			continue
		}
		conids = append(conids, conid)
		byConid[conid] = ticker
	}
	if len(conids) == 0 {
		return prices, nil
	}

	snap, err := p.client.snapshot(conids, []string{fieldLast})
	if err != nil {
		return nil, err
	}
	for conid, values := range snap {
		if price := snapshotFloat(values[fieldLast]); price > 0 {
			prices[byConid[conid]] = price
		}
	}
	return prices, nil
}

// FetchRiskFreeRate implements domain.DataProvider. The gateway exposes no
// treasury yield endpoint, so the documented fallback applies.
func (p *Provider) FetchRiskFreeRate() float64 {
	p.log.Debug().Msg("Risk-free rate not exposed by gateway, using fallback")
	return domain.FallbackRiskFreeRate
}

// periodCovering picks the smallest gateway history period that reaches
// back to start.
func periodCovering(start time.Time) string {
	days := int(time.Since(start).Hours() / 24)
	switch {
	case days <= 30:
		return "1m"
	case days <= 90:
		return "3m"
	case days <= 180:
		return "6m"
	case days <= 365:
		return "1y"
	case days <= 730:
		return "2y"
	case days <= 1825:
		return "5y"
	default:
		return "10y"
	}
}
