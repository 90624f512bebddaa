package ibkr

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/marketdata/domain"
	"github.com/aristath/marketdata/pkg/format"
)

// MarketProvider implements domain.MarketDataProvider against the brokerage
// gateway. The gateway is a trading surface, not a fundamentals terminal:
// quote-derived fields are served, the statement tables come back empty.
type MarketProvider struct {
	client *Client
	log    zerolog.Logger
}

// NewMarketProvider connects to the brokerage gateway at baseURL.
// Construction fails with a ConfigError when no authenticated gateway
// session is reachable.
func NewMarketProvider(baseURL string, log zerolog.Logger) (*MarketProvider, error) {
	client, err := NewClient(baseURL, log)
	if err != nil {
		return nil, domain.ConfigError{Provider: DisplayName, Reason: err.Error()}
	}
	return &MarketProvider{
		client: client,
		log:    log.With().Str("provider", "ibkr-market").Logger(),
	}, nil
}

// Close implements domain.Closer
func (p *MarketProvider) Close() error { return p.client.Close() }

// Name implements domain.MarketDataProvider
func (p *MarketProvider) Name() string { return DisplayName }

// GetTickerHandle implements domain.MarketDataProvider. The native handle
// is the contract ID.
func (p *MarketProvider) GetTickerHandle(ticker string) domain.TickerHandle {
	handle := domain.TickerHandle{Ticker: ticker, Provider: "ibkr"}
	if conid, err := p.client.resolveConid(ticker); err == nil {
		handle.Ticker = fmt.Sprintf("%d", conid)
	}
	return handle
}

// GetCompanyOverview implements domain.MarketDataProvider
func (p *MarketProvider) GetCompanyOverview(ticker string) domain.CompanyOverview {
	def, err := p.client.searchContract(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get company overview")
		return domain.CompanyOverview{Ticker: ticker, Error: err.Error()}
	}

	name := def.CompanyName
	if name == "" {
		name = ticker
	}

	overview := domain.CompanyOverview{
		Ticker:      ticker,
		Name:        name,
		Sector:      "Unknown",
		Industry:    "Unknown",
		Currency:    stringOr(def.Currency, "USD"),
		Exchange:    stringOr(def.Exchange, "Unknown"),
		Description: def.Description,
		Country:     "Unknown",
	}

	if snap, err := p.client.snapshot([]int64{def.Conid}, []string{fieldMktCap}); err == nil {
		if values, ok := snap[def.Conid]; ok {
			if v := parseSnapshotFloat(values[fieldMktCap]); v != nil {
				overview.MarketCap = *v
				overview.MarketCapFormatted = format.LargeNumberValue(*v)
			}
		}
	}
	return overview
}

// GetPriceData implements domain.MarketDataProvider
func (p *MarketProvider) GetPriceData(ticker, period string) domain.PricePerformance {
	hist := p.GetHistory(ticker, period)
	if len(hist) == 0 {
		return domain.PricePerformance{Ticker: ticker, Error: "No price data available"}
	}

	closes := make([]float64, len(hist))
	volumes := make([]float64, len(hist))
	for i, bar := range hist {
		closes[i] = bar.Close
		volumes[i] = bar.Volume
	}

	current := closes[len(closes)-1]
	start := closes[0]
	high := floats.Max(closes)
	low := floats.Min(closes)
	avgVolume := int64(stat.Mean(volumes, nil))

	return domain.PricePerformance{
		Ticker:             ticker,
		CurrentPrice:       round2(current),
		PeriodReturnPct:    round2((current/start - 1) * 100),
		High52W:            round2(high),
		Low52W:             round2(low),
		PctFromHigh:        round2((current/high - 1) * 100),
		PctFromLow:         round2((current/low - 1) * 100),
		AvgDailyVolume:     avgVolume,
		AvgVolumeFormatted: format.LargeNumberValue(float64(avgVolume)),
		Period:             period,
		DataPoints:         len(hist),
	}
}

// GetFundamentals implements domain.MarketDataProvider. Only the snapshot's
// quote-derived ratios are available; everything else stays unknown.
func (p *MarketProvider) GetFundamentals(ticker string) domain.FundamentalsBundle {
	conid, err := p.client.resolveConid(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get fundamentals")
		return domain.FundamentalsBundle{Ticker: ticker, Error: err.Error()}
	}

	snap, err := p.client.snapshot([]int64{conid}, []string{fieldPE, fieldEPS, fieldDivYield})
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get fundamentals")
		return domain.FundamentalsBundle{Ticker: ticker, Error: err.Error()}
	}

	bundle := domain.FundamentalsBundle{Ticker: ticker}
	values, ok := snap[conid]
	if !ok {
		return bundle
	}

	bundle.PETrailing = parseSnapshotFloat(values[fieldPE])
	if dy := parseSnapshotFloat(values[fieldDivYield]); dy != nil {
		bundle.DividendYield = format.Percent(format.Float64(*dy / 100.0))
	}
	return bundle
}

// GetInfo implements domain.MarketDataProvider
func (p *MarketProvider) GetInfo(ticker string) domain.InfoDict {
	def, err := p.client.searchContract(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get info")
		return domain.InfoDict{Ticker: ticker, Error: err.Error()}
	}

	name := def.CompanyName
	if name == "" {
		name = ticker
	}

	info := domain.InfoDict{
		Ticker:    ticker,
		LongName:  name,
		ShortName: name,
		Sector:    "Unknown",
		Industry:  "Unknown",
		Exchange:  stringOr(def.Exchange, "Unknown"),
		Currency:  stringOr(def.Currency, "USD"),
	}

	snap, err := p.client.snapshot([]int64{def.Conid}, []string{fieldMktCap, fieldPE, fieldDivYield})
	if err != nil {
		return info
	}
	if values, ok := snap[def.Conid]; ok {
		info.MarketCap = snapshotFloat(values[fieldMktCap])
		info.TrailingPE = parseSnapshotFloat(values[fieldPE])
		if dy := parseSnapshotFloat(values[fieldDivYield]); dy != nil {
			info.DividendYield = format.Float64(*dy / 100.0)
		}
	}
	return info
}

// GetInsiderTransactions implements domain.MarketDataProvider. Not exposed
// by the gateway.
func (p *MarketProvider) GetInsiderTransactions(ticker string) []domain.InsiderTransaction {
	p.log.Info().Str("ticker", ticker).Msg("Insider transactions not available via gateway")
	return nil
}

// GetEarningsHistory implements domain.MarketDataProvider. Not exposed by
// the gateway.
func (p *MarketProvider) GetEarningsHistory(ticker string) []domain.EarningsRow {
	p.log.Info().Str("ticker", ticker).Msg("Earnings history not available via gateway")
	return nil
}

// GetQuarterlyEarnings implements domain.MarketDataProvider. Not exposed by
// the gateway.
func (p *MarketProvider) GetQuarterlyEarnings(ticker string) []domain.QuarterlyEarning {
	p.log.Info().Str("ticker", ticker).Msg("Quarterly earnings not available via gateway")
	return nil
}

// GetHistory implements domain.MarketDataProvider
func (p *MarketProvider) GetHistory(ticker, period string) []domain.HistoryBar {
	conid, err := p.client.resolveConid(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get history")
		return nil
	}

	raw, err := p.client.history(conid, gatewayPeriod(period))
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get history")
		return nil
	}

	var hist []domain.HistoryBar
	for _, b := range raw {
		hist = append(hist, domain.HistoryBar{
			Date:   barDate(b.T),
			Open:   b.O,
			High:   b.H,
			Low:    b.L,
			Close:  b.C,
			Volume: b.V,
		})
	}
	sort.Slice(hist, func(i, j int) bool { return hist[i].Date.Before(hist[j].Date) })
	return hist
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
