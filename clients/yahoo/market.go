package yahoo

import (
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/marketdata/domain"
	"github.com/aristath/marketdata/pkg/format"
)

// MarketProvider implements domain.MarketDataProvider against Yahoo Finance.
// Every operation traps its own failures and returns the contract's error
// sentinel instead of propagating.
type MarketProvider struct {
	client *Client
	log    zerolog.Logger
}

// NewMarketProvider creates the record-contract Yahoo provider.
func NewMarketProvider(log zerolog.Logger) *MarketProvider {
	return &MarketProvider{
		client: NewClient(log),
		log:    log.With().Str("provider", "yahoo-market").Logger(),
	}
}

// SetHTTPClient replaces the transport. Used by factory options and tests.
func (p *MarketProvider) SetHTTPClient(hc *http.Client) { p.client.SetHTTPClient(hc) }

// Name implements domain.MarketDataProvider
func (p *MarketProvider) Name() string { return DisplayName }

// GetTickerHandle implements domain.MarketDataProvider
func (p *MarketProvider) GetTickerHandle(ticker string) domain.TickerHandle {
	return domain.TickerHandle{Ticker: ticker, Provider: "yahoo"}
}

// GetCompanyOverview implements domain.MarketDataProvider
func (p *MarketProvider) GetCompanyOverview(ticker string) domain.CompanyOverview {
	q, err := p.client.quote(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get company overview")
		return domain.CompanyOverview{Ticker: ticker, Error: err.Error()}
	}

	name := q.Get("longName").String()
	if name == "" {
		name = q.Get("shortName").String()
	}
	if name == "" {
		name = ticker
	}

	mktCap := q.Get("marketCap").Float()
	return domain.CompanyOverview{
		Ticker:             ticker,
		Name:               name,
		Sector:             stringOr(q, "sector", "Unknown"),
		Industry:           stringOr(q, "industry", "Unknown"),
		MarketCap:          mktCap,
		MarketCapFormatted: format.LargeNumberValue(mktCap),
		Currency:           stringOr(q, "currency", "USD"),
		Exchange:           stringOr(q, "fullExchangeName", "Unknown"),
		Country:            q.Get("country").String(),
	}
}

// GetPriceData implements domain.MarketDataProvider. The performance metrics
// are derived locally from the history window.
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

// GetFundamentals implements domain.MarketDataProvider
func (p *MarketProvider) GetFundamentals(ticker string) domain.FundamentalsBundle {
	q, err := p.client.quote(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get fundamentals")
		return domain.FundamentalsBundle{Ticker: ticker, Error: err.Error()}
	}

	revenue := floatPtr(q, "totalRevenue")
	ebitda := floatPtr(q, "ebitda")
	totalDebt := floatPtr(q, "totalDebt")
	totalCash := floatPtr(q, "totalCash")

	return domain.FundamentalsBundle{
		Ticker:       ticker,
		PETrailing:   floatPtr(q, "trailingPE"),
		PEForward:    floatPtr(q, "forwardPE"),
		PEGRatio:     floatPtr(q, "pegRatio"),
		PriceToBook:  floatPtr(q, "priceToBook"),
		EVToEBITDA:   floatPtr(q, "enterpriseToEbitda"),

		ProfitMargin:    format.Percent(floatPtr(q, "profitMargins")),
		OperatingMargin: format.Percent(floatPtr(q, "operatingMargins")),
		GrossMargin:     format.Percent(floatPtr(q, "grossMargins")),
		ROE:             format.Percent(floatPtr(q, "returnOnEquity")),
		ROA:             format.Percent(floatPtr(q, "returnOnAssets")),

		RevenueGrowth:  format.Percent(floatPtr(q, "revenueGrowth")),
		EarningsGrowth: format.Percent(floatPtr(q, "earningsGrowth")),

		Revenue:          revenue,
		RevenueFormatted: format.LargeNumber(revenue),
		EBITDA:           ebitda,
		EBITDAFormatted:  format.LargeNumber(ebitda),

		TotalDebt:          totalDebt,
		TotalDebtFormatted: format.LargeNumber(totalDebt),
		TotalCash:          totalCash,
		TotalCashFormatted: format.LargeNumber(totalCash),
		DebtToEquity:       floatPtr(q, "debtToEquity"),
		CurrentRatio:       floatPtr(q, "currentRatio"),

		DividendYield: format.Percent(floatPtr(q, "dividendYield")),
		PayoutRatio:   format.Percent(floatPtr(q, "payoutRatio")),

		TargetMeanPrice: floatPtr(q, "targetMeanPrice"),
		TargetHighPrice: floatPtr(q, "targetHighPrice"),
		TargetLowPrice:  floatPtr(q, "targetLowPrice"),
		Recommendation:  stringPtr(q, "recommendationKey"),
		NumAnalysts:     intPtr(q, "numberOfAnalystOpinions"),
	}
}

// GetInfo implements domain.MarketDataProvider. Yahoo is the vocabulary the
// InfoDict keys come from, so this is a straight field copy.
func (p *MarketProvider) GetInfo(ticker string) domain.InfoDict {
	q, err := p.client.quote(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get info")
		return domain.InfoDict{Ticker: ticker, Error: err.Error()}
	}

	name := q.Get("longName").String()
	if name == "" {
		name = ticker
	}

	return domain.InfoDict{
		Ticker:             ticker,
		LongName:           name,
		ShortName:          stringOr(q, "shortName", name),
		Sector:             stringOr(q, "sector", "Unknown"),
		Industry:           stringOr(q, "industry", "Unknown"),
		MarketCap:          q.Get("marketCap").Float(),
		TrailingPE:         floatPtr(q, "trailingPE"),
		ForwardPE:          floatPtr(q, "forwardPE"),
		PEGRatio:           floatPtr(q, "pegRatio"),
		PriceToBook:        floatPtr(q, "priceToBook"),
		EnterpriseToEBITDA: floatPtr(q, "enterpriseToEbitda"),
		ProfitMargins:      floatPtr(q, "profitMargins"),
		RevenueGrowth:      floatPtr(q, "revenueGrowth"),
		ReturnOnEquity:     floatPtr(q, "returnOnEquity"),
		DividendYield:      floatPtr(q, "dividendYield"),
		DebtToEquity:       floatPtr(q, "debtToEquity"),
		RecommendationKey:  stringPtr(q, "recommendationKey"),
		Beta:               floatPtr(q, "beta"),
		SharesOutstanding:  floatPtr(q, "sharesOutstanding"),
		AverageVolume:      floatPtr(q, "averageDailyVolume3Month"),
		ShortPctOfFloat:    floatPtr(q, "shortPercentOfFloat"),
		Country:            q.Get("country").String(),
		Exchange:           q.Get("fullExchangeName").String(),
		Currency:           stringOr(q, "currency", "USD"),
	}
}

// GetInsiderTransactions implements domain.MarketDataProvider
func (p *MarketProvider) GetInsiderTransactions(ticker string) []domain.InsiderTransaction {
	summary, err := p.client.quoteSummary(ticker, "insiderTransactions")
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get insider transactions")
		return nil
	}

	var txs []domain.InsiderTransaction
	summary.Get("transactions").ForEach(func(_, tx gjson.Result) bool {
		txs = append(txs, domain.InsiderTransaction{
			Date:     time.Unix(tx.Get("startDate.raw").Int(), 0).UTC(),
			Insider:  tx.Get("filerName").String(),
			Position: tx.Get("filerRelation").String(),
			Type:     tx.Get("transactionText").String(),
			Shares:   tx.Get("shares.raw").Int(),
			Value:    tx.Get("value.raw").Float(),
		})
		return true
	})
	return txs
}

// GetEarningsHistory implements domain.MarketDataProvider
func (p *MarketProvider) GetEarningsHistory(ticker string) []domain.EarningsRow {
	summary, err := p.client.quoteSummary(ticker, "earningsHistory")
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get earnings history")
		return nil
	}

	var rows []domain.EarningsRow
	summary.Get("history").ForEach(func(_, q gjson.Result) bool {
		row := domain.EarningsRow{Date: q.Get("quarter.fmt").String()}
		if v := q.Get("epsEstimate.raw"); v.Exists() {
			row.EPSEstimate = format.Float64(v.Float())
		}
		if v := q.Get("epsActual.raw"); v.Exists() {
			row.ReportedEPS = format.Float64(v.Float())
		}
		if v := q.Get("surprisePercent.raw"); v.Exists() {
			// Yahoo reports the surprise as a fraction.
			row.SurprisePct = format.Float64(v.Float() * 100)
		}
		rows = append(rows, row)
		return true
	})
	return rows
}

// GetQuarterlyEarnings implements domain.MarketDataProvider
func (p *MarketProvider) GetQuarterlyEarnings(ticker string) []domain.QuarterlyEarning {
	summary, err := p.client.quoteSummary(ticker, "earnings")
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get quarterly earnings")
		return nil
	}

	var rows []domain.QuarterlyEarning
	summary.Get("financialsChart.quarterly").ForEach(func(_, q gjson.Result) bool {
		row := domain.QuarterlyEarning{Quarter: q.Get("date").String()}
		if v := q.Get("earnings.raw"); v.Exists() {
			row.Earnings = format.Float64(v.Float())
		}
		rows = append(rows, row)
		return true
	})
	return rows
}

// GetHistory implements domain.MarketDataProvider. The chart endpoint
// accepts the period tokens directly.
func (p *MarketProvider) GetHistory(ticker, period string) []domain.HistoryBar {
	bars, err := p.client.chartRange(ticker, period)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Str("period", period).Msg("Failed to get history")
		return nil
	}
	if len(bars) == 0 {
		return nil
	}

	hist := make([]domain.HistoryBar, 0, len(bars))
	for _, b := range bars {
		hist = append(hist, domain.HistoryBar{
			Date:   b.Date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.AdjClose,
			Volume: b.Volume,
		})
	}
	return hist
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func intPtr(r gjson.Result, path string) *int64 {
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	i := v.Int()
	return &i
}

func stringOr(r gjson.Result, path, fallback string) string {
	if s := r.Get(path).String(); s != "" {
		return s
	}
	return fallback
}
