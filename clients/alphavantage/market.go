package alphavantage

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/marketdata/domain"
	"github.com/aristath/marketdata/pkg/format"
)

// MarketProvider implements domain.MarketDataProvider against Alpha Vantage.
// It returns the same record shapes as the Yahoo market provider, with the
// Alpha Vantage vocabulary renamed onto the Yahoo keys so consumers written
// against Yahoo work unmodified.
//
// The OVERVIEW response is memoized per instance: overview, fundamentals and
// info all read it, and the free tier allows 25 requests a day. The memo map
// is not safe for concurrent mutation; use one instance per goroutine.
type MarketProvider struct {
	client        *Client
	overviewCache map[string]map[string]string
	log           zerolog.Logger
}

// NewMarketProvider creates the record-contract Alpha Vantage provider.
// Construction fails with a ConfigError when no API key can be resolved.
func NewMarketProvider(apiKey string, log zerolog.Logger) (*MarketProvider, error) {
	key, err := resolveKey(apiKey)
	if err != nil {
		return nil, err
	}
	return &MarketProvider{
		client:        NewClient(key, log),
		overviewCache: make(map[string]map[string]string),
		log:           log.With().Str("provider", "alphavantage-market").Logger(),
	}, nil
}

// SetHTTPClient replaces the transport. Used by factory options and tests.
func (p *MarketProvider) SetHTTPClient(hc *http.Client) { p.client.SetHTTPClient(hc) }

// Name implements domain.MarketDataProvider
func (p *MarketProvider) Name() string { return DisplayName }

// getOverview fetches and memoizes the OVERVIEW endpoint for a ticker.
func (p *MarketProvider) getOverview(ticker string) (map[string]string, error) {
	if cached, ok := p.overviewCache[ticker]; ok {
		return cached, nil
	}
	overview, err := p.client.companyOverview(ticker)
	if err != nil {
		return nil, err
	}
	p.overviewCache[ticker] = overview
	return overview, nil
}

// GetTickerHandle implements domain.MarketDataProvider. Alpha Vantage has
// no native ticker object concept.
func (p *MarketProvider) GetTickerHandle(ticker string) domain.TickerHandle {
	return domain.TickerHandle{Ticker: ticker, Provider: "alphavantage"}
}

// GetCompanyOverview implements domain.MarketDataProvider
func (p *MarketProvider) GetCompanyOverview(ticker string) domain.CompanyOverview {
	ov, err := p.getOverview(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get company overview")
		return domain.CompanyOverview{Ticker: ticker, Error: err.Error()}
	}

	name := ov["Name"]
	if name == "" {
		name = ticker
	}

	description := ov["Description"]
	if len(description) > 500 {
		description = description[:500]
	}

	mktCap := parseFloat64(ov["MarketCapitalization"])
	return domain.CompanyOverview{
		Ticker:             ticker,
		Name:               name,
		Sector:             valueOr(ov, "Sector", "Unknown"),
		Industry:           valueOr(ov, "Industry", "Unknown"),
		MarketCap:          mktCap,
		MarketCapFormatted: format.LargeNumberValue(mktCap),
		Currency:           valueOr(ov, "Currency", "USD"),
		Exchange:           valueOr(ov, "Exchange", "Unknown"),
		Description:        description,
		Employees:          parseInt64(ov["FullTimeEmployees"]),
		Country:            valueOr(ov, "Country", "Unknown"),
	}
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

// GetFundamentals implements domain.MarketDataProvider. Combines OVERVIEW
// (ratios, margins) with the income statement (revenue, EBITDA, net income)
// and balance sheet (debt, cash, current ratio); Alpha Vantage carries
// statement data Yahoo's quote endpoint does not.
func (p *MarketProvider) GetFundamentals(ticker string) domain.FundamentalsBundle {
	ov, err := p.getOverview(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get fundamentals")
		return domain.FundamentalsBundle{Ticker: ticker, Error: err.Error()}
	}

	income, err := p.client.incomeStatements(ticker)
	if err != nil {
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("Income statement fetch failed")
	}
	balance, err := p.client.balanceSheets(ticker)
	if err != nil {
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("Balance sheet fetch failed")
	}

	var latestIncome, latestBalance map[string]string
	if len(income) > 0 {
		latestIncome = income[0]
	}
	if len(balance) > 0 {
		latestBalance = balance[0]
	}

	revenue := parseFloat64(latestIncome["totalRevenue"])
	ebitda := parseFloat64(latestIncome["ebitda"])
	netIncome := parseFloat64(latestIncome["netIncome"])
	totalDebt := parseFloat64(latestBalance["shortTermDebt"]) + parseFloat64(latestBalance["longTermDebt"])
	totalCash := parseFloat64(latestBalance["cashAndShortTermInvestments"])

	// Current ratio: nil when current liabilities are zero or unknown.
	var currentRatio *float64
	currentAssets := parseFloat64(latestBalance["totalCurrentAssets"])
	currentLiabilities := parseFloat64(latestBalance["totalCurrentLiabilities"])
	if currentLiabilities > 0 {
		currentRatio = format.Float64(round2(currentAssets / currentLiabilities))
	}

	// YoY revenue growth from the two most recent annual reports.
	var revenueGrowth *string
	if len(income) >= 2 {
		if prev := parseFloat64(income[1]["totalRevenue"]); prev > 0 {
			revenueGrowth = format.String(fmt.Sprintf("%.1f%%", (revenue/prev-1)*100))
		}
	}

	return domain.FundamentalsBundle{
		Ticker:       ticker,
		PETrailing:   parseFloat64Ptr(ov["TrailingPE"]),
		PEForward:    parseFloat64Ptr(ov["ForwardPE"]),
		PEGRatio:     parseFloat64Ptr(ov["PEGRatio"]),
		PriceToBook:  parseFloat64Ptr(ov["PriceToBookRatio"]),
		PriceToSales: parseFloat64Ptr(ov["PriceToSalesRatioTTM"]),
		EVToEBITDA:   parseFloat64Ptr(ov["EVToEBITDA"]),
		EVToRevenue:  parseFloat64Ptr(ov["EVToRevenue"]),

		// OVERVIEW margins are fractions (0.25 for 25%).
		ProfitMargin:    format.Percent(parseFloat64Ptr(ov["ProfitMargin"])),
		OperatingMargin: format.Percent(parseFloat64Ptr(ov["OperatingMarginTTM"])),
		ROE:             format.Percent(parseFloat64Ptr(ov["ReturnOnEquityTTM"])),
		ROA:             format.Percent(parseFloat64Ptr(ov["ReturnOnAssetsTTM"])),

		RevenueGrowth:  revenueGrowth,
		EarningsGrowth: format.Percent(parseFloat64Ptr(ov["QuarterlyEarningsGrowthYOY"])),

		Revenue:          nonZeroPtr(revenue),
		RevenueFormatted: format.LargeNumber(nonZeroPtr(revenue)),
		EBITDA:           nonZeroPtr(ebitda),
		EBITDAFormatted:  format.LargeNumber(nonZeroPtr(ebitda)),
		NetIncome:        nonZeroPtr(netIncome),

		TotalDebt:          nonZeroPtr(totalDebt),
		TotalDebtFormatted: format.LargeNumber(nonZeroPtr(totalDebt)),
		TotalCash:          nonZeroPtr(totalCash),
		TotalCashFormatted: format.LargeNumber(nonZeroPtr(totalCash)),
		DebtToEquity:       parseFloat64Ptr(ov["DebtToEquityRatio"]),
		CurrentRatio:       currentRatio,

		DividendYield: format.Percent(parseFloat64Ptr(ov["DividendYield"])),
		PayoutRatio:   format.Percent(parseFloat64Ptr(ov["PayoutRatio"])),

		TargetMeanPrice: parseFloat64Ptr(ov["AnalystTargetPrice"]),
		NumAnalysts:     int64Ptr(ov["NumberOfAnalystOpinions"]),
	}
}

// GetInfo implements domain.MarketDataProvider. Maps the Alpha Vantage
// OVERVIEW vocabulary onto the Yahoo key names.
func (p *MarketProvider) GetInfo(ticker string) domain.InfoDict {
	ov, err := p.getOverview(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get info")
		return domain.InfoDict{Ticker: ticker, Error: err.Error()}
	}

	name := ov["Name"]
	if name == "" {
		name = ticker
	}

	return domain.InfoDict{
		Ticker:             ticker,
		LongName:           name,
		ShortName:          name,
		Sector:             valueOr(ov, "Sector", "Unknown"),
		Industry:           valueOr(ov, "Industry", "Unknown"),
		MarketCap:          parseFloat64(ov["MarketCapitalization"]),
		TrailingPE:         parseFloat64Ptr(ov["TrailingPE"]),
		ForwardPE:          parseFloat64Ptr(ov["ForwardPE"]),
		PEGRatio:           parseFloat64Ptr(ov["PEGRatio"]),
		PriceToBook:        parseFloat64Ptr(ov["PriceToBookRatio"]),
		EnterpriseToEBITDA: parseFloat64Ptr(ov["EVToEBITDA"]),
		ProfitMargins:      parseFloat64Ptr(ov["ProfitMargin"]),
		RevenueGrowth:      parseFloat64Ptr(ov["QuarterlyRevenueGrowthYOY"]),
		ReturnOnEquity:     parseFloat64Ptr(ov["ReturnOnEquityTTM"]),
		DividendYield:      parseFloat64Ptr(ov["DividendYield"]),
		DebtToEquity:       parseFloat64Ptr(ov["DebtToEquityRatio"]),
		Beta:               parseFloat64Ptr(ov["Beta"]),
		SharesOutstanding:  parseFloat64Ptr(ov["SharesOutstanding"]),
		Description:        ov["Description"],
		Country:            valueOr(ov, "Country", "Unknown"),
		Exchange:           valueOr(ov, "Exchange", "Unknown"),
		Currency:           valueOr(ov, "Currency", "USD"),
	}
}

// GetInsiderTransactions implements domain.MarketDataProvider. Alpha
// Vantage does not provide insider transaction data.
func (p *MarketProvider) GetInsiderTransactions(ticker string) []domain.InsiderTransaction {
	p.log.Info().Str("ticker", ticker).Msg("Insider transactions not available via Alpha Vantage")
	return nil
}

// GetEarningsHistory implements domain.MarketDataProvider
func (p *MarketProvider) GetEarningsHistory(ticker string) []domain.EarningsRow {
	quarterly, err := p.client.earnings(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get earnings history")
		return nil
	}

	var rows []domain.EarningsRow
	for _, q := range quarterly {
		rows = append(rows, domain.EarningsRow{
			Date:        q["reportedDate"],
			EPSEstimate: parseFloat64Ptr(q["estimatedEPS"]),
			ReportedEPS: parseFloat64Ptr(q["reportedEPS"]),
			SurprisePct: parseFloat64Ptr(q["surprisePercentage"]),
		})
	}
	return rows
}

// GetQuarterlyEarnings implements domain.MarketDataProvider
func (p *MarketProvider) GetQuarterlyEarnings(ticker string) []domain.QuarterlyEarning {
	quarterly, err := p.client.earnings(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get quarterly earnings")
		return nil
	}

	var rows []domain.QuarterlyEarning
	for _, q := range quarterly {
		rows = append(rows, domain.QuarterlyEarning{
			Quarter:  q["fiscalDateEnding"],
			Earnings: parseFloat64Ptr(q["reportedEPS"]),
		})
	}
	return rows
}

// GetHistory implements domain.MarketDataProvider. The full daily series is
// trimmed locally to the period window, oldest first; Close is the adjusted
// close, matching the Yahoo provider.
func (p *MarketProvider) GetHistory(ticker, period string) []domain.HistoryBar {
	series, err := p.client.dailyTimeSeries(ticker)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get history")
		return nil
	}
	if len(series) == 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -format.PeriodToDays(period))

	var hist []domain.HistoryBar
	for dateStr, bar := range series {
		barDate := parseDate(dateStr)
		if barDate.IsZero() || barDate.Before(cutoff) {
			continue
		}
		hist = append(hist, domain.HistoryBar{
			Date:   barDate,
			Open:   parseFloat64(bar["1. open"]),
			High:   parseFloat64(bar["2. high"]),
			Low:    parseFloat64(bar["3. low"]),
			Close:  parseFloat64(bar["5. adjusted close"]),
			Volume: parseFloat64(bar["6. volume"]),
		})
	}
	if len(hist) == 0 {
		return nil
	}

	sort.Slice(hist, func(i, j int) bool { return hist[i].Date.Before(hist[j].Date) })
	return hist
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nonZeroPtr(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func int64Ptr(s string) *int64 {
	if v := parseFloat64Ptr(s); v != nil {
		i := int64(*v)
		return &i
	}
	return nil
}

func valueOr(m map[string]string, key, fallback string) string {
	if v := m[key]; v != "" && v != "None" {
		return v
	}
	return fallback
}
