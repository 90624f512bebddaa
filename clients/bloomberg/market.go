package bloomberg

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/marketdata/domain"
	"github.com/aristath/marketdata/pkg/format"
)

var overviewFields = []string{
	"LONG_COMP_NAME", "GICS_SECTOR_NAME", "GICS_INDUSTRY_NAME", "CUR_MKT_CAP",
	"CRNCY", "EXCH_CODE", "CIE_DES", "NUM_EMPLOYEES", "COUNTRY_FULL_NAME",
}

var fundamentalsFields = []string{
	"PE_RATIO", "BEST_PE_RATIO", "PX_TO_BOOK_RATIO", "PX_TO_SALES_RATIO",
	"CURRENT_EV_TO_T12M_EBITDA", "PROF_MARGIN", "OPER_MARGIN", "GROSS_MARGIN",
	"RETURN_COM_EQY", "RETURN_ON_ASSET", "SALES_REV_TURN", "EBITDA",
	"NET_INCOME", "SHORT_AND_LONG_TERM_DEBT", "CASH_AND_MARKETABLE_SECURITIES",
	"TOT_DEBT_TO_TOT_EQY", "CUR_RATIO", "EQY_DVD_YLD_IND", "DVD_PAYOUT_RATIO",
	"BEST_TARGET_PRICE", "TOT_ANALYST_REC", "EQY_BETA", "EQY_SH_OUT",
	"VOLUME_AVG_30D", "SI_PERCENT_EQUITY_FLOAT", "SALES_GROWTH",
}

// MarketProvider implements domain.MarketDataProvider against the terminal
// gateway. Sharing the client with the tabular provider keeps one gateway
// connection per process.
type MarketProvider struct {
	client *Client
	log    zerolog.Logger
}

// NewMarketProvider connects to the terminal gateway at addr. Construction
// fails with a ConfigError when no gateway is reachable.
func NewMarketProvider(addr string, log zerolog.Logger) (*MarketProvider, error) {
	client, err := NewClient(addr, log)
	if err != nil {
		return nil, domain.ConfigError{Provider: DisplayName, Reason: err.Error()}
	}
	return &MarketProvider{
		client: client,
		log:    log.With().Str("provider", "bloomberg-market").Logger(),
	}, nil
}

// Close implements domain.Closer
func (p *MarketProvider) Close() error { return p.client.Close() }

// Name implements domain.MarketDataProvider
func (p *MarketProvider) Name() string { return DisplayName }

// GetTickerHandle implements domain.MarketDataProvider
func (p *MarketProvider) GetTickerHandle(ticker string) domain.TickerHandle {
	return domain.TickerHandle{Ticker: ticker + " US Equity", Provider: "bloomberg"}
}

// GetCompanyOverview implements domain.MarketDataProvider
func (p *MarketProvider) GetCompanyOverview(ticker string) domain.CompanyOverview {
	rows, err := p.client.referenceData(securities([]string{ticker}), overviewFields)
	if err != nil || len(rows) == 0 {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get company overview")
		return domain.CompanyOverview{Ticker: ticker, Error: errString(err, "no reference data")}
	}
	r := rows[0]

	name := r.Strings["LONG_COMP_NAME"]
	if name == "" {
		name = ticker
	}

	mktCap := r.Values["CUR_MKT_CAP"] * 1e6
	return domain.CompanyOverview{
		Ticker:             ticker,
		Name:               name,
		Sector:             stringOr(r.Strings["GICS_SECTOR_NAME"], "Unknown"),
		Industry:           stringOr(r.Strings["GICS_INDUSTRY_NAME"], "Unknown"),
		MarketCap:          mktCap,
		MarketCapFormatted: format.LargeNumberValue(mktCap),
		Currency:           stringOr(r.Strings["CRNCY"], "USD"),
		Exchange:           stringOr(r.Strings["EXCH_CODE"], "Unknown"),
		Description:        r.Strings["CIE_DES"],
		Employees:          int64(r.Values["NUM_EMPLOYEES"]),
		Country:            stringOr(r.Strings["COUNTRY_FULL_NAME"], "Unknown"),
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

// GetFundamentals implements domain.MarketDataProvider. The terminal quotes
// margins, yields and growth as percentages and monetary aggregates in
// millions; both get normalized here.
func (p *MarketProvider) GetFundamentals(ticker string) domain.FundamentalsBundle {
	rows, err := p.client.referenceData(securities([]string{ticker}), fundamentalsFields)
	if err != nil || len(rows) == 0 {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get fundamentals")
		return domain.FundamentalsBundle{Ticker: ticker, Error: errString(err, "no reference data")}
	}
	r := rows[0]

	revenue := r.Values["SALES_REV_TURN"] * 1e6
	ebitda := r.Values["EBITDA"] * 1e6
	netIncome := r.Values["NET_INCOME"] * 1e6
	totalDebt := r.Values["SHORT_AND_LONG_TERM_DEBT"] * 1e6
	totalCash := r.Values["CASH_AND_MARKETABLE_SECURITIES"] * 1e6

	return domain.FundamentalsBundle{
		Ticker:       ticker,
		PETrailing:   valuePtr(r, "PE_RATIO"),
		PEForward:    valuePtr(r, "BEST_PE_RATIO"),
		PriceToBook:  valuePtr(r, "PX_TO_BOOK_RATIO"),
		PriceToSales: valuePtr(r, "PX_TO_SALES_RATIO"),
		EVToEBITDA:   valuePtr(r, "CURRENT_EV_TO_T12M_EBITDA"),

		ProfitMargin:    format.Percent(pctPtr(r, "PROF_MARGIN")),
		OperatingMargin: format.Percent(pctPtr(r, "OPER_MARGIN")),
		GrossMargin:     format.Percent(pctPtr(r, "GROSS_MARGIN")),
		ROE:             format.Percent(pctPtr(r, "RETURN_COM_EQY")),
		ROA:             format.Percent(pctPtr(r, "RETURN_ON_ASSET")),

		RevenueGrowth: format.Percent(pctPtr(r, "SALES_GROWTH")),

		Revenue:          nonZeroPtr(revenue),
		RevenueFormatted: format.LargeNumber(nonZeroPtr(revenue)),
		EBITDA:           nonZeroPtr(ebitda),
		EBITDAFormatted:  format.LargeNumber(nonZeroPtr(ebitda)),
		NetIncome:        nonZeroPtr(netIncome),

		TotalDebt:          nonZeroPtr(totalDebt),
		TotalDebtFormatted: format.LargeNumber(nonZeroPtr(totalDebt)),
		TotalCash:          nonZeroPtr(totalCash),
		TotalCashFormatted: format.LargeNumber(nonZeroPtr(totalCash)),
		DebtToEquity:       valuePtr(r, "TOT_DEBT_TO_TOT_EQY"),
		CurrentRatio:       valuePtr(r, "CUR_RATIO"),

		DividendYield: format.Percent(pctPtr(r, "EQY_DVD_YLD_IND")),
		PayoutRatio:   format.Percent(pctPtr(r, "DVD_PAYOUT_RATIO")),

		TargetMeanPrice: valuePtr(r, "BEST_TARGET_PRICE"),
		NumAnalysts:     intPtrOf(r, "TOT_ANALYST_REC"),
	}
}

// GetInfo implements domain.MarketDataProvider. Maps terminal mnemonics onto
// the Yahoo key vocabulary.
func (p *MarketProvider) GetInfo(ticker string) domain.InfoDict {
	fields := append(append([]string{}, overviewFields...), fundamentalsFields...)
	rows, err := p.client.referenceData(securities([]string{ticker}), fields)
	if err != nil || len(rows) == 0 {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get info")
		return domain.InfoDict{Ticker: ticker, Error: errString(err, "no reference data")}
	}
	r := rows[0]

	name := r.Strings["LONG_COMP_NAME"]
	if name == "" {
		name = ticker
	}

	return domain.InfoDict{
		Ticker:             ticker,
		LongName:           name,
		ShortName:          name,
		Sector:             stringOr(r.Strings["GICS_SECTOR_NAME"], "Unknown"),
		Industry:           stringOr(r.Strings["GICS_INDUSTRY_NAME"], "Unknown"),
		MarketCap:          r.Values["CUR_MKT_CAP"] * 1e6,
		TrailingPE:         valuePtr(r, "PE_RATIO"),
		ForwardPE:          valuePtr(r, "BEST_PE_RATIO"),
		PriceToBook:        valuePtr(r, "PX_TO_BOOK_RATIO"),
		EnterpriseToEBITDA: valuePtr(r, "CURRENT_EV_TO_T12M_EBITDA"),
		ProfitMargins:      pctPtr(r, "PROF_MARGIN"),
		RevenueGrowth:      pctPtr(r, "SALES_GROWTH"),
		ReturnOnEquity:     pctPtr(r, "RETURN_COM_EQY"),
		DividendYield:      pctPtr(r, "EQY_DVD_YLD_IND"),
		DebtToEquity:       valuePtr(r, "TOT_DEBT_TO_TOT_EQY"),
		Beta:               valuePtr(r, "EQY_BETA"),
		SharesOutstanding:  scaledPtr(r, "EQY_SH_OUT", 1e6),
		AverageVolume:      valuePtr(r, "VOLUME_AVG_30D"),
		ShortPctOfFloat:    pctPtr(r, "SI_PERCENT_EQUITY_FLOAT"),
		Description:        r.Strings["CIE_DES"],
		Country:            stringOr(r.Strings["COUNTRY_FULL_NAME"], "Unknown"),
		Exchange:           stringOr(r.Strings["EXCH_CODE"], "Unknown"),
		Currency:           stringOr(r.Strings["CRNCY"], "USD"),
	}
}

// GetInsiderTransactions implements domain.MarketDataProvider. The gateway
// request set does not cover insider filings.
func (p *MarketProvider) GetInsiderTransactions(ticker string) []domain.InsiderTransaction {
	p.log.Info().Str("ticker", ticker).Msg("Insider transactions not available via gateway")
	return nil
}

// GetEarningsHistory implements domain.MarketDataProvider. The gateway
// request set does not cover earnings report tables.
func (p *MarketProvider) GetEarningsHistory(ticker string) []domain.EarningsRow {
	p.log.Info().Str("ticker", ticker).Msg("Earnings history not available via gateway")
	return nil
}

// GetQuarterlyEarnings implements domain.MarketDataProvider. Served from the
// trailing EPS daily series: the value on each quarter boundary is that
// quarter's trailing EPS.
func (p *MarketProvider) GetQuarterlyEarnings(ticker string) []domain.QuarterlyEarning {
	end := time.Now()
	start := end.AddDate(-2, 0, 0)
	rows, err := p.client.historicalData(securities([]string{ticker}), []string{"TRAIL_12M_EPS"}, start, end)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get quarterly earnings")
		return nil
	}

	// The gateway does not promise row order; the run deduplication below
	// needs dates ascending.
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

	var out []domain.QuarterlyEarning
	last := math.NaN()
	for _, r := range rows {
		eps, ok := r.Values["TRAIL_12M_EPS"]
		if !ok || eps == last {
			continue
		}
		last = eps
		v := eps
		out = append(out, domain.QuarterlyEarning{Quarter: r.Date, Earnings: &v})
	}
	return out
}

// GetHistory implements domain.MarketDataProvider
func (p *MarketProvider) GetHistory(ticker, period string) []domain.HistoryBar {
	end := time.Now()
	start := end.AddDate(0, 0, -format.PeriodToDays(period))

	rows, err := p.client.historicalData(securities([]string{ticker}), historyFields, start, end)
	if err != nil {
		p.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get history")
		return nil
	}

	var hist []domain.HistoryBar
	for _, r := range rows {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			continue
		}
		hist = append(hist, domain.HistoryBar{
			Date:   date,
			Open:   r.Values["PX_OPEN"],
			High:   r.Values["PX_HIGH"],
			Low:    r.Values["PX_LOW"],
			Close:  r.Values["PX_LAST"],
			Volume: r.Values["PX_VOLUME"],
		})
	}
	sort.Slice(hist, func(i, j int) bool { return hist[i].Date.Before(hist[j].Date) })
	return hist
}

func valuePtr(r row, field string) *float64 {
	if v, ok := r.Values[field]; ok {
		return &v
	}
	return nil
}

// pctPtr reads a field the terminal quotes as a percentage and rescales it
// to the fraction convention the normalizers expect.
func pctPtr(r row, field string) *float64 {
	if v, ok := r.Values[field]; ok {
		f := v / 100.0
		return &f
	}
	return nil
}

func scaledPtr(r row, field string, scale float64) *float64 {
	if v, ok := r.Values[field]; ok {
		f := v * scale
		return &f
	}
	return nil
}

func intPtrOf(r row, field string) *int64 {
	if v, ok := r.Values[field]; ok {
		i := int64(v)
		return &i
	}
	return nil
}

func nonZeroPtr(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
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

func errString(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
