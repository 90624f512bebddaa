// Package domain defines the provider contracts and the normalized data
// shapes every market data adapter must produce. It is pure: no network,
// no upstream-specific vocabulary.
package domain

import "time"

// PriceBar is one OHLCV(+adjusted close) observation for one ticker on one
// date. Bid/Ask are populated only by providers whose SupportsBidAsk is true;
// everywhere else they stay 0. Missing numeric fields default to 0, never nil,
// so tabular consumers never branch on presence.
type PriceBar struct {
	Date     time.Time `json:"date"`
	Ticker   string    `json:"ticker"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   float64   `json:"volume"`
	Bid      float64   `json:"bid,omitempty"`
	Ask      float64   `json:"ask,omitempty"`
}

// TickerInfo is the fixed-key fundamentals record of the tabular contract.
// Every field is always meaningful: unavailable data gets the documented
// defaults (0 for numerics, "" for strings, 1.0 for Beta) rather than a
// missing-value marker.
type TickerInfo struct {
	MarketCap         float64 `json:"market_cap"`
	Sector            string  `json:"sector"`
	Industry          string  `json:"industry"`
	Beta              float64 `json:"beta"`
	SharesOutstanding int64   `json:"shares_outstanding"`
	AvgVolume         int64   `json:"avg_volume"`
	DividendYield     float64 `json:"dividend_yield"`
	ShortPctOfFloat   float64 `json:"short_pct_of_float"`
}

// DefaultTickerInfo returns the record used when a lookup fails outright.
// Beta defaults to 1.0 (market beta) so downstream risk math stays sane.
func DefaultTickerInfo() TickerInfo {
	return TickerInfo{Beta: 1.0}
}

// TickerHandle is the provider-native handle for a ticker. Providers without
// a native handle concept return just the ticker and their own name.
type TickerHandle struct {
	Ticker   string `json:"ticker"`
	Provider string `json:"provider"`
}

// CompanyOverview describes a company at a glance. On lookup failure only
// Ticker and Error are set.
type CompanyOverview struct {
	Ticker             string `json:"ticker"`
	Name               string `json:"name"`
	Sector             string `json:"sector"`
	Industry           string `json:"industry"`
	MarketCap          float64 `json:"market_cap"`
	MarketCapFormatted string `json:"market_cap_formatted,omitempty"`
	Currency           string `json:"currency"`
	Exchange           string `json:"exchange"`
	Description        string `json:"description,omitempty"`
	Website            string `json:"website,omitempty"`
	Employees          int64  `json:"employees,omitempty"`
	Country            string `json:"country,omitempty"`
	Error              string `json:"error,omitempty"`
}

// PricePerformance summarizes price action over a lookback period.
// All derived metrics are computed locally from the history window.
type PricePerformance struct {
	Ticker             string  `json:"ticker"`
	CurrentPrice       float64 `json:"current_price"`
	PeriodReturnPct    float64 `json:"period_return_pct"`
	High52W            float64 `json:"high_52w"`
	Low52W             float64 `json:"low_52w"`
	PctFromHigh        float64 `json:"pct_from_high"`
	PctFromLow         float64 `json:"pct_from_low"`
	AvgDailyVolume     int64   `json:"avg_daily_volume"`
	AvgVolumeFormatted string  `json:"avg_volume_formatted,omitempty"`
	Period             string  `json:"period"`
	DataPoints         int     `json:"data_points"`
	Error              string  `json:"error,omitempty"`
}

// FundamentalsBundle carries valuation, profitability, growth, income
// statement and balance sheet figures. This contract's consumers distinguish
// "unknown" from "zero", so optional numerics are pointers that stay nil when
// the source has no figure. Percentages are pre-rendered strings ("25.3%").
type FundamentalsBundle struct {
	Ticker string `json:"ticker"`

	// Valuation
	PETrailing   *float64 `json:"pe_trailing"`
	PEForward    *float64 `json:"pe_forward"`
	PEGRatio     *float64 `json:"peg_ratio"`
	PriceToBook  *float64 `json:"price_to_book"`
	PriceToSales *float64 `json:"price_to_sales"`
	EVToEBITDA   *float64 `json:"ev_to_ebitda"`
	EVToRevenue  *float64 `json:"ev_to_revenue"`

	// Profitability
	ProfitMargin    *string `json:"profit_margin"`
	OperatingMargin *string `json:"operating_margin"`
	GrossMargin     *string `json:"gross_margin"`
	ROE             *string `json:"roe"`
	ROA             *string `json:"roa"`

	// Growth
	RevenueGrowth  *string `json:"revenue_growth"`
	EarningsGrowth *string `json:"earnings_growth"`

	// Income statement
	Revenue          *float64 `json:"revenue"`
	RevenueFormatted *string  `json:"revenue_formatted"`
	EBITDA           *float64 `json:"ebitda"`
	EBITDAFormatted  *string  `json:"ebitda_formatted"`
	NetIncome        *float64 `json:"net_income"`

	// Balance sheet
	TotalDebt          *float64 `json:"total_debt"`
	TotalDebtFormatted *string  `json:"total_debt_formatted"`
	TotalCash          *float64 `json:"total_cash"`
	TotalCashFormatted *string  `json:"total_cash_formatted"`
	DebtToEquity       *float64 `json:"debt_to_equity"`
	CurrentRatio       *float64 `json:"current_ratio"`

	// Dividends
	DividendYield *string `json:"dividend_yield"`
	PayoutRatio   *string `json:"payout_ratio"`

	// Analyst
	TargetMeanPrice *float64 `json:"target_mean_price"`
	TargetHighPrice *float64 `json:"target_high_price"`
	TargetLowPrice  *float64 `json:"target_low_price"`
	Recommendation  *string  `json:"recommendation"`
	NumAnalysts     *int64   `json:"num_analysts"`

	Error string `json:"error,omitempty"`
}

// InfoDict is the legacy-compatible info record. Its keys follow the Yahoo
// quote vocabulary so consumers written against the Yahoo adapter work
// unmodified against any other source; every other adapter maps its native
// field names onto these.
type InfoDict struct {
	Ticker             string   `json:"ticker"`
	LongName           string   `json:"longName"`
	ShortName          string   `json:"shortName"`
	Sector             string   `json:"sector"`
	Industry           string   `json:"industry"`
	MarketCap          float64  `json:"marketCap"`
	TrailingPE         *float64 `json:"trailingPE"`
	ForwardPE          *float64 `json:"forwardPE"`
	PEGRatio           *float64 `json:"pegRatio"`
	PriceToBook        *float64 `json:"priceToBook"`
	EnterpriseToEBITDA *float64 `json:"enterpriseToEbitda"`
	ProfitMargins      *float64 `json:"profitMargins"`
	RevenueGrowth      *float64 `json:"revenueGrowth"`
	ReturnOnEquity     *float64 `json:"returnOnEquity"`
	DividendYield      *float64 `json:"dividendYield"`
	DebtToEquity       *float64 `json:"debtToEquity"`
	RecommendationKey  *string  `json:"recommendationKey"`
	Beta               *float64 `json:"beta"`
	SharesOutstanding  *float64 `json:"sharesOutstanding"`
	AverageVolume      *float64 `json:"averageVolume"`
	ShortPctOfFloat    *float64 `json:"shortPercentOfFloat"`
	Description        string   `json:"description,omitempty"`
	Country            string   `json:"country,omitempty"`
	Exchange           string   `json:"exchange,omitempty"`
	Currency           string   `json:"currency,omitempty"`
	Error              string   `json:"error,omitempty"`
}

// InsiderTransaction is one reported insider trade.
type InsiderTransaction struct {
	Date     time.Time `json:"date"`
	Insider  string    `json:"insider"`
	Position string    `json:"position"`
	Type     string    `json:"type"`
	Shares   int64     `json:"shares"`
	Value    float64   `json:"value"`
}

// EarningsRow is one quarterly earnings report with analyst estimates.
type EarningsRow struct {
	Date        string   `json:"earnings_date"`
	EPSEstimate *float64 `json:"eps_estimate"`
	ReportedEPS *float64 `json:"reported_eps"`
	SurprisePct *float64 `json:"surprise_pct"`
}

// QuarterlyEarning is a bare quarter/EPS pair, the fallback earnings shape.
type QuarterlyEarning struct {
	Quarter  string   `json:"quarter"`
	Earnings *float64 `json:"earnings"`
}

// HistoryBar is the simplified single-ticker bar used by the record
// contract's history operation and the tabular price-history convenience.
type HistoryBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}
