package domain

import "time"

// DataProvider defines the tabular market data contract. All providers
// return long-format price bars sorted by (ticker, date) ascending.
//
// Failure semantics differ by operation on purpose:
//   - FetchDailyPrices and FetchCurrentPrices may return an error for a
//     whole-call failure; per-ticker failures degrade the result instead.
//   - FetchTickerInfo and FetchRiskFreeRate never fail: they return
//     documented defaults so downstream consumers never branch on errors.
type DataProvider interface {
	// Name returns the human-readable provider name ("Yahoo Finance", ...).
	Name() string

	// SupportsBidAsk reports whether bars carry bid/ask data. Yahoo and
	// Alpha Vantage do not; Bloomberg and Interactive Brokers do. Callers
	// use it to pick a fill model.
	SupportsBidAsk() bool

	// FetchDailyPrices fetches daily OHLCV + adjusted close for the given
	// tickers within [start, end]. An empty ticker list yields an empty,
	// non-nil slice. Providers that fetch per ticker log and skip failed
	// tickers; providers that batch all tickers into one upstream call fail
	// the whole request instead.
	FetchDailyPrices(tickers []string, start, end time.Time) ([]PriceBar, error)

	// FetchTickerInfo fetches the fixed-key fundamentals record for one
	// ticker. On any failure it returns DefaultTickerInfo() rather than
	// an error.
	FetchTickerInfo(ticker string) TickerInfo

	// FetchCurrentPrices returns the latest price per ticker. Tickers that
	// fail individually are absent from the map.
	FetchCurrentPrices(tickers []string) (map[string]float64, error)

	// FetchRiskFreeRate returns the current annualized risk-free rate as a
	// decimal (0.05 for 5%). On failure it returns the fixed fallback
	// FallbackRiskFreeRate, never an error: this rate feeds discounting
	// and must always be present.
	FetchRiskFreeRate() float64
}

// MarketDataProvider defines the record-based market data contract.
// None of the nine operations return an error: dict-shaped results carry an
// Error field when the lookup fails, table-shaped results come back nil.
type MarketDataProvider interface {
	// Name returns the human-readable provider name.
	Name() string

	// GetTickerHandle returns the provider-native handle for a ticker.
	GetTickerHandle(ticker string) TickerHandle

	// GetCompanyOverview returns name, sector, industry, market cap and
	// listing details.
	GetCompanyOverview(ticker string) CompanyOverview

	// GetPriceData returns price performance over the period token
	// (one of "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max").
	GetPriceData(ticker, period string) PricePerformance

	// GetFundamentals returns the valuation/profitability/growth bundle.
	GetFundamentals(ticker string) FundamentalsBundle

	// GetInfo returns the legacy-compatible info record keyed in the Yahoo
	// vocabulary.
	GetInfo(ticker string) InfoDict

	// GetInsiderTransactions returns reported insider trades, or nil when
	// the source has none or does not provide them.
	GetInsiderTransactions(ticker string) []InsiderTransaction

	// GetEarningsHistory returns quarterly reports with estimates and
	// surprises, newest first, or nil on failure.
	GetEarningsHistory(ticker string) []EarningsRow

	// GetQuarterlyEarnings returns bare quarter/EPS pairs, or nil.
	GetQuarterlyEarnings(ticker string) []QuarterlyEarning

	// GetHistory returns daily bars trimmed to the period window,
	// chronologically ascending, or nil on failure.
	GetHistory(ticker, period string) []HistoryBar
}

// Closer is the optional teardown capability. Adapters that hold sessions
// (Bloomberg gateway, IBKR websocket) implement it; the factory cache calls
// it best-effort during ClearCache.
type Closer interface {
	Close() error
}

// FallbackRiskFreeRate is returned when no source can supply a rate.
const FallbackRiskFreeRate = 0.05
