package bloomberg

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketdata/domain"
)

// DisplayName is the registry name of this provider.
const DisplayName = "Bloomberg"

// riskFreeSecurity is the 3-month US Treasury bill generic yield index.
const riskFreeSecurity = "USGG3M Index"

var historyFields = []string{
	"PX_OPEN", "PX_HIGH", "PX_LOW", "PX_LAST", "PX_VOLUME", "PX_BID", "PX_ASK",
}

var infoFields = []string{
	"CUR_MKT_CAP", "GICS_SECTOR_NAME", "GICS_INDUSTRY_NAME", "EQY_BETA",
	"EQY_SH_OUT", "VOLUME_AVG_30D", "EQY_DVD_YLD_IND", "SI_PERCENT_EQUITY_FLOAT",
}

// Provider implements domain.DataProvider against the terminal gateway.
// Requests are batched: one call covers every ticker, and a gateway failure
// fails the whole operation instead of degrading per ticker.
type Provider struct {
	client *Client
	log    zerolog.Logger
}

// NewProvider connects to the terminal gateway at addr. Construction fails
// with a ConfigError when no gateway is reachable; callers should consult
// IsAvailable first.
func NewProvider(addr string, log zerolog.Logger) (*Provider, error) {
	client, err := NewClient(addr, log)
	if err != nil {
		return nil, domain.ConfigError{Provider: DisplayName, Reason: err.Error()}
	}
	return &Provider{
		client: client,
		log:    log.With().Str("provider", "bloomberg").Logger(),
	}, nil
}

// Close implements domain.Closer
func (p *Provider) Close() error { return p.client.Close() }

// Name implements domain.DataProvider
func (p *Provider) Name() string { return DisplayName }

// SupportsBidAsk implements domain.DataProvider. The terminal feed carries
// real quote data, so bars include bid and ask.
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

	rows, err := p.client.historicalData(securities(tickers), historyFields, start, end)
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			continue
		}
		bars = append(bars, domain.PriceBar{
			Date:     date,
			Ticker:   tickerOf(r.Security),
			Open:     r.Values["PX_OPEN"],
			High:     r.Values["PX_HIGH"],
			Low:      r.Values["PX_LOW"],
			Close:    r.Values["PX_LAST"],
			AdjClose: r.Values["PX_LAST"],
			Volume:   r.Values["PX_VOLUME"],
			Bid:      r.Values["PX_BID"],
			Ask:      r.Values["PX_ASK"],
		})
	}

	domain.SortBars(bars)
	return bars, nil
}

// FetchTickerInfo implements domain.DataProvider
func (p *Provider) FetchTickerInfo(ticker string) domain.TickerInfo {
	rows, err := p.client.referenceData(securities([]string{ticker}), infoFields)
	if err != nil || len(rows) == 0 {
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("Reference data fetch failed, using defaults")
		return domain.DefaultTickerInfo()
	}
	r := rows[0]

	beta := 1.0
	if v, ok := r.Values["EQY_BETA"]; ok && v != 0 {
		beta = v
	}

	return domain.TickerInfo{
		// CUR_MKT_CAP comes back in millions.
		MarketCap:         r.Values["CUR_MKT_CAP"] * 1e6,
		Sector:            r.Strings["GICS_SECTOR_NAME"],
		Industry:          r.Strings["GICS_INDUSTRY_NAME"],
		Beta:              beta,
		SharesOutstanding: int64(r.Values["EQY_SH_OUT"] * 1e6),
		AvgVolume:         int64(r.Values["VOLUME_AVG_30D"]),
		DividendYield:     r.Values["EQY_DVD_YLD_IND"] / 100.0,
		ShortPctOfFloat:   r.Values["SI_PERCENT_EQUITY_FLOAT"] / 100.0,
	}
}

// FetchCurrentPrices implements domain.DataProvider. One batched reference
// data call; a gateway failure fails the whole lookup.
func (p *Provider) FetchCurrentPrices(tickers []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(tickers))
	if len(tickers) == 0 {
		return prices, nil
	}

	rows, err := p.client.referenceData(securities(tickers), []string{"PX_LAST"})
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		if price := r.Values["PX_LAST"]; price > 0 {
			prices[tickerOf(r.Security)] = price
		}
	}
	return prices, nil
}

// FetchRiskFreeRate implements domain.DataProvider. Uses the generic
// 3-month T-bill index; the quoted value is a percentage yield.
func (p *Provider) FetchRiskFreeRate() float64 {
	rows, err := p.client.referenceData([]string{riskFreeSecurity}, []string{"PX_LAST"})
	if err != nil || len(rows) == 0 {
		p.log.Warn().Err(err).Msg("Risk-free rate fetch failed, using fallback")
		return domain.FallbackRiskFreeRate
	}
	if yield := rows[0].Values["PX_LAST"]; yield > 0 {
		return yield / 100.0
	}
	return domain.FallbackRiskFreeRate
}

// securities maps plain tickers onto terminal security identifiers.
func securities(tickers []string) []string {
	secs := make([]string, len(tickers))
	for i, t := range tickers {
		secs[i] = t + " US Equity"
	}
	return secs
}

// tickerOf recovers the plain ticker from a security identifier.
func tickerOf(security string) string {
	if i := strings.IndexByte(security, ' '); i > 0 {
		return security[:i]
	}
	return security
}
