// Package yahoo implements both market data contracts against the free
// Yahoo Finance web endpoints. It is the default provider and the fallback
// target of the safe factories: construction never fails and no credential
// is required.
package yahoo

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	quoteURL   = "https://query1.finance.yahoo.com/v7/finance/quote"
	chartURL   = "https://query1.finance.yahoo.com/v8/finance/chart"
	summaryURL = "https://query1.finance.yahoo.com/v10/finance/quoteSummary"

	// 13-week T-bill index, the default risk-free rate source.
	riskFreeSymbol = "^IRX"
)

// Yahoo rejects requests without a browser-ish user agent.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// quoteFields is the field list requested from the quote endpoint. One call
// serves the overview, fundamentals and info operations.
const quoteFields = "symbol,longName,shortName,currency,exchange,fullExchangeName," +
	"regularMarketPrice,currentPrice,marketCap,sector,industry,country," +
	"trailingPE,forwardPE,pegRatio,priceToBook,enterpriseToEbitda," +
	"profitMargins,operatingMargins,grossMargins,returnOnEquity,returnOnAssets," +
	"revenueGrowth,earningsGrowth,dividendYield,payoutRatio,debtToEquity,currentRatio," +
	"totalRevenue,ebitda,totalCash,totalDebt,beta,sharesOutstanding," +
	"averageDailyVolume3Month,shortPercentOfFloat,recommendationKey," +
	"targetMeanPrice,targetHighPrice,targetLowPrice,numberOfAnalystOpinions"

// Client is a Yahoo Finance web API client. Responses are loosely shaped
// (fields appear and disappear per quote type), so extraction goes through
// gjson instead of rigid structs.
type Client struct {
	quoteURL   string
	chartURL   string
	summaryURL string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		quoteURL:   quoteURL,
		chartURL:   chartURL,
		summaryURL: summaryURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// SetHTTPClient replaces the transport. Used by factory options and tests.
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// get performs a GET request with browser headers and returns the body.
func (c *Client) get(reqURL string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// quote fetches the quote record for one symbol.
func (c *Client) quote(symbol string) (gjson.Result, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("fields", quoteFields)

	body, err := c.get(c.quoteURL + "?" + params.Encode())
	if err != nil {
		return gjson.Result{}, err
	}

	if e := gjson.GetBytes(body, "quoteResponse.error"); e.Exists() && e.Type != gjson.Null {
		return gjson.Result{}, fmt.Errorf("yahoo quote error: %s", e.String())
	}

	result := gjson.GetBytes(body, "quoteResponse.result.0")
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("no quote data returned for symbol %s", symbol)
	}

	return result, nil
}

// chartBar is one parsed bar from the chart endpoint.
type chartBar struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// chartRange fetches daily bars for a period token ("6mo", "1y", "max", ...).
func (c *Client) chartRange(symbol, rng string) ([]chartBar, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", rng)
	return c.chart(symbol, params)
}

// chartWindow fetches daily bars between two instants.
func (c *Client) chartWindow(symbol string, start, end time.Time) ([]chartBar, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	return c.chart(symbol, params)
}

func (c *Client) chart(symbol string, params url.Values) ([]chartBar, error) {
	body, err := c.get(c.chartURL + "/" + url.PathEscape(symbol) + "?" + params.Encode())
	if err != nil {
		return nil, err
	}

	if e := gjson.GetBytes(body, "chart.error"); e.Exists() && e.Type != gjson.Null {
		return nil, fmt.Errorf("yahoo chart error: %s", e.String())
	}

	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		c.log.Warn().Str("symbol", symbol).Msg("No chart data returned")
		return []chartBar{}, nil
	}

	timestamps := result.Get("timestamp").Array()
	opens := result.Get("indicators.quote.0.open").Array()
	highs := result.Get("indicators.quote.0.high").Array()
	lows := result.Get("indicators.quote.0.low").Array()
	closes := result.Get("indicators.quote.0.close").Array()
	volumes := result.Get("indicators.quote.0.volume").Array()
	adjCloses := result.Get("indicators.adjclose.0.adjclose").Array()

	bars := make([]chartBar, 0, len(timestamps))
	for i, ts := range timestamps {
		if i >= len(opens) || i >= len(highs) || i >= len(lows) || i >= len(closes) {
			continue
		}
		// Yahoo pads halted sessions with nulls; gjson yields zeros for those.
		if opens[i].Float() == 0 && highs[i].Float() == 0 &&
			lows[i].Float() == 0 && closes[i].Float() == 0 {
			continue
		}

		adjClose := closes[i].Float()
		if i < len(adjCloses) && adjCloses[i].Float() != 0 {
			adjClose = adjCloses[i].Float()
		}
		volume := 0.0
		if i < len(volumes) {
			volume = volumes[i].Float()
		}

		bars = append(bars, chartBar{
			Date:     time.Unix(ts.Int(), 0).UTC(),
			Open:     opens[i].Float(),
			High:     highs[i].Float(),
			Low:      lows[i].Float(),
			Close:    closes[i].Float(),
			AdjClose: adjClose,
			Volume:   volume,
		})
	}

	return bars, nil
}

// quoteSummary fetches one quoteSummary module for a symbol.
func (c *Client) quoteSummary(symbol, module string) (gjson.Result, error) {
	params := url.Values{}
	params.Set("modules", module)

	body, err := c.get(c.summaryURL + "/" + url.PathEscape(symbol) + "?" + params.Encode())
	if err != nil {
		return gjson.Result{}, err
	}

	if e := gjson.GetBytes(body, "quoteSummary.error"); e.Exists() && e.Type != gjson.Null {
		return gjson.Result{}, fmt.Errorf("yahoo quoteSummary error: %s", e.String())
	}

	result := gjson.GetBytes(body, "quoteSummary.result.0."+module)
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("no %s data returned for symbol %s", module, symbol)
	}

	return result, nil
}

// Helpers to extract optional fields from gjson records.

func floatPtr(r gjson.Result, path string) *float64 {
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	f := v.Float()
	return &f
}

func stringPtr(r gjson.Result, path string) *string {
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null || v.String() == "" {
		return nil
	}
	s := v.String()
	return &s
}
