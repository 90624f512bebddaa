// Package alphavantage implements both market data contracts against the
// Alpha Vantage REST API. The API is keyed (ALPHAVANTAGE_API_KEY), strictly
// one ticker per request, and signals errors in the JSON body rather than
// via HTTP status, so every call goes through the shared retry policy with
// in-band error detection.
package alphavantage

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketdata/pkg/retry"
)

const baseURL = "https://www.alphavantage.co/query"

// Client is a low-level Alpha Vantage API client. All requests share one
// HTTP client and the retry policy (3 attempts, 2s->4s->8s backoff).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      *retry.Policy
	log        zerolog.Logger
}

// NewClient creates a new Alpha Vantage client with the given key.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      retry.New(log),
		log:        log.With().Str("client", "alphavantage").Logger(),
	}
}

// SetHTTPClient replaces the transport. Used by factory options and tests.
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// apiCall executes one request with the retry policy. The key is appended
// to every call.
func (c *Client) apiCall(function string, params map[string]string) ([]byte, error) {
	values := url.Values{}
	values.Set("function", function)
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("apikey", c.apiKey)

	reqURL := c.baseURL + "?" + values.Encode()

	var body []byte
	err := c.retry.Do(function, func() error {
		resp, err := c.httpClient.Get(reqURL)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("alpha vantage returned status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		return c.checkAPIError(body)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// checkAPIError detects the two in-band error conventions: an explicit
// "Error Message" field and the rate-limit notice ("Note", or "Information"
// mentioning the rate).
func (c *Client) checkAPIError(body []byte) error {
	var envelope struct {
		ErrorMessage string `json:"Error Message"`
		Note         string `json:"Note"`
		Information  string `json:"Information"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		// Non-JSON body ("Thank you for using Alpha Vantage!") means the
		// free-tier quota ran out.
		return ErrRateLimitExceeded{Note: strings.TrimSpace(string(body))}
	}

	if envelope.ErrorMessage != "" {
		return ErrAPIMessage{Message: envelope.ErrorMessage}
	}
	if envelope.Note != "" {
		c.log.Warn().Str("note", envelope.Note).Msg("Rate limit notice")
		return ErrRateLimitExceeded{Note: envelope.Note}
	}
	if envelope.Information != "" && strings.Contains(strings.ToLower(envelope.Information), "rate") {
		c.log.Warn().Str("information", envelope.Information).Msg("Rate limit notice")
		return ErrRateLimitExceeded{Note: envelope.Information}
	}

	return nil
}

// Typed response shapes. Alpha Vantage serializes every number as a string;
// the parse helpers coerce them.

type dailySeries struct {
	TimeSeries map[string]map[string]string `json:"Time Series (Daily)"`
}

type globalQuote struct {
	Quote map[string]string `json:"Global Quote"`
}

type earningsResponse struct {
	QuarterlyEarnings []map[string]string `json:"quarterlyEarnings"`
}

type annualReports struct {
	AnnualReports []map[string]string `json:"annualReports"`
}

type treasuryYield struct {
	Data []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"data"`
}

// dailyTimeSeries fetches the full adjusted daily series for one symbol.
func (c *Client) dailyTimeSeries(symbol string) (map[string]map[string]string, error) {
	body, err := c.apiCall("TIME_SERIES_DAILY_ADJUSTED", map[string]string{
		"symbol":     symbol,
		"outputsize": "full",
		"datatype":   "json",
	})
	if err != nil {
		return nil, err
	}

	var series dailySeries
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, fmt.Errorf("failed to parse daily series: %w", err)
	}
	return series.TimeSeries, nil
}

// companyOverview fetches the OVERVIEW endpoint as a flat string map.
func (c *Client) companyOverview(symbol string) (map[string]string, error) {
	body, err := c.apiCall("OVERVIEW", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}

	var overview map[string]string
	if err := json.Unmarshal(body, &overview); err != nil {
		return nil, fmt.Errorf("failed to parse overview: %w", err)
	}
	return overview, nil
}

// globalQuote fetches the latest quote for one symbol.
func (c *Client) globalQuote(symbol string) (map[string]string, error) {
	body, err := c.apiCall("GLOBAL_QUOTE", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}

	var quote globalQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("failed to parse global quote: %w", err)
	}
	return quote.Quote, nil
}

// earnings fetches quarterly earnings reports, newest first.
func (c *Client) earnings(symbol string) ([]map[string]string, error) {
	body, err := c.apiCall("EARNINGS", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}

	var resp earningsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse earnings: %w", err)
	}
	return resp.QuarterlyEarnings, nil
}

// incomeStatements fetches annual income statements, most recent first.
func (c *Client) incomeStatements(symbol string) ([]map[string]string, error) {
	return c.annualReports("INCOME_STATEMENT", symbol)
}

// balanceSheets fetches annual balance sheets, most recent first.
func (c *Client) balanceSheets(symbol string) ([]map[string]string, error) {
	return c.annualReports("BALANCE_SHEET", symbol)
}

func (c *Client) annualReports(function, symbol string) ([]map[string]string, error) {
	body, err := c.apiCall(function, map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}

	var resp annualReports
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", function, err)
	}
	return resp.AnnualReports, nil
}

// treasuryYield3Month fetches the most recent 3-month Treasury yield as a
// percentage value.
func (c *Client) treasuryYield3Month() (float64, error) {
	body, err := c.apiCall("TREASURY_YIELD", map[string]string{
		"interval": "daily",
		"maturity": "3month",
	})
	if err != nil {
		return 0, err
	}

	var resp treasuryYield
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse treasury yield: %w", err)
	}

	for _, point := range resp.Data {
		if v := parseFloat64Ptr(point.Value); v != nil {
			return *v, nil
		}
	}
	return 0, fmt.Errorf("no treasury yield data points")
}
