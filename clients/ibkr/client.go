// Package ibkr implements both market data contracts against a local
// Interactive Brokers client-portal gateway. Lookups go over the gateway's
// REST endpoints (self-signed TLS on localhost); a websocket session keeps
// the gateway's brokerage session alive while the client exists. Symbols
// must first be resolved to contract IDs, which are cached per client.
package ibkr

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	requestTimeout = 15 * time.Second
	probeTimeout   = 2 * time.Second
)

// Snapshot field codes of the gateway's market data endpoint.
const (
	fieldLast     = "31"
	fieldBid      = "84"
	fieldAsk      = "86"
	fieldVolume   = "87"
	fieldDivYield = "7287"
	fieldMktCap   = "7289"
	fieldPE       = "7290"
	fieldEPS      = "7291"
)

// Client is the low-level gateway client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu     sync.Mutex
	conids map[string]int64
	ws     *websocket.Conn
}

// NewClient connects to the gateway at baseURL and opens the keepalive
// session. The gateway serves a self-signed certificate on localhost, so
// verification is disabled.
func NewClient(baseURL string, log zerolog.Logger) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		conids: make(map[string]int64),
		log:    log.With().Str("client", "ibkr").Logger(),
	}

	if err := c.checkSession(); err != nil {
		return nil, err
	}
	if err := c.openWebsocket(); err != nil {
		// The REST session works without it; the websocket only keeps the
		// session from idling out.
		c.log.Warn().Err(err).Msg("Keepalive websocket unavailable")
	}
	return c, nil
}

// Close implements domain.Closer
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return nil
	}
	err := c.ws.Close(websocket.StatusNormalClosure, "session closed")
	c.ws = nil
	return err
}

// checkSession verifies the gateway is up and authenticated.
func (c *Client) checkSession() error {
	var status struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := c.get("/iserver/auth/status", nil, &status); err != nil {
		return fmt.Errorf("gateway unreachable at %s: %w", c.baseURL, err)
	}
	if !status.Authenticated {
		return fmt.Errorf("gateway at %s has no authenticated session", c.baseURL)
	}
	return nil
}

// openWebsocket dials the gateway's streaming endpoint, which doubles as the
// session keepalive.
func (c *Client) openWebsocket() error {
	wsURL, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	case "http":
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimSuffix(wsURL.Path, "/api") + "/api/ws"

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	// The dial client must not carry a Timeout; the websocket library
	// insists on context-based cancellation.
	ws, _, err := websocket.Dial(ctx, wsURL.String(), &websocket.DialOptions{
		HTTPClient: &http.Client{Transport: c.httpClient.Transport},
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	return nil
}

// get performs one REST call against the gateway. Each request carries a
// correlation ID so gateway logs can be matched to client logs.
func (c *Client) get(path string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	c.log.Debug().Str("request_id", requestID).Str("path", path).Msg("Gateway request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// secdef is one match from the contract search endpoint.
type secdef struct {
	Conid       int64  `json:"conid"`
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Description string `json:"description"`
	Currency    string `json:"currency"`
	Exchange    string `json:"listingExchange"`
}

// resolveConid maps a ticker symbol to its contract ID, preferring an exact
// symbol match. Resolutions are cached for the client's lifetime.
func (c *Client) resolveConid(ticker string) (int64, error) {
	c.mu.Lock()
	if conid, ok := c.conids[ticker]; ok {
		c.mu.Unlock()
		return conid, nil
	}
	c.mu.Unlock()

	def, err := c.searchContract(ticker)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.conids[ticker] = def.Conid
	c.mu.Unlock()
	return def.Conid, nil
}

// searchContract runs the contract search and picks the best match.
func (c *Client) searchContract(ticker string) (*secdef, error) {
	var matches []secdef
	err := c.get("/iserver/secdef/search", url.Values{
		"symbol":  {ticker},
		"secType": {"STK"},
	}, &matches)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no contract found for %s", ticker)
	}

	for i := range matches {
		if strings.EqualFold(matches[i].Symbol, ticker) {
			return &matches[i], nil
		}
	}
	return &matches[0], nil
}

// snapshot fetches current market data fields for a batch of contract IDs,
// keyed back by conid.
func (c *Client) snapshot(conids []int64, fields []string) (map[int64]map[string]string, error) {
	ids := make([]string, len(conids))
	for i, id := range conids {
		ids[i] = fmt.Sprintf("%d", id)
	}

	var rows []map[string]json.RawMessage
	err := c.get("/iserver/marketdata/snapshot", url.Values{
		"conids": {strings.Join(ids, ",")},
		"fields": {strings.Join(fields, ",")},
	}, &rows)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]map[string]string, len(rows))
	for _, r := range rows {
		var conid int64
		if raw, ok := r["conid"]; ok {
			json.Unmarshal(raw, &conid)
		}
		if conid == 0 {
			continue
		}
		values := make(map[string]string, len(r))
		for k, raw := range r {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				values[k] = s
				continue
			}
			var f float64
			if err := json.Unmarshal(raw, &f); err == nil {
				values[k] = fmt.Sprintf("%g", f)
			}
		}
		out[conid] = values
	}
	return out, nil
}

// historyBar is one bar from the gateway's history endpoint; timestamps are
// epoch milliseconds.
type historyBar struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

// history fetches daily bars for one contract over a gateway period token
// ("1m", "1y", ...), oldest first.
func (c *Client) history(conid int64, period string) ([]historyBar, error) {
	var resp struct {
		Data []historyBar `json:"data"`
	}
	err := c.get("/iserver/marketdata/history", url.Values{
		"conid":  {fmt.Sprintf("%d", conid)},
		"period": {period},
		"bar":    {"1d"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
