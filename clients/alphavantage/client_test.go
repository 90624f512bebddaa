package alphavantage

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient points a client at a test server and disables backoff sleeps.
func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient("test-key", zerolog.Nop())
	c.baseURL = server.URL
	c.retry.WithSleep(func(time.Duration) {})
	return c
}

func TestCheckAPIError(t *testing.T) {
	c := NewClient("test-key", zerolog.Nop())

	tests := []struct {
		name    string
		body    string
		wantErr error
		noError bool
	}{
		{
			name:    "clean payload",
			body:    `{"Global Quote": {"05. price": "123.45"}}`,
			noError: true,
		},
		{
			name:    "error message field",
			body:    `{"Error Message": "Invalid API call"}`,
			wantErr: ErrAPIMessage{Message: "Invalid API call"},
		},
		{
			name:    "note field",
			body:    `{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`,
			wantErr: ErrRateLimitExceeded{Note: "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."},
		},
		{
			name:    "information field mentioning rate",
			body:    `{"Information": "Your rate limit has been reached."}`,
			wantErr: ErrRateLimitExceeded{Note: "Your rate limit has been reached."},
		},
		{
			name:    "information field without rate",
			body:    `{"Information": "The OVERVIEW endpoint now includes more fields."}`,
			noError: true,
		},
		{
			name:    "non-JSON quota body",
			body:    "Thank you for using Alpha Vantage!",
			wantErr: ErrRateLimitExceeded{Note: "Thank you for using Alpha Vantage!"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.checkAPIError([]byte(tt.body))
			if tt.noError {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestAPICallRetriesRateLimit(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.Write([]byte(`{"Note": "rate limited"}`))
			return
		}
		w.Write([]byte(`{"Global Quote": {"05. price": "101.00"}}`))
	})

	quote, err := c.globalQuote("AAPL")

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "101.00", quote["05. price"])
}

func TestAPICallSurfacesFinalError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error Message": "Invalid API call"}`))
	})

	_, err := c.globalQuote("NOPE")

	assert.Equal(t, ErrAPIMessage{Message: "Invalid API call"}, err)
}

func TestAPICallSendsKeyAndFunction(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		assert.Equal(t, "IBM", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"Global Quote": {}}`))
	})

	_, err := c.globalQuote("IBM")
	require.NoError(t, err)
}

func TestTreasuryYield3Month(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TREASURY_YIELD", r.URL.Query().Get("function"))
		assert.Equal(t, "3month", r.URL.Query().Get("maturity"))
		w.Write([]byte(`{"data": [
			{"date": "2025-06-13", "value": "."},
			{"date": "2025-06-12", "value": "5.23"}
		]}`))
	})

	yield, err := c.treasuryYield3Month()

	require.NoError(t, err)
	assert.Equal(t, 5.23, yield, "skips unparseable leading data points")
}
