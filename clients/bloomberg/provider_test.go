package bloomberg

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketdata/config"
	"github.com/aristath/marketdata/domain"
)

// fakeGateway runs an in-process gateway speaking the frame protocol and
// returns its address. The handler sees each decoded request; the response
// gets the matching correlation ID stamped on.
func fakeGateway(t *testing.T, handler func(req request) response) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				for {
					var req request
					if err := readFrame(c, &req); err != nil {
						return
					}
					resp := handler(req)
					resp.RequestID = req.RequestID
					if err := writeFrame(c, resp); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestNewProviderUnreachable(t *testing.T) {
	_, err := NewProvider("127.0.0.1:1", zerolog.Nop())

	var cfgErr domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, DisplayName, cfgErr.Provider)
}

func TestFetchDailyPricesBatched(t *testing.T) {
	addr := fakeGateway(t, func(req request) response {
		assert.Equal(t, "HistoricalDataRequest", req.Operation)
		assert.Equal(t, []string{"AAPL US Equity", "MSFT US Equity"}, req.Securities)
		assert.NotEmpty(t, req.RequestID)
		return response{Rows: []row{
			{Security: "MSFT US Equity", Date: "2025-06-02", Values: map[string]float64{
				"PX_OPEN": 410, "PX_HIGH": 412, "PX_LOW": 409, "PX_LAST": 411, "PX_VOLUME": 900,
				"PX_BID": 410.9, "PX_ASK": 411.1,
			}},
			{Security: "AAPL US Equity", Date: "2025-06-02", Values: map[string]float64{
				"PX_OPEN": 195, "PX_HIGH": 197, "PX_LOW": 194, "PX_LAST": 196, "PX_VOLUME": 1200,
			}},
		}}
	})

	p, err := NewProvider(addr, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	bars, err := p.FetchDailyPrices([]string{"AAPL", "MSFT"}, start, end)

	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "AAPL", bars[0].Ticker, "sorted by ticker")
	assert.Equal(t, "MSFT", bars[1].Ticker)
	assert.Equal(t, 410.9, bars[1].Bid)
	assert.Equal(t, 411.1, bars[1].Ask)
	assert.Equal(t, 411.0, bars[1].AdjClose, "no separate adjusted close on the terminal feed")
}

func TestFetchDailyPricesFailsWhole(t *testing.T) {
	addr := fakeGateway(t, func(req request) response {
		return response{Error: "invalid security"}
	})

	p, err := NewProvider(addr, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	_, err = p.FetchDailyPrices([]string{"AAPL", "BAD"}, time.Now().AddDate(0, -1, 0), time.Now())

	require.Error(t, err, "batched call fails whole, no partial results")
	assert.Contains(t, err.Error(), "invalid security")
}

func TestFetchTickerInfo(t *testing.T) {
	addr := fakeGateway(t, func(req request) response {
		assert.Equal(t, "ReferenceDataRequest", req.Operation)
		return response{Rows: []row{{
			Security: "IBM US Equity",
			Values: map[string]float64{
				"CUR_MKT_CAP": 245000, "EQY_BETA": 0.7, "EQY_SH_OUT": 920,
				"VOLUME_AVG_30D": 4200000, "EQY_DVD_YLD_IND": 2.54,
				"SI_PERCENT_EQUITY_FLOAT": 2.5,
			},
			Strings: map[string]string{
				"GICS_SECTOR_NAME":   "Information Technology",
				"GICS_INDUSTRY_NAME": "IT Services",
			},
		}}}
	})

	p, err := NewProvider(addr, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	info := p.FetchTickerInfo("IBM")

	assert.Equal(t, 245e9, info.MarketCap, "terminal quotes market cap in millions")
	assert.Equal(t, "Information Technology", info.Sector)
	assert.Equal(t, 0.7, info.Beta)
	assert.Equal(t, int64(920000000), info.SharesOutstanding)
	assert.Equal(t, int64(4200000), info.AvgVolume)
	assert.InDelta(t, 0.0254, info.DividendYield, 1e-9)
	assert.InDelta(t, 0.025, info.ShortPctOfFloat, 1e-9)
}

func TestFetchTickerInfoDefaultsOnFailure(t *testing.T) {
	addr := fakeGateway(t, func(req request) response {
		return response{Error: "unknown security"}
	})

	p, err := NewProvider(addr, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	assert.Equal(t, domain.DefaultTickerInfo(), p.FetchTickerInfo("NOPE"))
}

func TestFetchCurrentPrices(t *testing.T) {
	addr := fakeGateway(t, func(req request) response {
		assert.Equal(t, []string{"PX_LAST"}, req.Fields)
		return response{Rows: []row{
			{Security: "AAPL US Equity", Values: map[string]float64{"PX_LAST": 195.5}},
			{Security: "MSFT US Equity", Values: map[string]float64{"PX_LAST": 0}},
		}}
	})

	p, err := NewProvider(addr, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	prices, err := p.FetchCurrentPrices([]string{"AAPL", "MSFT"})

	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"AAPL": 195.5}, prices, "zero prices are dropped")
}

func TestFetchRiskFreeRate(t *testing.T) {
	addr := fakeGateway(t, func(req request) response {
		assert.Equal(t, []string{riskFreeSecurity}, req.Securities)
		return response{Rows: []row{
			{Security: riskFreeSecurity, Values: map[string]float64{"PX_LAST": 5.25}},
		}}
	})

	p, err := NewProvider(addr, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	assert.InDelta(t, 0.0525, p.FetchRiskFreeRate(), 1e-9)
}

func TestSupportsBidAsk(t *testing.T) {
	addr := fakeGateway(t, func(req request) response { return response{} })

	p, err := NewProvider(addr, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	assert.True(t, p.SupportsBidAsk())
	assert.Equal(t, DisplayName, p.Name())
}

func TestIsAvailablePortOpen(t *testing.T) {
	addr := fakeGateway(t, func(req request) response { return response{} })
	t.Setenv(config.EnvBloombergGateway, addr)
	t.Setenv(config.EnvBloombergProcess, "no-such-process-zzz")

	assert.True(t, IsAvailable())
}

func TestIsAvailableFalse(t *testing.T) {
	t.Setenv(config.EnvBloombergGateway, "127.0.0.1:1")
	t.Setenv(config.EnvBloombergProcess, "no-such-process-zzz")

	assert.False(t, IsAvailable())
}
