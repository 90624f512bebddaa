package ibkr

import (
	"strconv"
	"strings"
	"time"
)

// Snapshot values are strings with display conventions: "C" or "H" prefixes
// on stale prices, magnitude suffixes on market cap ("2.95T"), a percent
// sign on yields. These helpers strip the decoration.

func parseSnapshotFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "C")
	s = strings.TrimPrefix(s, "H")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return nil
	}

	scale := 1.0
	switch s[len(s)-1] {
	case 'K':
		scale, s = 1e3, s[:len(s)-1]
	case 'M':
		scale, s = 1e6, s[:len(s)-1]
	case 'B':
		scale, s = 1e9, s[:len(s)-1]
	case 'T':
		scale, s = 1e12, s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v *= scale
	return &v
}

func snapshotFloat(s string) float64 {
	if v := parseSnapshotFloat(s); v != nil {
		return *v
	}
	return 0
}

// barDate converts an epoch-millisecond bar timestamp to a date in UTC.
func barDate(millis int64) time.Time {
	return time.UnixMilli(millis).UTC().Truncate(24 * time.Hour)
}

// gatewayPeriod maps the contract's period tokens onto the gateway's history
// period syntax.
func gatewayPeriod(period string) string {
	switch period {
	case "1mo":
		return "1m"
	case "3mo":
		return "3m"
	case "6mo", "ytd":
		return "6m"
	case "1y":
		return "1y"
	case "2y":
		return "2y"
	case "5y":
		return "5y"
	case "10y", "max":
		return "10y"
	default:
		return "6m"
	}
}
