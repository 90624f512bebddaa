// Package format holds the field normalizers shared by all adapters:
// human-readable large numbers, percentage rendering and period tokens.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LargeNumber renders a raw currency amount into abbreviated form using
// fixed magnitude thresholds: >= 1e12 "$x.xxT", >= 1e9 "$x.xxB",
// >= 1e6 "$x.xM", otherwise comma-grouped dollars. Only nil is absent;
// zero is a real amount and renders "$0". Callers whose zero means
// "no figure" guard before calling.
func LargeNumber(n *float64) *string {
	if n == nil {
		return nil
	}
	v := *n

	var s string
	switch {
	case math.Abs(v) >= 1e12:
		s = fmt.Sprintf("$%.2fT", v/1e12)
	case math.Abs(v) >= 1e9:
		s = fmt.Sprintf("$%.2fB", v/1e9)
	case math.Abs(v) >= 1e6:
		s = fmt.Sprintf("$%.1fM", v/1e6)
	default:
		s = "$" + groupThousands(math.Round(v))
	}
	return &s
}

// LargeNumberValue is LargeNumber for non-optional inputs.
func LargeNumberValue(n float64) string {
	return *LargeNumber(&n)
}

// Percent renders a fraction as a percentage string with one decimal place:
// 0.253 becomes "25.3%". nil stays nil; 0.0 is a real value ("0.0%").
func Percent(v *float64) *string {
	if v == nil {
		return nil
	}
	s := fmt.Sprintf("%.1f%%", *v*100)
	return &s
}

// PeriodToDays maps a coarse period token to an approximate calendar-day
// count. Unknown tokens fall back to 180 days (6 months).
func PeriodToDays(period string) int {
	switch period {
	case "1mo":
		return 30
	case "3mo":
		return 90
	case "6mo":
		return 180
	case "1y":
		return 365
	case "2y":
		return 730
	case "5y":
		return 1825
	case "10y":
		return 3650
	case "ytd":
		return 180
	case "max":
		return 3650
	default:
		return 180
	}
}

// groupThousands formats a rounded float with comma separators, no decimals.
func groupThousands(v float64) string {
	neg := v < 0
	s := strconv.FormatFloat(math.Abs(v), 'f', 0, 64)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
		if len(s) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

// Float64 returns a pointer to v. Convenience for building optional fields.
func Float64(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }
