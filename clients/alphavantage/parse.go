package alphavantage

import (
	"strconv"
	"strings"
	"time"
)

// Alpha Vantage serializes every number as a string and uses several
// sentinels for missing data. These helpers collapse the sentinels into the
// contract's defaults ("None", "-", "", "null", "." all mean absent) and
// tolerate a trailing percent sign.

func parseFloat64(s string) float64 {
	if v := parseFloat64Ptr(s); v != nil {
		return *v
	}
	return 0
}

func parseFloat64Ptr(s string) *float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "", "None", "none", "null", "-", ".":
		return nil
	}
	s = strings.TrimSuffix(s, "%")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt64(s string) int64 {
	// Values like "1.5E10" appear in share counts; go through float.
	if v := parseFloat64Ptr(s); v != nil {
		return int64(*v)
	}
	return 0
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
