package domain

import (
	"sort"
	"time"
)

// DefaultHistoryDays is the trailing window used by FetchPriceHistory when
// the caller passes days <= 0.
const DefaultHistoryDays = 400

// FetchPriceHistory is the concrete single-ticker convenience shared by all
// tabular providers: it fetches the trailing window ending today via
// FetchDailyPrices, keeps only the requested ticker and returns simplified
// bars oldest to newest. Any fetch error yields an empty, non-nil slice.
func FetchPriceHistory(p DataProvider, ticker string, days int) []HistoryBar {
	if days <= 0 {
		days = DefaultHistoryDays
	}

	end := time.Now()
	start := end.AddDate(0, 0, -days)

	bars, err := p.FetchDailyPrices([]string{ticker}, start, end)
	if err != nil {
		return []HistoryBar{}
	}

	history := make([]HistoryBar, 0, len(bars))
	for _, bar := range bars {
		if bar.Ticker != ticker {
			continue
		}
		history = append(history, HistoryBar{
			Date:   bar.Date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].Date.Before(history[j].Date)
	})

	return history
}

// SortBars orders a bar slice by (ticker, date) ascending, the canonical
// ordering of the tabular contract.
func SortBars(bars []PriceBar) {
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Ticker != bars[j].Ticker {
			return bars[i].Ticker < bars[j].Ticker
		}
		return bars[i].Date.Before(bars[j].Date)
	})
}
