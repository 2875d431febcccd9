package testing

import (
	"math"
	"time"

	"github.com/aimquant/aim/internal/domain"
)

// BaseDate is the first trading day of generated series
var BaseDate = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// TradingDays returns n consecutive weekdays starting at BaseDate
func TradingDays(n int) []time.Time {
	days := make([]time.Time, 0, n)
	d := BaseDate
	for len(days) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days = append(days, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return days
}

// TrendingPrices builds n daily bars that grow by drift per day with a
// deterministic oscillation of the given amplitude.
func TrendingPrices(ticker string, n int, start, drift, amplitude, volume float64) []domain.PricePoint {
	days := TradingDays(n)
	prices := make([]domain.PricePoint, n)
	level := start
	for i, d := range days {
		level *= 1 + drift
		closePrice := level * (1 + amplitude*math.Sin(float64(i)))
		prices[i] = domain.PricePoint{
			Ticker: ticker,
			Date:   d,
			Open:   closePrice,
			High:   closePrice * 1.01,
			Low:    closePrice * 0.99,
			Close:  closePrice,
			Volume: volume,
		}
	}
	return prices
}

// MacroSeries builds n daily observations moving linearly by step per day
func MacroSeries(indicator domain.MacroIndicator, n int, start, step float64) []domain.MacroPoint {
	days := TradingDays(n)
	points := make([]domain.MacroPoint, n)
	for i, d := range days {
		points[i] = domain.MacroPoint{
			Indicator: indicator,
			Date:      d,
			Value:     start + step*float64(i),
		}
	}
	return points
}
