package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMA returns the simple moving average series of values with the given period.
// Only fully formed windows are returned, so the result has len(values)-period+1 entries.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	if period == 1 {
		return append([]float64(nil), values...)
	}

	sma := talib.Sma(values, period)
	return sma[period-1:]
}

// RollingStdDev returns the sample standard deviation over each trailing window.
// Entry i covers values[i : i+window].
func RollingStdDev(values []float64, window int) []float64 {
	if window < 2 || len(values) < window {
		return nil
	}
	out := make([]float64, 0, len(values)-window+1)
	for i := 0; i+window <= len(values); i++ {
		out = append(out, StdDev(values[i:i+window]))
	}
	return out
}

// Tail returns the last n values (or all of them when fewer exist)
func Tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return values
	}
	if n <= 0 {
		return nil
	}
	return values[len(values)-n:]
}
