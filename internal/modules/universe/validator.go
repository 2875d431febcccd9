package universe

import (
	"math"
	"sort"
	"time"

	"github.com/aimquant/aim/internal/domain"
	"github.com/rs/zerolog"
)

const (
	maxDailyChange = 10.0  // a close more than 11x the previous one is a spike
	minDailyChange = -0.90 // a close below 10% of the previous one is a crash
	minPrice       = 0.01
)

// Adjustment records a bar that was repaired or dropped during validation
type Adjustment struct {
	Ticker        string
	Date          time.Time
	OriginalClose float64
	AdjustedClose float64
	Method        string // "linear", "forward_fill", "backward_fill", "ohlc", "dropped"
	Reason        string
}

// Validator repairs abnormal daily bars before they are stored
type Validator struct {
	log zerolog.Logger
}

// NewValidator creates a new price validator
func NewValidator(log zerolog.Logger) *Validator {
	return &Validator{
		log: log.With().Str("component", "price_validator").Logger(),
	}
}

// Check returns an empty reason when bar is acceptable after prev.
// prev may be nil for the first bar of a series.
func (v *Validator) Check(bar domain.PricePoint, prev *domain.PricePoint) string {
	if math.IsNaN(bar.Close) || math.IsInf(bar.Close, 0) {
		return "not_a_number"
	}
	if bar.Close < minPrice {
		return "below_minimum"
	}
	if prev != nil && prev.Close > 0 {
		change := (bar.Close - prev.Close) / prev.Close
		if change > maxDailyChange {
			return "spike_detected"
		}
		if change < minDailyChange {
			return "crash_detected"
		}
	}
	return ""
}

// Clean validates every series in prices. Abnormal closes are replaced by a
// date-weighted interpolation of the surrounding valid bars, or by the nearest
// valid bar at the edges. Bars that cannot be repaired are dropped.
func (v *Validator) Clean(prices []domain.PricePoint) ([]domain.PricePoint, []Adjustment) {
	byTicker := make(map[string][]domain.PricePoint)
	for _, p := range prices {
		byTicker[p.Ticker] = append(byTicker[p.Ticker], p)
	}
	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	cleaned := make([]domain.PricePoint, 0, len(prices))
	adjustments := []Adjustment{}
	for _, t := range tickers {
		series, adj := v.cleanSeries(byTicker[t])
		cleaned = append(cleaned, series...)
		adjustments = append(adjustments, adj...)
	}

	for _, a := range adjustments {
		v.log.Warn().
			Str("ticker", a.Ticker).
			Str("date", a.Date.Format(domain.DateLayout)).
			Float64("original_close", a.OriginalClose).
			Float64("adjusted_close", a.AdjustedClose).
			Str("method", a.Method).
			Str("reason", a.Reason).
			Msg("Adjusted abnormal price")
	}
	return cleaned, adjustments
}

func (v *Validator) cleanSeries(series []domain.PricePoint) ([]domain.PricePoint, []Adjustment) {
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	// first pass marks bars that fail validation against the last accepted bar
	reasons := make([]string, len(series))
	var prev *domain.PricePoint
	for i := range series {
		reasons[i] = v.Check(series[i], prev)
		if reasons[i] == "" {
			prev = &series[i]
		}
	}

	out := make([]domain.PricePoint, 0, len(series))
	var adjustments []Adjustment
	for i, bar := range series {
		if reasons[i] == "" {
			if repaired, ok := ensureOHLC(bar); ok {
				adjustments = append(adjustments, Adjustment{
					Ticker: bar.Ticker, Date: bar.Date, OriginalClose: bar.Close,
					AdjustedClose: bar.Close, Method: "ohlc", Reason: "inconsistent_range",
				})
				bar = repaired
			}
			out = append(out, bar)
			continue
		}

		before := nearestValid(series, reasons, i, -1)
		after := nearestValid(series, reasons, i, 1)
		fixed, method := interpolate(bar, before, after)
		adj := Adjustment{
			Ticker: bar.Ticker, Date: bar.Date, OriginalClose: bar.Close,
			Method: method, Reason: reasons[i],
		}
		if method == "dropped" {
			adjustments = append(adjustments, adj)
			continue
		}
		adj.AdjustedClose = fixed.Close
		adjustments = append(adjustments, adj)
		out = append(out, fixed)
	}
	return out, adjustments
}

func nearestValid(series []domain.PricePoint, reasons []string, from, step int) *domain.PricePoint {
	for j := from + step; j >= 0 && j < len(series); j += step {
		if reasons[j] == "" {
			return &series[j]
		}
	}
	return nil
}

func interpolate(bar domain.PricePoint, before, after *domain.PricePoint) (domain.PricePoint, string) {
	fixed := bar
	switch {
	case before != nil && after != nil:
		total := after.Date.Sub(before.Date).Hours()
		elapsed := bar.Date.Sub(before.Date).Hours()
		if total <= 0 {
			return bar, "dropped"
		}
		fixed.Close = before.Close + (after.Close-before.Close)*(elapsed/total)
		fixed.Open, fixed.High, fixed.Low = fixed.Close, fixed.Close, fixed.Close
		return fixed, "linear"
	case before != nil:
		fixed.Open, fixed.High, fixed.Low, fixed.Close = before.Open, before.High, before.Low, before.Close
		return fixed, "forward_fill"
	case after != nil:
		fixed.Open, fixed.High, fixed.Low, fixed.Close = after.Open, after.High, after.Low, after.Close
		return fixed, "backward_fill"
	}
	return bar, "dropped"
}

// ensureOHLC widens high and low to cover open and close; ok reports whether anything changed
func ensureOHLC(bar domain.PricePoint) (domain.PricePoint, bool) {
	fixed := bar
	fixed.High = math.Max(fixed.High, math.Max(fixed.Open, fixed.Close))
	fixed.Low = math.Min(fixed.Low, math.Min(fixed.Open, fixed.Close))
	return fixed, fixed.High != bar.High || fixed.Low != bar.Low
}
