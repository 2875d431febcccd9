package risk

import (
	"math"
	"sort"

	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/pkg/formulas"
)

// alignCloses lines up the closes of tickers on the union of their trading
// dates, restricted to the last lookback dates. Gaps are forward-filled, then
// leading gaps are back-filled. Tickers without any close in the window are omitted.
// observed counts the real closes of each ticker inside the window.
func alignCloses(tickers []string, history map[string][]domain.PricePoint, lookback int) (aligned map[string][]float64, observed map[string]int) {
	byTicker := make(map[string]map[string]float64, len(tickers))
	dateSet := make(map[string]struct{})
	for _, t := range tickers {
		points := history[t]
		if len(points) == 0 {
			continue
		}
		closes := make(map[string]float64, len(points))
		for _, p := range points {
			if p.Close <= 0 || !formulas.IsFinite(p.Close) {
				continue
			}
			d := p.Date.UTC().Format(domain.DateLayout)
			closes[d] = p.Close
			dateSet[d] = struct{}{}
		}
		byTicker[t] = closes
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > lookback {
		dates = dates[len(dates)-lookback:]
	}

	aligned = make(map[string][]float64, len(byTicker))
	observed = make(map[string]int, len(byTicker))
	for t, closes := range byTicker {
		series := make([]float64, len(dates))
		count := 0
		for i, d := range dates {
			if c, ok := closes[d]; ok {
				series[i] = c
				count++
			} else {
				series[i] = math.NaN()
			}
		}
		if count > 0 {
			aligned[t] = fillGaps(series)
			observed[t] = count
		}
	}
	return aligned, observed
}

// fillGaps forward-fills NaN entries, then back-fills the leading ones
func fillGaps(series []float64) []float64 {
	filled := make([]float64, len(series))
	copy(filled, series)

	last, haveLast := 0.0, false
	for i, v := range filled {
		if math.IsNaN(v) {
			if haveLast {
				filled[i] = last
			}
			continue
		}
		last, haveLast = v, true
	}

	next, haveNext := 0.0, false
	for i := len(filled) - 1; i >= 0; i-- {
		if math.IsNaN(filled[i]) {
			if haveNext {
				filled[i] = next
			}
			continue
		}
		next, haveNext = filled[i], true
	}
	return filled
}
