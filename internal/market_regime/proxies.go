package market_regime

import (
	"math"

	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/pkg/formulas"
)

const (
	trendLookback      = 21  // Days of SELIC / USD history for slope proxies
	flowLookback       = 21  // Days of joined USD/index history for the flow proxy
	sentimentLookback  = 21  // Recent window of the liquidity/sentiment proxy
	sentimentBaseline  = 252 // Trailing-year baseline of the liquidity/sentiment proxy
	shortMAPeriod      = 50
	longMAPeriod       = 200
	shortMASlopeWindow = 20
	proxyBound         = 2.0
)

// yieldCurveScore scores the SELIC trend: a falling policy rate is risk-on.
// Returns nil when fewer than 21 observations are available.
func yieldCurveScore(selic []float64) (*float64, float64) {
	return trendScore(selic)
}

// riskSpreadScore scores the USD/BRL trend: a weakening dollar is risk-on
func riskSpreadScore(usd []float64) (*float64, float64) {
	return trendScore(usd)
}

func trendScore(values []float64) (*float64, float64) {
	if len(values) < trendLookback {
		return nil, 0
	}
	slope := formulas.Slope(formulas.Tail(values, trendLookback))
	score := formulas.Clip(-slope*100, -proxyBound, proxyBound)
	return &score, slope
}

// indexTrendScore combines price vs the 200-day average with the direction of the 50-day average.
// Requires at least 200 closes.
func indexTrendScore(closes []float64) (*float64, map[string]float64) {
	if len(closes) < longMAPeriod {
		return nil, nil
	}

	long := formulas.SMA(closes, longMAPeriod)
	short := formulas.SMA(closes, shortMAPeriod)
	last := closes[len(closes)-1]

	priceVsLong := -1.0
	if last > long[len(long)-1] {
		priceVsLong = 1.0
	}

	shortSlope := formulas.Slope(formulas.Tail(short, shortMASlopeWindow))
	shortTrend := 0.0
	switch {
	case shortSlope > 0:
		shortTrend = 1
	case shortSlope < 0:
		shortTrend = -1
	}

	score := priceVsLong + shortTrend
	return &score, map[string]float64{
		"index_vs_ma200": priceVsLong,
		"ma50_slope":     shortSlope,
	}
}

// capitalFlowScore scores the USD/index correlation over the last 21 shared dates.
// A strongly negative correlation (dollar down, index up) reads as capital inflow.
func capitalFlowScore(usd []domain.MacroPoint, index []domain.PricePoint) (*float64, float64) {
	if len(usd) == 0 || len(index) == 0 {
		return nil, 0
	}

	closes := make(map[string]float64, len(index))
	for _, p := range index {
		closes[p.Date.Format(domain.DateLayout)] = p.Close
	}

	var usdJoined, indexJoined []float64
	for _, p := range usd {
		if c, ok := closes[p.Date.Format(domain.DateLayout)]; ok {
			usdJoined = append(usdJoined, p.Value)
			indexJoined = append(indexJoined, c)
		}
	}

	if len(usdJoined) < flowLookback {
		return nil, 0
	}

	corr, ok := formulas.Correlation(
		formulas.Tail(usdJoined, flowLookback),
		formulas.Tail(indexJoined, flowLookback),
	)
	if !ok {
		return nil, 0
	}

	score := formulas.Clip(-2*corr, -proxyBound, proxyBound)
	return &score, corr
}

// liquiditySentimentScore compares recent index volume and realized volatility
// against their trailing-year baselines. Requires more than 21 index bars.
func liquiditySentimentScore(index []domain.PricePoint) (*float64, map[string]float64) {
	if len(index) <= sentimentLookback {
		return nil, nil
	}

	volumes := make([]float64, len(index))
	closes := make([]float64, len(index))
	for i, p := range index {
		volumes[i] = p.Volume
		closes[i] = p.Close
	}

	raw := map[string]float64{}
	score := 0.0

	volumeBaseline := formulas.Mean(formulas.Tail(volumes, sentimentBaseline))
	if volumeBaseline > 0 {
		ratio := formulas.Mean(formulas.Tail(volumes, sentimentLookback)) / volumeBaseline
		raw["volume_ratio"] = ratio
		switch {
		case ratio > 1.1:
			score++
		case ratio < 0.9:
			score--
		}
	}

	vol := rollingVolatility(closes, sentimentLookback)
	volBaseline := nanMean(formulas.Tail(vol, sentimentBaseline))
	if volBaseline > 0 {
		ratio := nanMean(formulas.Tail(vol, sentimentLookback)) / volBaseline
		raw["volatility_ratio"] = ratio
		switch {
		case ratio < 0.9:
			score++
		case ratio > 1.1:
			score--
		}
	}

	return &score, raw
}

// rollingVolatility returns annualized rolling volatility of simple returns,
// aligned to closes; entries without a full window are NaN.
func rollingVolatility(closes []float64, window int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}

	returns := formulas.CalculateReturns(closes)
	for i, std := range formulas.RollingStdDev(returns, window) {
		// returns[k] belongs to closes[k+1]; the window ending at returns[i+window-1]
		out[i+window] = std * math.Sqrt(formulas.TradingDaysPerYear)
	}
	return out
}

func nanMean(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
