// Package market_regime classifies the macro-market regime from macro proxies.
package market_regime

import (
	"sort"
	"time"

	"github.com/aimquant/aim/internal/domain"
	"github.com/rs/zerolog"
)

// Composite score thresholds
const (
	ThresholdRiskOnStrong  = 8.0
	ThresholdRiskOn        = 4.0
	ThresholdRiskOff       = -4.0
	ThresholdRiskOffStrong = -8.0
)

// ProxyWeights holds the importance weight of each macro proxy
type ProxyWeights struct {
	YieldCurve         float64
	RiskSpread         float64
	IndexTrend         float64
	CapitalFlow        float64
	LiquiditySentiment float64
}

// DefaultProxyWeights are the fixed proxy importances
var DefaultProxyWeights = ProxyWeights{
	YieldCurve:         2.5,
	RiskSpread:         2.0,
	IndexTrend:         2.5,
	CapitalFlow:        1.5,
	LiquiditySentiment: 1.5,
}

// MacroSnapshot is the read-only input of one classification
type MacroSnapshot struct {
	SELIC  []domain.MacroPoint
	USDBRL []domain.MacroPoint
	Index  []domain.PricePoint
}

// Classifier converts macro series into a RegimeState. It holds no state
// between calls, so a date can be replayed any number of times.
type Classifier struct {
	weights ProxyWeights
	log     zerolog.Logger
}

// NewClassifier creates a classifier with the default proxy weights
func NewClassifier(log zerolog.Logger) *Classifier {
	return &Classifier{
		weights: DefaultProxyWeights,
		log:     log.With().Str("component", "regime_classifier").Logger(),
	}
}

// Classify computes the five proxies, the weighted composite and the regime for date
func (c *Classifier) Classify(date time.Time, snapshot MacroSnapshot) domain.RegimeState {
	selic := sortedMacro(snapshot.SELIC)
	usd := sortedMacro(snapshot.USDBRL)
	index := sortedPrices(snapshot.Index)

	raw := map[string]float64{}
	var components domain.RegimeComponents

	var slope float64
	components.YieldCurve, slope = yieldCurveScore(macroValues(selic))
	if components.YieldCurve != nil {
		raw["selic_slope"] = slope
	}

	components.RiskSpread, slope = riskSpreadScore(macroValues(usd))
	if components.RiskSpread != nil {
		raw["usd_slope"] = slope
	}

	closes := make([]float64, len(index))
	for i, p := range index {
		closes[i] = p.Close
	}
	var details map[string]float64
	components.IndexTrend, details = indexTrendScore(closes)
	mergeRaw(raw, details)

	var corr float64
	components.CapitalFlow, corr = capitalFlowScore(usd, index)
	if components.CapitalFlow != nil {
		raw["usd_index_corr"] = corr
	}

	components.LiquiditySentiment, details = liquiditySentimentScore(index)
	mergeRaw(raw, details)

	composite := c.Composite(components)
	regime := ClassifyScore(composite)

	c.log.Debug().
		Interface("components", components).
		Interface("raw", raw).
		Msg("Computed regime proxies")

	c.log.Info().
		Str("date", date.Format(domain.DateLayout)).
		Str("regime", string(regime)).
		Float64("score", composite).
		Int("proxies_available", countAvailable(components)).
		Msg("Classified market regime")

	return domain.RegimeState{
		Date:       domain.TruncateDate(date),
		Regime:     regime,
		ScoreTotal: composite,
		Components: components,
		Raw:        raw,
	}
}

// Composite returns Σ wᵢ·sᵢ / (Σ_available wᵢ / 2). Missing proxies are excluded
// from both sums; with no proxy available the composite is 0.
func (c *Classifier) Composite(components domain.RegimeComponents) float64 {
	pairs := []struct {
		score  *float64
		weight float64
	}{
		{components.YieldCurve, c.weights.YieldCurve},
		{components.RiskSpread, c.weights.RiskSpread},
		{components.IndexTrend, c.weights.IndexTrend},
		{components.CapitalFlow, c.weights.CapitalFlow},
		{components.LiquiditySentiment, c.weights.LiquiditySentiment},
	}

	weighted, available := 0.0, 0.0
	for _, p := range pairs {
		if p.score == nil {
			continue
		}
		weighted += p.weight * *p.score
		available += p.weight
	}

	if available == 0 {
		return 0
	}
	return weighted / (available / 2)
}

// ClassifyScore maps a composite score onto the five ordered regimes.
// The mapping is monotonic in score.
func ClassifyScore(score float64) domain.Regime {
	switch {
	case score >= ThresholdRiskOnStrong:
		return domain.RegimeRiskOnStrong
	case score >= ThresholdRiskOn:
		return domain.RegimeRiskOn
	case score <= ThresholdRiskOffStrong:
		return domain.RegimeRiskOffStrong
	case score <= ThresholdRiskOff:
		return domain.RegimeRiskOff
	default:
		return domain.RegimeTransition
	}
}

func countAvailable(c domain.RegimeComponents) int {
	n := 0
	for _, s := range []*float64{c.YieldCurve, c.RiskSpread, c.IndexTrend, c.CapitalFlow, c.LiquiditySentiment} {
		if s != nil {
			n++
		}
	}
	return n
}

func mergeRaw(dst, src map[string]float64) {
	for k, v := range src {
		dst[k] = v
	}
}

func macroValues(points []domain.MacroPoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}

func sortedMacro(points []domain.MacroPoint) []domain.MacroPoint {
	out := append([]domain.MacroPoint(nil), points...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func sortedPrices(points []domain.PricePoint) []domain.PricePoint {
	out := append([]domain.PricePoint(nil), points...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
