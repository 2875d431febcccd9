// Package scoring ranks the universe with regime-weighted multi-factor scores.
package scoring

import (
	"sort"
	"time"

	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/pkg/formulas"
	"github.com/rs/zerolog"
)

// Momentum blend weights for the 3/6/12 month windows
const (
	momentum3MWeight  = 0.4
	momentum6MWeight  = 0.3
	momentum12MWeight = 0.3
)

// neutralLiquidity is used for assets without a liquidity score
const neutralLiquidity = 0.5

// Engine computes ScoreRecords. It holds no per-request state.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new scoring engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "scoring_engine").Logger(),
	}
}

// ScoreUniverse scores and ranks every asset of features under regime.
// fundamentals may be nil. An empty feature set yields an empty result.
// Records are returned in rank order.
func (e *Engine) ScoreUniverse(
	features []domain.FeatureSet,
	fundamentals map[string]domain.Fundamentals,
	regime domain.Regime,
) []domain.ScoreRecord {
	if len(features) == 0 {
		e.log.Warn().Str("regime", string(regime)).Msg("No features to score")
		return []domain.ScoreRecord{}
	}

	date := latestDate(features)
	momentum := formulas.ZScores(momentumBlend(features))
	volatility := formulas.ZScores(inverseVolatility(features))
	liquidity := formulas.ZScores(liquidityColumn(features))

	quality, hasQuality := qualityScores(features, fundamentals)
	value, hasValue := valueScores(features, fundamentals)

	coverage := DetectCoverage(hasQuality, hasValue)
	weights := coverage.EffectiveWeights(regime.Params().Factors)

	if coverage != CoverageBothPresent {
		e.log.Warn().
			Str("coverage", coverage.String()).
			Msg("Fundamentals incomplete, redistributing factor weights")
	}

	records := make([]domain.ScoreRecord, len(features))
	for i, fs := range features {
		rec := domain.ScoreRecord{
			Date:       date,
			Ticker:     fs.Ticker,
			Regime:     regime,
			Momentum:   momentum[i],
			Quality:    quality[i],
			Value:      value[i],
			Volatility: volatility[i],
			Liquidity:  liquidity[i],
		}
		rec.Final = rec.Weighted(weights)
		records[i] = rec
	}

	RankRecords(records)

	e.log.Info().
		Str("regime", string(regime)).
		Str("coverage", coverage.String()).
		Int("assets", len(records)).
		Str("top", records[0].Ticker).
		Msg("Scored universe")

	return records
}

// RankRecords sorts records by final score (descending, ties by ticker) and
// assigns ranks 1..N in that order.
func RankRecords(records []domain.ScoreRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Final != records[j].Final {
			return records[i].Final > records[j].Final
		}
		return records[i].Ticker < records[j].Ticker
	})
	for i := range records {
		records[i].Rank = i + 1
	}
}

func latestDate(features []domain.FeatureSet) time.Time {
	var latest time.Time
	for _, fs := range features {
		if fs.Date.After(latest) {
			latest = fs.Date
		}
	}
	return domain.TruncateDate(latest)
}

// momentumBlend blends the available momentum windows, renormalizing their weights
func momentumBlend(features []domain.FeatureSet) []float64 {
	out := make([]float64, len(features))
	for i, fs := range features {
		sum, weight := 0.0, 0.0
		for _, w := range []struct {
			value  *float64
			weight float64
		}{
			{fs.Momentum3M, momentum3MWeight},
			{fs.Momentum6M, momentum6MWeight},
			{fs.Momentum12M, momentum12MWeight},
		} {
			if w.value != nil && formulas.IsFinite(*w.value) {
				sum += w.weight * *w.value
				weight += w.weight
			}
		}
		if weight > 0 {
			out[i] = sum / weight
		}
	}
	return out
}

// inverseVolatility maps 63-day volatility to 1/(1+vol); gaps take the column median
func inverseVolatility(features []domain.FeatureSet) []float64 {
	var known []float64
	for _, fs := range features {
		if fs.Vol63D != nil && formulas.IsFinite(*fs.Vol63D) {
			known = append(known, *fs.Vol63D)
		}
	}
	median := formulas.Median(known)

	out := make([]float64, len(features))
	for i, fs := range features {
		vol := median
		if fs.Vol63D != nil && formulas.IsFinite(*fs.Vol63D) {
			vol = *fs.Vol63D
		}
		out[i] = 1 / (1 + vol)
	}
	return out
}

func liquidityColumn(features []domain.FeatureSet) []float64 {
	out := make([]float64, len(features))
	for i, fs := range features {
		out[i] = neutralLiquidity
		if fs.LiquidityScore != nil && formulas.IsFinite(*fs.LiquidityScore) {
			out[i] = *fs.LiquidityScore
		}
	}
	return out
}
