// Package features derives per-ticker technical features from price history.
package features

import (
	"context"
	"math"
	"sort"

	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/pkg/formulas"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Feature windows in trading days
const (
	MinHistory            = 63
	Momentum3MWindow      = 63
	Momentum6MWindow      = 126
	Momentum12MWindow     = 252
	Vol21DWindow          = 21
	Vol63DWindow          = 63
	Vol126DWindow         = 126
	LiquidityWindow       = 20
	LiquidityReference    = 1_000_000.0 // Daily traded value scoring near zero
	liquidityScaleDecades = 3.0         // 1M to 1B maps onto [0, 1]
)

// Extractor computes FeatureSets. Each ticker is independent, so the
// universe is processed concurrently.
type Extractor struct {
	workers int
	log     zerolog.Logger
}

// NewExtractor creates an extractor using at most workers goroutines
func NewExtractor(workers int, log zerolog.Logger) *Extractor {
	if workers < 1 {
		workers = 1
	}
	return &Extractor{
		workers: workers,
		log:     log.With().Str("component", "feature_extractor").Logger(),
	}
}

// Extract computes the features of one ticker from its daily bars.
// Returns false when fewer than 63 bars are available.
func (e *Extractor) Extract(ticker string, history []domain.PricePoint) (domain.FeatureSet, bool) {
	if len(history) < MinHistory {
		return domain.FeatureSet{}, false
	}

	bars := append([]domain.PricePoint(nil), history...)
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	fs := domain.FeatureSet{
		Ticker:      ticker,
		Date:        domain.TruncateDate(bars[len(bars)-1].Date),
		Momentum3M:  Momentum(closes, Momentum3MWindow),
		Momentum6M:  Momentum(closes, Momentum6MWindow),
		Momentum12M: Momentum(closes, Momentum12MWindow),
		Vol21D:      Volatility(closes, Vol21DWindow),
		Vol63D:      Volatility(closes, Vol63DWindow),
		Vol126D:     Volatility(closes, Vol126DWindow),
	}
	fs.AvgVolume, fs.AvgDollarVolume, fs.LiquidityScore = Liquidity(closes, volumes, LiquidityWindow)

	return fs, true
}

// ExtractUniverse extracts features for every ticker concurrently.
// Tickers with insufficient history are skipped; results are sorted by ticker.
func (e *Extractor) ExtractUniverse(ctx context.Context, histories map[string][]domain.PricePoint) ([]domain.FeatureSet, error) {
	tickers := make([]string, 0, len(histories))
	for ticker := range histories {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	results := make([]*domain.FeatureSet, len(tickers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fs, ok := e.Extract(ticker, histories[ticker])
			if !ok {
				e.log.Warn().
					Str("ticker", ticker).
					Int("bars", len(histories[ticker])).
					Msg("Insufficient history for features")
				return nil
			}
			results[i] = &fs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.FeatureSet, 0, len(results))
	for _, fs := range results {
		if fs != nil {
			out = append(out, *fs)
		}
	}

	e.log.Info().
		Int("tickers", len(tickers)).
		Int("extracted", len(out)).
		Msg("Extracted features")

	return out, nil
}

// Momentum returns P_last / P[-window] - 1, or nil without enough history
func Momentum(closes []float64, window int) *float64 {
	if len(closes) < window {
		return nil
	}
	start := closes[len(closes)-window]
	end := closes[len(closes)-1]
	if start <= 0 || !formulas.IsFinite(start) || !formulas.IsFinite(end) {
		return nil
	}
	m := end/start - 1
	return &m
}

// Volatility returns the annualized sample std of the last window log returns.
// Flat prices give zero; only an undefined volatility is reported as nil.
func Volatility(closes []float64, window int) *float64 {
	if len(closes) < window+1 {
		return nil
	}
	returns := formulas.CalculateLogReturns(closes)
	if len(returns) < window {
		return nil
	}
	vol := formulas.AnnualizedVolatility(formulas.Tail(returns, window))
	if !formulas.IsFinite(vol) {
		return nil
	}
	return &vol
}

// Liquidity returns average volume, average traded value and the log-scaled
// liquidity score over the last window days.
func Liquidity(closes, volumes []float64, window int) (avgVolume, avgDollarVolume, score *float64) {
	if len(closes) < window || len(volumes) < window {
		return nil, nil, nil
	}

	recentVolumes := formulas.Tail(volumes, window)
	recentCloses := formulas.Tail(closes, window)

	av := formulas.Mean(recentVolumes)
	if av < 0 || !formulas.IsFinite(av) {
		return nil, nil, nil
	}

	dollar := make([]float64, window)
	for i := range dollar {
		dollar[i] = recentCloses[i] * recentVolumes[i]
	}
	adv := formulas.Mean(dollar)
	if adv < 0 || !formulas.IsFinite(adv) {
		return &av, nil, nil
	}

	s := math.Min(math.Log10(1+adv/LiquidityReference)/liquidityScaleDecades, 1)
	return &av, &adv, &s
}
