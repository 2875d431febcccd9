package scoring

import (
	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/pkg/formulas"
)

// subComponent extracts one fundamental input; ok is false when the asset lacks it
type subComponent struct {
	weight  float64
	extract func(domain.Fundamentals) (float64, bool)
}

var qualityComponents = []subComponent{
	{1.0 / 3, func(f domain.Fundamentals) (float64, bool) { return present(f.ROE) }},
	{1.0 / 3, func(f domain.Fundamentals) (float64, bool) { return present(f.NetMargin) }},
	{1.0 / 3, func(f domain.Fundamentals) (float64, bool) { return present(f.ROIC) }},
}

var valueComponents = []subComponent{
	{0.4, func(f domain.Fundamentals) (float64, bool) { return inverse(f.PE) }},
	{0.3, func(f domain.Fundamentals) (float64, bool) { return inverse(f.PB) }},
	{0.3, func(f domain.Fundamentals) (float64, bool) { return present(f.DividendYield) }},
}

func qualityScores(features []domain.FeatureSet, fundamentals map[string]domain.Fundamentals) ([]float64, bool) {
	return compositeScores(features, fundamentals, qualityComponents)
}

func valueScores(features []domain.FeatureSet, fundamentals map[string]domain.Fundamentals) ([]float64, bool) {
	return compositeScores(features, fundamentals, valueComponents)
}

// compositeScores z-scores each sub-component over the assets that carry it and
// averages, per asset, the z-scores it has using renormalized weights.
// Assets without any sub-component score 0. The boolean reports whether any
// asset carried any sub-component.
func compositeScores(
	features []domain.FeatureSet,
	fundamentals map[string]domain.Fundamentals,
	components []subComponent,
) ([]float64, bool) {
	n := len(features)
	sums := make([]float64, n)
	weights := make([]float64, n)
	found := false

	for _, c := range components {
		var idx []int
		var values []float64
		for i, fs := range features {
			f, ok := fundamentals[fs.Ticker]
			if !ok {
				continue
			}
			if v, ok := c.extract(f); ok {
				idx = append(idx, i)
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		found = true

		for k, z := range formulas.ZScores(values) {
			sums[idx[k]] += c.weight * z
			weights[idx[k]] += c.weight
		}
	}

	out := make([]float64, n)
	for i := range out {
		if weights[i] > 0 {
			out[i] = sums[i] / weights[i]
		}
	}
	return out, found
}

func present(v *float64) (float64, bool) {
	if v == nil || !formulas.IsFinite(*v) {
		return 0, false
	}
	return *v, true
}

// inverse turns a price multiple into a yield; non-positive multiples carry no signal
func inverse(v *float64) (float64, bool) {
	if v == nil || !formulas.IsFinite(*v) || *v <= 0 {
		return 0, false
	}
	return 1 / *v, true
}
