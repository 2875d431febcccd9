package scoring

import "github.com/aimquant/aim/internal/domain"

// Coverage describes which fundamental factors the universe can be scored on
type Coverage int

const (
	// CoverageBothPresent - quality and value can both be scored
	CoverageBothPresent Coverage = iota
	// CoverageQualityMissing - no asset carries ROE, net margin or ROIC
	CoverageQualityMissing
	// CoverageValueMissing - no asset carries a usable P/E, P/B or dividend yield
	CoverageValueMissing
	// CoverageBothMissing - no fundamentals at all
	CoverageBothMissing
)

// fundamentalsFallback applies when neither quality nor value can be scored
var fundamentalsFallback = domain.FactorWeights{Momentum: 0.5, Volatility: 0.3, Liquidity: 0.2}

// DetectCoverage maps the availability of the two fundamental factors onto a coverage state
func DetectCoverage(hasQuality, hasValue bool) Coverage {
	switch {
	case hasQuality && hasValue:
		return CoverageBothPresent
	case hasValue:
		return CoverageQualityMissing
	case hasQuality:
		return CoverageValueMissing
	default:
		return CoverageBothMissing
	}
}

// EffectiveWeights redistributes the weight of missing fundamental factors.
// An all-zero regime table stays all zero in every state.
func (c Coverage) EffectiveWeights(base domain.FactorWeights) domain.FactorWeights {
	if base.Sum() == 0 {
		return base
	}

	switch c {
	case CoverageQualityMissing:
		return domain.FactorWeights{
			Momentum:   base.Momentum + base.Quality*0.5,
			Value:      base.Value + base.Quality*0.5,
			Volatility: base.Volatility,
			Liquidity:  base.Liquidity,
		}
	case CoverageValueMissing:
		return domain.FactorWeights{
			Momentum:   base.Momentum + base.Value*0.5,
			Quality:    base.Quality + base.Value*0.5,
			Volatility: base.Volatility,
			Liquidity:  base.Liquidity,
		}
	case CoverageBothMissing:
		return fundamentalsFallback
	default:
		return base
	}
}

// String implements fmt.Stringer
func (c Coverage) String() string {
	switch c {
	case CoverageBothPresent:
		return "both_present"
	case CoverageQualityMissing:
		return "quality_missing"
	case CoverageValueMissing:
		return "value_missing"
	case CoverageBothMissing:
		return "both_missing"
	}
	return "unknown"
}
