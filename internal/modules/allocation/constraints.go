package allocation

import (
	"fmt"
	"sort"

	"github.com/aimquant/aim/internal/domain"
)

// ValidateConstraints checks holdings against the limits of the regime and the
// absolute portfolio limits. It returns one message per violation; an empty
// slice means the allocation is valid.
func ValidateConstraints(holdings []domain.Holding, regime domain.Regime) []string {
	params := regime.Params()
	violations := []string{}

	for _, h := range holdings {
		if h.Weight > params.MaxAssetExposure+capEpsilon {
			violations = append(violations, fmt.Sprintf("%s: %.1f%% > max %.1f%%",
				h.Ticker, h.Weight*100, params.MaxAssetExposure*100))
		}
		if h.Weight > domain.MaxConcentration+capEpsilon {
			violations = append(violations, fmt.Sprintf("%s: %.1f%% > limite absoluto %.1f%%",
				h.Ticker, h.Weight*100, domain.MaxConcentration*100))
		}
		// the minimum only binds where the asset cap leaves room above it
		if h.Weight > 0 && h.Weight < domain.MinPositionSize && params.MaxAssetExposure > domain.MinPositionSize*2 {
			violations = append(violations, fmt.Sprintf("%s: %.1f%% < mínimo %.1f%%",
				h.Ticker, h.Weight*100, domain.MinPositionSize*100))
		}
	}

	exposure := make(map[string]float64)
	for _, h := range holdings {
		sector := h.Sector
		if sector == "" {
			sector = unknownSector
		}
		exposure[sector] += h.Weight
	}
	sectors := make([]string, 0, len(exposure))
	for s := range exposure {
		sectors = append(sectors, s)
	}
	sort.Strings(sectors)
	for _, s := range sectors {
		if exposure[s] > params.MaxSectorExposure+capEpsilon {
			violations = append(violations, fmt.Sprintf("Setor %s: %.1f%% > max %.1f%%",
				s, exposure[s]*100, params.MaxSectorExposure*100))
		}
	}

	return violations
}
