package domain

import (
	"fmt"
	"strings"
)

// Regime is a discrete macro-market state driving factor weights and allocation limits
type Regime string

const (
	// RegimeRiskOnStrong - broad macro tailwinds, maximum equity exposure
	RegimeRiskOnStrong Regime = "RISK_ON_STRONG"
	// RegimeRiskOn - supportive macro backdrop
	RegimeRiskOn Regime = "RISK_ON"
	// RegimeTransition - mixed or missing signals
	RegimeTransition Regime = "TRANSITION"
	// RegimeRiskOff - defensive posture
	RegimeRiskOff Regime = "RISK_OFF"
	// RegimeRiskOffStrong - exit to safety, near-all-cash
	RegimeRiskOffStrong Regime = "RISK_OFF_STRONG"
)

// Regimes lists every regime from most defensive to most aggressive
var Regimes = []Regime{
	RegimeRiskOffStrong,
	RegimeRiskOff,
	RegimeTransition,
	RegimeRiskOn,
	RegimeRiskOnStrong,
}

// Absolute portfolio limits shared by every regime
const (
	MinPositionSize  = 0.01
	MaxConcentration = 0.20
)

// FactorWeights holds one weight per scoring factor
type FactorWeights struct {
	Momentum   float64 `json:"momentum"`
	Quality    float64 `json:"quality"`
	Value      float64 `json:"value"`
	Volatility float64 `json:"volatility"`
	Liquidity  float64 `json:"liquidity"`
}

// Sum returns the total of all factor weights
func (w FactorWeights) Sum() float64 {
	return w.Momentum + w.Quality + w.Value + w.Volatility + w.Liquidity
}

// Get returns the weight of a single factor
func (w FactorWeights) Get(f Factor) float64 {
	switch f {
	case FactorMomentum:
		return w.Momentum
	case FactorQuality:
		return w.Quality
	case FactorValue:
		return w.Value
	case FactorVolatility:
		return w.Volatility
	case FactorLiquidity:
		return w.Liquidity
	}
	return 0
}

// With returns a copy of w with factor f set to weight
func (w FactorWeights) With(f Factor, weight float64) FactorWeights {
	switch f {
	case FactorMomentum:
		w.Momentum = weight
	case FactorQuality:
		w.Quality = weight
	case FactorValue:
		w.Value = weight
	case FactorVolatility:
		w.Volatility = weight
	case FactorLiquidity:
		w.Liquidity = weight
	}
	return w
}

// Normalize scales the weights so they sum to 1. All-zero weights are returned unchanged.
func (w FactorWeights) Normalize() FactorWeights {
	total := w.Sum()
	if total <= 0 {
		return w
	}
	return FactorWeights{
		Momentum:   w.Momentum / total,
		Quality:    w.Quality / total,
		Value:      w.Value / total,
		Volatility: w.Volatility / total,
		Liquidity:  w.Liquidity / total,
	}
}

// RegimeParams is the immutable parameter record attached to a regime
type RegimeParams struct {
	Factors           FactorWeights
	TargetAllocation  float64 // Share of capital allocated to equities
	MaxPositionSize   float64 // Initial sizing cap per position
	MaxAssetExposure  float64 // Hard cap per asset after every pass
	MaxSectorExposure float64 // Hard cap per sector
}

var regimeParams = map[Regime]RegimeParams{
	RegimeRiskOnStrong: {
		Factors:           FactorWeights{Momentum: 0.40, Quality: 0.20, Value: 0.15, Volatility: 0.15, Liquidity: 0.10},
		TargetAllocation:  0.98,
		MaxPositionSize:   0.15,
		MaxAssetExposure:  0.15,
		MaxSectorExposure: 0.40,
	},
	RegimeRiskOn: {
		Factors:           FactorWeights{Momentum: 0.35, Quality: 0.25, Value: 0.20, Volatility: 0.10, Liquidity: 0.10},
		TargetAllocation:  0.95,
		MaxPositionSize:   0.12,
		MaxAssetExposure:  0.12,
		MaxSectorExposure: 0.35,
	},
	RegimeTransition: {
		Factors:           FactorWeights{Momentum: 0.25, Quality: 0.30, Value: 0.25, Volatility: 0.10, Liquidity: 0.10},
		TargetAllocation:  0.50,
		MaxPositionSize:   0.08,
		MaxAssetExposure:  0.06,
		MaxSectorExposure: 0.20,
	},
	RegimeRiskOff: {
		Factors:           FactorWeights{Momentum: 0.15, Quality: 0.35, Value: 0.30, Volatility: 0.15, Liquidity: 0.05},
		TargetAllocation:  0.20,
		MaxPositionSize:   0.05,
		MaxAssetExposure:  0.04,
		MaxSectorExposure: 0.12,
	},
	RegimeRiskOffStrong: {
		Factors:           FactorWeights{},
		TargetAllocation:  0.05,
		MaxPositionSize:   0,
		MaxAssetExposure:  0.02,
		MaxSectorExposure: 0.10,
	},
}

// Params returns the parameter record of the regime.
// Unknown regimes fall back to TRANSITION.
func (r Regime) Params() RegimeParams {
	if p, ok := regimeParams[r]; ok {
		return p
	}
	return regimeParams[RegimeTransition]
}

// Valid reports whether r is one of the five known regimes
func (r Regime) Valid() bool {
	_, ok := regimeParams[r]
	return ok
}

// Rank orders regimes from 0 (RISK_OFF_STRONG) to 4 (RISK_ON_STRONG); unknown regimes rank -1
func (r Regime) Rank() int {
	for i, candidate := range Regimes {
		if candidate == r {
			return i
		}
	}
	return -1
}

// IsRiskOff reports whether the regime calls for a defensive posture
func (r Regime) IsRiskOff() bool {
	return r == RegimeRiskOff || r == RegimeRiskOffStrong
}

// String implements fmt.Stringer
func (r Regime) String() string {
	return string(r)
}

// ParseRegime parses a regime label, case-insensitively
func ParseRegime(s string) (Regime, error) {
	r := Regime(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown regime %q", s)
	}
	return r, nil
}

// Factor names one scoring factor
type Factor string

const (
	FactorMomentum   Factor = "momentum"
	FactorQuality    Factor = "quality"
	FactorValue      Factor = "value"
	FactorVolatility Factor = "volatility"
	FactorLiquidity  Factor = "liquidity"
)

// Factors lists every scoring factor
var Factors = []Factor{FactorMomentum, FactorQuality, FactorValue, FactorVolatility, FactorLiquidity}

// ParseFactor parses a factor name, case-insensitively
func ParseFactor(s string) (Factor, error) {
	f := Factor(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Factors {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown factor %q", s)
}
