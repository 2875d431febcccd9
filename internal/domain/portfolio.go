package domain

import (
	"fmt"
	"strings"
)

// Strategy selects how initial position sizes are derived
type Strategy string

const (
	StrategyEqualWeight   Strategy = "equal_weight"
	StrategyScoreWeighted Strategy = "score_weighted"
	StrategyRiskParity    Strategy = "risk_parity"
)

// ParseStrategy parses a strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyEqualWeight, StrategyScoreWeighted, StrategyRiskParity:
		return st, nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// Holding is one position of an allocation run
type Holding struct {
	Ticker       string  `json:"ticker" msgpack:"ticker"`
	Sector       string  `json:"sector" msgpack:"sector"`
	Weight       float64 `json:"weight" msgpack:"weight"`
	Score        float64 `json:"score" msgpack:"score"`
	AssetCapped  bool    `json:"asset_capped" msgpack:"asset_capped"`
	SectorCapped bool    `json:"sector_capped" msgpack:"sector_capped"`
}

// AllocationDiagnostics explains how close an allocation got to its target
type AllocationDiagnostics struct {
	TargetAllocation    float64 `json:"target_allocation" msgpack:"target_allocation"`
	AchievedAllocation  float64 `json:"achieved_allocation" msgpack:"achieved_allocation"`
	Gap                 float64 `json:"gap" msgpack:"gap"`
	Note                string  `json:"note,omitempty" msgpack:"note"`
	PositiveScoreAssets int     `json:"positive_score_assets" msgpack:"positive_score_assets"`
	AssetCapsApplied    int     `json:"asset_caps_applied" msgpack:"asset_caps_applied"`
	SectorCapsApplied   int     `json:"sector_caps_applied" msgpack:"sector_caps_applied"`
	Iterations          int     `json:"iterations" msgpack:"iterations"`
}

// RiskTolerance sets the drawdown multiplier and the default risk budget
type RiskTolerance string

const (
	ToleranceConservative RiskTolerance = "conservative"
	ToleranceModerate     RiskTolerance = "moderate"
	ToleranceAggressive   RiskTolerance = "aggressive"
	ToleranceSpeculative  RiskTolerance = "speculative"
)

// ParseRiskTolerance parses a tolerance name, falling back to moderate
func ParseRiskTolerance(s string) RiskTolerance {
	switch t := RiskTolerance(strings.ToLower(strings.TrimSpace(s))); t {
	case ToleranceConservative, ToleranceModerate, ToleranceAggressive, ToleranceSpeculative:
		return t
	}
	return ToleranceModerate
}

// RiskBudget is the caller-supplied set of risk limits
type RiskBudget struct {
	Tolerance        RiskTolerance `json:"tolerance"`
	MaxVolatility    float64       `json:"max_volatility"`
	MaxDrawdown      float64       `json:"max_drawdown"`
	MaxConcentration float64       `json:"max_concentration"`
}

// RiskContribution is the share of portfolio variance attributed to one ticker
type RiskContribution struct {
	Ticker       string  `json:"ticker"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// RiskAssessment is the portfolio-level risk verdict of one validation call
type RiskAssessment struct {
	PortfolioVolatility float64            `json:"portfolio_volatility"`
	ExpectedMaxDrawdown float64            `json:"expected_max_drawdown"`
	VaR95               float64            `json:"var_95"`
	VaR99               float64            `json:"var_99"`
	Concentration       float64            `json:"concentration"`
	Top5Weight          float64            `json:"top5_weight"`
	Contributions       []RiskContribution `json:"contributions"`
	Warnings            []string           `json:"warnings"`
	WithinLimits        bool               `json:"within_limits"`
}
