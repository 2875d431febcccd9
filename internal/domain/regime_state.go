package domain

import "time"

// RegimeComponents holds the five proxy scores, each in [-2, 2].
// A nil score means the proxy could not be computed.
type RegimeComponents struct {
	YieldCurve         *float64 `json:"yield_curve"`
	RiskSpread         *float64 `json:"risk_spread"`
	IndexTrend         *float64 `json:"index_trend"`
	CapitalFlow        *float64 `json:"capital_flow"`
	LiquiditySentiment *float64 `json:"liquidity_sentiment"`
}

// RegimeState is the classifier output for one date; re-runs upsert by date
type RegimeState struct {
	Date       time.Time          `json:"date"`
	Regime     Regime             `json:"regime"`
	ScoreTotal float64            `json:"score_total"`
	Components RegimeComponents   `json:"components"`
	Raw        map[string]float64 `json:"raw,omitempty"`
}
