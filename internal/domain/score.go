package domain

import "time"

// ScoreRecord is the factor breakdown and rank of one ticker on one date
type ScoreRecord struct {
	Date       time.Time `json:"date"`
	Ticker     string    `json:"ticker"`
	Regime     Regime    `json:"regime"`
	Momentum   float64   `json:"momentum"`
	Quality    float64   `json:"quality"`
	Value      float64   `json:"value"`
	Volatility float64   `json:"volatility"`
	Liquidity  float64   `json:"liquidity"`
	Final      float64   `json:"final"`
	Rank       int       `json:"rank"`
}

// Component returns the score of a single factor
func (s ScoreRecord) Component(f Factor) float64 {
	switch f {
	case FactorMomentum:
		return s.Momentum
	case FactorQuality:
		return s.Quality
	case FactorValue:
		return s.Value
	case FactorVolatility:
		return s.Volatility
	case FactorLiquidity:
		return s.Liquidity
	}
	return 0
}

// Weighted returns the factor-weighted sum of the components
func (s ScoreRecord) Weighted(w FactorWeights) float64 {
	return w.Momentum*s.Momentum +
		w.Quality*s.Quality +
		w.Value*s.Value +
		w.Volatility*s.Volatility +
		w.Liquidity*s.Liquidity
}
