package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input   string
		want    Strategy
		wantErr bool
	}{
		{"equal_weight", StrategyEqualWeight, false},
		{"SCORE_WEIGHTED", StrategyScoreWeighted, false},
		{"risk_parity", StrategyRiskParity, false},
		{"momentum_tilt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStrategy(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRiskTolerance(t *testing.T) {
	assert.Equal(t, ToleranceAggressive, ParseRiskTolerance("Aggressive"))
	assert.Equal(t, ToleranceModerate, ParseRiskTolerance(""))
	assert.Equal(t, ToleranceModerate, ParseRiskTolerance("yolo"))
}

func TestScoreRecord_Weighted(t *testing.T) {
	s := ScoreRecord{Momentum: 1, Quality: 2, Value: 3, Volatility: 4, Liquidity: 5}
	w := FactorWeights{Momentum: 0.1, Quality: 0.1, Value: 0.1, Volatility: 0.1, Liquidity: 0.1}
	assert.InDelta(t, 1.5, s.Weighted(w), 1e-12)
	assert.Equal(t, 3.0, s.Component(FactorValue))
}

func TestTruncateDate(t *testing.T) {
	in := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), TruncateDate(in))
}
