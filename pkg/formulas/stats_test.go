package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZScores(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected []float64
	}{
		{
			name:     "constant series is all zeros",
			values:   []float64{3, 3, 3, 3},
			expected: []float64{0, 0, 0, 0},
		},
		{
			name:     "single value is zero",
			values:   []float64{42},
			expected: []float64{0},
		},
		{
			name:     "empty input",
			values:   []float64{},
			expected: []float64{},
		},
		{
			name:     "symmetric values",
			values:   []float64{1, 2, 3},
			expected: []float64{-1, 0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ZScores(tt.values)
			require.Len(t, got, len(tt.expected))
			for i := range got {
				assert.False(t, math.IsNaN(got[i]))
				assert.InDelta(t, tt.expected[i], got[i], 1e-9)
			}
		})
	}
}

func TestZScores_NonConstantHasZeroMeanUnitStd(t *testing.T) {
	z := ZScores([]float64{0.1, -0.4, 2.3, 0.8, 1.1})
	assert.InDelta(t, 0.0, Mean(z), 1e-9)
	assert.InDelta(t, 1.0, StdDev(z), 1e-9)
}

func TestSlope(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		expected  float64
		tolerance float64
	}{
		{"rising line", []float64{1, 2, 3, 4, 5}, 1.0, 1e-9},
		{"falling line", []float64{10, 8, 6, 4}, -2.0, 1e-9},
		{"flat", []float64{5, 5, 5}, 0.0, 1e-9},
		{"too short", []float64{5}, 0.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Slope(tt.values), tt.tolerance)
		})
	}
}

func TestCorrelation(t *testing.T) {
	corr, ok := Correlation([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
	require.True(t, ok)
	assert.InDelta(t, 1.0, corr, 1e-9)

	corr, ok = Correlation([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
	require.True(t, ok)
	assert.InDelta(t, -1.0, corr, 1e-9)

	_, ok = Correlation([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.False(t, ok, "flat series has no defined correlation")

	_, ok = Correlation([]float64{1, 2}, []float64{1})
	assert.False(t, ok)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)

	assert.Empty(t, CalculateReturns([]float64{100}))
}

func TestCalculateLogReturns(t *testing.T) {
	returns := CalculateLogReturns([]float64{100, 0, 100, 110})
	require.Len(t, returns, 1)
	assert.InDelta(t, math.Log(1.1), returns[0], 1e-9)
}

func TestAnnualizedVolatility(t *testing.T) {
	assert.Equal(t, 0.0, AnnualizedVolatility([]float64{0.01}))

	returns := []float64{0.01, -0.01, 0.01, -0.01}
	expected := StdDev(returns) * math.Sqrt(252)
	assert.InDelta(t, expected, AnnualizedVolatility(returns), 1e-12)
}

func TestClipAndRound(t *testing.T) {
	assert.Equal(t, 2.0, Clip(5, -2, 2))
	assert.Equal(t, -2.0, Clip(-5, -2, 2))
	assert.Equal(t, 0.5, Clip(0.5, -2, 2))

	assert.Equal(t, 0.1235, Round(0.123456, 4))
	assert.Equal(t, 0.05, Round(0.0500000001, 4))
}
