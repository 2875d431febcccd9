package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCovarianceMatrix(t *testing.T) {
	a := []float64{0.01, 0.02, -0.01, 0.00}
	b := []float64{0.02, 0.04, -0.02, 0.00}

	cov := CovarianceMatrix([][]float64{a, b})
	require.NotNil(t, cov)

	varA := StdDev(a) * StdDev(a)
	assert.InDelta(t, varA, cov.At(0, 0), 1e-12)
	assert.InDelta(t, 4*varA, cov.At(1, 1), 1e-12)
	assert.InDelta(t, 2*varA, cov.At(0, 1), 1e-12)
}

func TestCovarianceMatrix_TooShort(t *testing.T) {
	assert.Nil(t, CovarianceMatrix([][]float64{{0.01}}))
	assert.Nil(t, CovarianceMatrix(nil))
}

func TestQuadraticForm(t *testing.T) {
	a := []float64{0.01, 0.02, -0.01, 0.00}
	cov := CovarianceMatrix([][]float64{a, a})

	variance, sigmaW := QuadraticForm(cov, []float64{0.5, 0.5})
	varA := StdDev(a) * StdDev(a)
	assert.InDelta(t, varA, variance, 1e-12)
	require.Len(t, sigmaW, 2)
	assert.InDelta(t, varA, sigmaW[0], 1e-12)
}
