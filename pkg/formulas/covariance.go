package formulas

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CovarianceMatrix builds the sample covariance matrix of aligned return series.
// series[j] holds the observations of asset j; all series must share a length of at least 2.
func CovarianceMatrix(series [][]float64) *mat.SymDense {
	if len(series) == 0 || len(series[0]) < 2 {
		return nil
	}
	rows := len(series[0])
	data := mat.NewDense(rows, len(series), nil)
	for j, s := range series {
		for i := 0; i < rows; i++ {
			data.Set(i, j, s[i])
		}
	}

	cov := mat.NewSymDense(len(series), nil)
	stat.CovarianceMatrix(cov, data, nil)
	return cov
}

// QuadraticForm returns wᵀ·Σ·w together with the vector Σ·w
func QuadraticForm(cov mat.Symmetric, weights []float64) (float64, []float64) {
	w := mat.NewVecDense(len(weights), append([]float64(nil), weights...))
	var sigmaW mat.VecDense
	sigmaW.MulVec(cov, w)
	return mat.Dot(w, &sigmaW), sigmaW.RawVector().Data
}
