// Package stats defines the statistics collaborator interfaces the core
// consumes without depending on a concrete numerics library directly (the
// §1/§6 "out of scope" boundary extended to cover CLHS's quantile/
// correlation engines and the supplementary `pca` operation). gonumstats
// provides the default implementation.
package stats

import "errors"

// ErrPCAFailed is returned by a PCATrainer when the input is rank-deficient
// or otherwise unsuitable for principal component decomposition.
var ErrPCAFailed = errors.New("stats: principal component decomposition failed")

// QuantileEstimator is a streaming, epsilon-approximate quantile sketch
// fed one value at a time (§4.I Pass 1, §4.J "quantiles"). Query returns
// the cut point for one quantile level from the values observed so far.
type QuantileEstimator interface {
	Add(v float64)
	// Query returns the value at quantile q in [0, 1].
	Query(q float64) float64
}

// CovarianceAccumulator is a streaming covariance/correlation engine fed
// whole feature rows (§4.I Pass 1 "covariance engine").
type CovarianceAccumulator interface {
	AddRow(row []float64)
	// Correlation returns the full nFeat x nFeat population correlation
	// matrix accumulated so far.
	Correlation() [][]float64
}

// PCATrainer fits a dense PCA model over a set of observations (the
// `pca` supplementary operation).
type PCATrainer interface {
	// Fit trains on rows (one observation per row, nFeat columns) and
	// returns nComp principal components plus their eigenvalues.
	Fit(rows [][]float64, nComp int) (components [][]float64, eigenvalues []float64, err error)
}

// MatMul multiplies an m x k matrix by a k x n matrix, used to project
// pixels through a trained PCA model.
func MatMul(a [][]float64, b [][]float64) [][]float64 {
	m := len(a)
	if m == 0 {
		return nil
	}
	k := len(a[0])
	n := len(b[0])
	out := make([][]float64, m)
	for i := 0; i < m; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			var sum float64
			for l := 0; l < k; l++ {
				sum += a[i][l] * b[l][j]
			}
			out[i][j] = sum
		}
	}
	return out
}
