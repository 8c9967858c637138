// Package gonumstats is the default stats.QuantileEstimator/
// CovarianceAccumulator/PCATrainer implementation, backed by
// gonum.org/v1/gonum (§ DOMAIN STACK). Callers that already have a
// numerics stack may substitute their own implementation of the stats
// interfaces; this package exists so the engine has a working default
// without requiring one.
package gonumstats

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/terrastrata/geosample/stats"
)

// reservoirCap bounds the memory of the streaming quantile sketch: once
// full, later values replace a uniformly-chosen existing slot, giving an
// epsilon-approximate quantile over the full stream (§4.I Pass 1
// "epsilon-approximate streaming quantile estimator").
const reservoirCap = 1 << 16

// Quantile is a reservoir-sampling streaming quantile estimator; Query
// computes the exact quantile of the retained sample via gonum/stat.
type Quantile struct {
	reservoir []float64
	seen      int64
	next      func() uint64
}

// NewQuantile creates an estimator. next supplies the reservoir's
// replacement randomness (pass prng.Source.Next64, or any PRNG).
func NewQuantile(next func() uint64) *Quantile {
	return &Quantile{next: next}
}

var _ stats.QuantileEstimator = (*Quantile)(nil)

// Add folds in one observation.
func (q *Quantile) Add(v float64) {
	q.seen++
	if len(q.reservoir) < reservoirCap {
		q.reservoir = append(q.reservoir, v)
		return
	}
	j := q.next() % uint64(q.seen)
	if j < reservoirCap {
		q.reservoir[j] = v
	}
}

// Query returns the q-quantile (q in [0,1]) of the retained sample.
func (q *Quantile) Query(quant float64) float64 {
	if len(q.reservoir) == 0 {
		return 0
	}
	sorted := append([]float64(nil), q.reservoir...)
	sort.Float64s(sorted)
	return stat.Quantile(quant, stat.Empirical, sorted, nil)
}

// Breaks returns nSamp-1 cut points at levels i/nSamp for i in
// [1, nSamp) (§4.I Pass 1 "nSamp-1 probes at levels i/nSamp").
func (q *Quantile) Breaks(nSamp int) []float64 {
	if nSamp <= 1 {
		return nil
	}
	out := make([]float64, nSamp-1)
	for i := 1; i < nSamp; i++ {
		out[i-1] = q.Query(float64(i) / float64(nSamp))
	}
	return out
}

// Covariance is a streaming covariance accumulator; it retains full
// per-feature history (§4.I needs the final population correlation
// matrix, not an incremental one) and computes the correlation matrix
// from gonum/stat.Correlation on demand.
type Covariance struct {
	nFeat   int
	columns [][]float64
}

var _ stats.CovarianceAccumulator = (*Covariance)(nil)

// NewCovariance creates an accumulator for rows of nFeat features.
func NewCovariance(nFeat int) *Covariance {
	return &Covariance{nFeat: nFeat, columns: make([][]float64, nFeat)}
}

// AddRow folds in one feature row.
func (c *Covariance) AddRow(row []float64) {
	for i, v := range row {
		c.columns[i] = append(c.columns[i], v)
	}
}

// Correlation returns the nFeat x nFeat population correlation matrix.
func (c *Covariance) Correlation() [][]float64 {
	out := make([][]float64, c.nFeat)
	for i := range out {
		out[i] = make([]float64, c.nFeat)
	}
	for i := 0; i < c.nFeat; i++ {
		out[i][i] = 1
		for j := i + 1; j < c.nFeat; j++ {
			r := stat.Correlation(c.columns[i], c.columns[j], nil)
			out[i][j] = r
			out[j][i] = r
		}
	}
	return out
}

// PCA is a dense PCA trainer over gonum/stat.PrincipalComponents.
type PCA struct{}

var _ stats.PCATrainer = PCA{}

// Fit trains nComp principal components over rows (one observation per
// row, one column per feature), returning the component loading vectors
// and their corresponding eigenvalues (variances), highest first.
func (PCA) Fit(rows [][]float64, nComp int) ([][]float64, []float64, error) {
	n := len(rows)
	if n == 0 {
		return nil, nil, nil
	}
	k := len(rows[0])
	data := mat.NewDense(n, k, nil)
	for i, row := range rows {
		for j, v := range row {
			data.Set(i, j, v)
		}
	}
	var pc stat.PC
	ok := pc.PrincipalComponents(data, nil)
	if !ok {
		return nil, nil, stats.ErrPCAFailed
	}
	vars := pc.VarsTo(nil)
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	if nComp > k {
		nComp = k
	}
	components := make([][]float64, nComp)
	eigenvalues := make([]float64, nComp)
	for c := 0; c < nComp; c++ {
		components[c] = make([]float64, k)
		for r := 0; r < k; r++ {
			components[c][r] = vecs.At(r, c)
		}
		eigenvalues[c] = vars[c]
	}
	return components, eigenvalues, nil
}
