package embedding

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SimilarityMatrix returns the (n_stimuli, n_stimuli) matrix of pairwise
// similarities for one sample under one group's attention weights.
func SimilarityMatrix(m *Model, sample, group int) (*mat.Dense, error) {
	if sample < 0 || sample >= m.NSample() {
		return nil, fmt.Errorf("similarity matrix: sample %d outside [0, %d)", sample, m.NSample())
	}
	w, err := m.Attention(group)
	if err != nil {
		return nil, fmt.Errorf("similarity matrix: %w", err)
	}

	z := m.points[sample]
	n := m.NStimuli()
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		zi := z.RawRowView(i)
		for j := i; j < n; j++ {
			s := m.kernel.Similarity(zi, z.RawRowView(j), w)
			out.Set(i, j, s)
			out.Set(j, i, s)
		}
	}
	return out, nil
}

// MatrixCorrelation returns R^2 between the upper off-diagonal entries of
// two square matrices of the same size. It measures how well one embedding
// recovers another's similarity structure.
func MatrixCorrelation(a, b mat.Matrix) (float64, error) {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != ca || rb != cb || ra != rb {
		return 0, fmt.Errorf("matrix correlation: need equal square matrices, got %dx%d and %dx%d",
			ra, ca, rb, cb)
	}
	if ra < 3 {
		return 0, fmt.Errorf("matrix correlation: need at least 3 stimuli, got %d", ra)
	}

	n := ra * (ra - 1) / 2
	x := make([]float64, 0, n)
	y := make([]float64, 0, n)
	for i := 0; i < ra; i++ {
		for j := i + 1; j < ra; j++ {
			x = append(x, a.At(i, j))
			y = append(y, b.At(i, j))
		}
	}
	r := stat.Correlation(x, y, nil)
	return r * r, nil
}
