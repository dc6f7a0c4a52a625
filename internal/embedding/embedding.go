// Package embedding provides psychological embeddings: stimulus coordinates,
// per-group attention weights and a similarity kernel.
//
// Coordinates are stored as one gonum matrix per posterior sample, each of
// shape (n_stimuli, n_dim). A point estimate is a single sample.
package embedding

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/nvandessel/psiz/internal/trials"
)

// Model is a psychological embedding.
type Model struct {
	kernel    Kernel
	points    []*mat.Dense
	attention *mat.Dense
}

// New builds a Model. Every sample must share one shape, and attention must
// have one row per group with one column per dimension. A nil attention
// gives a single group with unit weights.
func New(kernel Kernel, points []*mat.Dense, attention *mat.Dense) (*Model, error) {
	if kernel == nil {
		return nil, fmt.Errorf("new embedding: nil kernel")
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("new embedding: %w: no point samples", trials.ErrDimensionMismatch)
	}
	nStimuli, nDim := points[0].Dims()
	for i, p := range points[1:] {
		r, c := p.Dims()
		if r != nStimuli {
			return nil, fmt.Errorf("new embedding: sample %d has %d stimuli, want %d",
				i+1, r, nStimuli)
		}
		if c != nDim {
			return nil, &trials.DimensionMismatchError{Field: fmt.Sprintf("points[%d]", i+1), Got: c, Want: nDim}
		}
	}

	if attention == nil {
		attention = uniformAttention(1, nDim)
	}
	if _, c := attention.Dims(); c != nDim {
		return nil, &trials.DimensionMismatchError{Field: "attention", Got: c, Want: nDim}
	}

	samples := make([]*mat.Dense, len(points))
	for i, p := range points {
		samples[i] = mat.DenseCopyOf(p)
	}
	return &Model{kernel: kernel, points: samples, attention: mat.DenseCopyOf(attention)}, nil
}

// Random draws a model with nStimuli points from a standard normal centred
// on one, the way ground-truth embeddings are seeded for simulation.
func Random(kernel Kernel, nStimuli, nDim, nGroup int, rng *rand.Rand) (*Model, error) {
	if nStimuli < 1 || nDim < 1 || nGroup < 1 {
		return nil, fmt.Errorf("random embedding: n_stimuli, n_dim and n_group must be positive")
	}
	z := mat.NewDense(nStimuli, nDim, nil)
	for i := 0; i < nStimuli; i++ {
		for j := 0; j < nDim; j++ {
			z.Set(i, j, 1+rng.NormFloat64())
		}
	}
	return New(kernel, []*mat.Dense{z}, uniformAttention(nGroup, nDim))
}

func uniformAttention(nGroup, nDim int) *mat.Dense {
	w := mat.NewDense(nGroup, nDim, nil)
	for g := 0; g < nGroup; g++ {
		for j := 0; j < nDim; j++ {
			w.Set(g, j, 1)
		}
	}
	return w
}

// Kernel returns the similarity kernel. The kernel is shared, not copied.
func (m *Model) Kernel() Kernel { return m.kernel }

// NStimuli returns the number of stimuli.
func (m *Model) NStimuli() int {
	r, _ := m.points[0].Dims()
	return r
}

// NDim returns the dimensionality of the embedding.
func (m *Model) NDim() int {
	_, c := m.points[0].Dims()
	return c
}

// NGroup returns the number of attention groups.
func (m *Model) NGroup() int {
	r, _ := m.attention.Dims()
	return r
}

// NSample returns the number of point samples.
func (m *Model) NSample() int { return len(m.points) }

// Points returns the coordinate matrices, one per sample.
// The matrices are shared and must not be modified.
func (m *Model) Points() []*mat.Dense { return m.points }

// SetPoints replaces sample 0 with z.
func (m *Model) SetPoints(z *mat.Dense) error {
	r, c := z.Dims()
	if r != m.NStimuli() {
		return fmt.Errorf("set points: got %d stimuli, want %d", r, m.NStimuli())
	}
	if c != m.NDim() {
		return &trials.DimensionMismatchError{Field: "points", Got: c, Want: m.NDim()}
	}
	m.points[0] = mat.DenseCopyOf(z)
	return nil
}

// Attention returns a copy of the weights for group.
func (m *Model) Attention(group int) ([]float64, error) {
	if group < 0 || group >= m.NGroup() {
		return nil, fmt.Errorf("attention: group %d outside [0, %d)", group, m.NGroup())
	}
	return mat.Row(nil, group, m.attention), nil
}

// SetAttention replaces the weights of group.
func (m *Model) SetAttention(group int, w []float64) error {
	if group < 0 || group >= m.NGroup() {
		return fmt.Errorf("set attention: group %d outside [0, %d)", group, m.NGroup())
	}
	if len(w) != m.NDim() {
		return &trials.DimensionMismatchError{Field: "attention", Got: len(w), Want: m.NDim()}
	}
	m.attention.SetRow(group, w)
	return nil
}

// Similarity scores a query against a reference with the model's kernel.
func (m *Model) Similarity(query, reference, attention []float64) float64 {
	return m.kernel.Similarity(query, reference, attention)
}
