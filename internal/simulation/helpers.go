package simulation

import (
	"slices"

	"github.com/nvandessel/psiz/internal/embedding"
	"github.com/nvandessel/psiz/internal/trials"
	"gonum.org/v1/gonum/mat"
)

// LineModel places n stimuli along the x axis at unit spacing with no
// spread in y. Group 0 attends to both dimensions equally.
func LineModel(n int, beta float64) (*embedding.Model, error) {
	z := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		z.Set(i, 0, float64(i))
	}
	kernel := embedding.NewExponential()
	if err := embedding.SetParam(kernel, "beta", beta); err != nil {
		return nil, err
	}
	return embedding.New(kernel, []*mat.Dense{z}, nil)
}

// StackRounds concatenates every round's observations into one container.
func StackRounds(result SimulationResult) (*trials.Observations, error) {
	list := make([]*trials.Observations, len(result.Rounds))
	for i, rr := range result.Rounds {
		list[i] = rr.Observations
	}
	return trials.StackObservations(list...)
}

func sameMembers(a, b []int) bool {
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func equalInts(a, b []int) bool {
	return slices.Equal(a, b)
}
