package agent

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/nvandessel/psiz/internal/embedding"
	"github.com/nvandessel/psiz/internal/trials"
)

func TestLogLikelihood(t *testing.T) {
	m := lineModel(t)
	obs, err := trials.NewObservations([][]int{
		{0, 2, 1, -1},
		{0, 3, 1, 2},
		{0, 3, 1, 2},
	},
		trials.WithNSelect(1, 2, 2),
		trials.WithIsRanked(true, true, false),
		trials.WithGroupID(0, 1, 0),
	)
	require.NoError(t, err)

	ll, err := NewEngine().LogLikelihood(context.Background(), obs, m)
	require.NoError(t, err)
	require.Len(t, ll, 3)

	// 2 references, reference 2 chosen over reference 1.
	a, b := sim(t, m, 0, 0, 2), sim(t, m, 0, 0, 1)
	assert.InDelta(t, math.Log(a/(a+b)), ll[0], 1e-12)

	// 3 references ranked under group 1: 3 first, then 1.
	s3, s1, s2 := sim(t, m, 1, 0, 3), sim(t, m, 1, 0, 1), sim(t, m, 1, 0, 2)
	want := s3 / (s3 + s1 + s2) * s1 / (s1 + s2)
	assert.InDelta(t, math.Log(want), ll[1], 1e-12)

	// Unranked: {3, 1} in either order, under group 0.
	s3, s1, s2 = sim(t, m, 0, 0, 3), sim(t, m, 0, 0, 1), sim(t, m, 0, 0, 2)
	total := s3 + s1 + s2
	want = s3/total*s1/(s1+s2) + s1/total*s3/(s3+s2)
	assert.InDelta(t, math.Log(want), ll[2], 1e-12)
}

func TestLogLikelihood_AveragesSamples(t *testing.T) {
	k := embedding.NewExponential()
	require.NoError(t, k.Beta.Set(1))
	z0 := mat.NewDense(3, 1, []float64{0, 1, 2})
	z1 := mat.NewDense(3, 1, []float64{0, 2, 1})
	m, err := embedding.New(k, []*mat.Dense{z0, z1}, mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)

	obs, err := trials.NewObservations([][]int{{0, 1, 2}})
	require.NoError(t, err)

	ll, err := NewEngine().LogLikelihood(context.Background(), obs, m)
	require.NoError(t, err)

	near := math.Exp(-1) / (math.Exp(-1) + math.Exp(-2))
	far := math.Exp(-2) / (math.Exp(-1) + math.Exp(-2))
	assert.InDelta(t, math.Log((near+far)/2), ll[0], 1e-12)
}

func TestLogLikelihood_SimulatedJudgmentsAreFinite(t *testing.T) {
	m := randomModel(t, 20)
	d, err := trials.NewDocket([][]int{
		{0, 1, 2, -1, -1},
		{3, 4, 5, 6, 7},
		{8, 9, 10, 11, -1},
	}, trials.WithNSelect(1, 2, 3), trials.WithIsRanked(true, false, true))
	require.NoError(t, err)

	a, err := NewAgent(m, WithSeed(9))
	require.NoError(t, err)
	obs, err := a.Simulate(context.Background(), d)
	require.NoError(t, err)

	ll, err := NewEngine().LogLikelihood(context.Background(), obs, m)
	require.NoError(t, err)
	for i, v := range ll {
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v), "trial %d: %v", i, v)
		assert.LessOrEqual(t, v, 0.0, "trial %d", i)
	}
}

func TestLogLikelihood_NilObservations(t *testing.T) {
	_, err := NewEngine().LogLikelihood(context.Background(), nil, lineModel(t))
	assert.Error(t, err)
}

func TestRecordedOutcomes(t *testing.T) {
	e := NewEngine()
	set, err := e.Outcomes(trials.Config{ConfigKey: trials.ConfigKey{NReference: 3, NSelect: 2}})
	require.NoError(t, err)

	assert.Equal(t, []int{0}, recordedOutcomes(set, true))
	unranked := recordedOutcomes(set, false)
	require.Len(t, unranked, 2)
	for _, k := range unranked {
		assert.ElementsMatch(t, []int{0, 1}, set.Row(k)[:2])
	}
}
