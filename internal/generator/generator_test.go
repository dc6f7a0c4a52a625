package generator

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandom_Generate(t *testing.T) {
	const (
		nStimuli   = 10
		nTrial     = 50
		nReference = 4
		nSelect    = 2
	)
	g, err := NewRandom(nStimuli, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)

	d, err := g.Generate(nTrial, nReference, nSelect, true)
	require.NoError(t, err)

	assert.Equal(t, nTrial, d.NTrial())
	assert.Equal(t, nReference, d.MaxNReference())
	for i, row := range d.StimulusSet() {
		require.Len(t, row, nReference+1)
		seen := make(map[int]bool)
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0)
			assert.Less(t, v, nStimuli)
			assert.False(t, seen[v], "trial %d repeats stimulus %d", i, v)
			seen[v] = true
		}
		assert.True(t, slices.IsSorted(row[1:]), "trial %d references not sorted: %v", i, row)
		assert.Equal(t, nReference, d.NReference()[i])
		assert.Equal(t, nSelect, d.NSelect()[i])
		assert.True(t, d.IsRanked()[i])
	}
	assert.Len(t, d.Configs(), 1)
}

func TestRandom_UsesWholePool(t *testing.T) {
	g, err := NewRandom(6, rand.New(rand.NewPCG(5, 9)))
	require.NoError(t, err)

	d, err := g.Generate(200, 2, 1, false)
	require.NoError(t, err)

	queries := make(map[int]bool)
	for _, row := range d.StimulusSet() {
		queries[row[0]] = true
	}
	assert.Len(t, queries, 6)
	assert.False(t, d.IsRanked()[0])
}

func TestRandom_FullDraw(t *testing.T) {
	g, err := NewRandom(5, rand.NewPCG(2, 3))
	require.NoError(t, err)

	d, err := g.Generate(10, 4, 1, true)
	require.NoError(t, err)
	for _, row := range d.StimulusSet() {
		got := slices.Clone(row)
		slices.Sort(got)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	}
}

func TestRandom_LargePool(t *testing.T) {
	g, err := NewRandom(500, rand.NewPCG(8, 13))
	require.NoError(t, err)

	d, err := g.Generate(100, 2, 1, true)
	require.NoError(t, err)
	for i, row := range d.StimulusSet() {
		assert.NotEqual(t, row[0], row[1], "trial %d", i)
		assert.NotEqual(t, row[0], row[2], "trial %d", i)
		assert.Less(t, row[1], row[2], "trial %d", i)
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0)
			assert.Less(t, v, 500)
		}
	}
}

func TestRandom_SameSourceSameDocket(t *testing.T) {
	generate := func() [][]int {
		g, err := NewRandom(30, rand.NewPCG(21, 22))
		require.NoError(t, err)
		d, err := g.Generate(20, 4, 2, true)
		require.NoError(t, err)
		return d.StimulusSet()
	}
	assert.Equal(t, generate(), generate())
}

func TestRandom_Errors(t *testing.T) {
	_, err := NewRandom(2, nil)
	assert.Error(t, err)

	g, err := NewRandom(5, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, g.NStimuli())

	_, err = g.Generate(0, 2, 1, true)
	assert.Error(t, err)
	_, err = g.Generate(3, 5, 1, true)
	assert.Error(t, err)
	_, err = g.Generate(3, 2, 3, true)
	assert.Error(t, err)
}
