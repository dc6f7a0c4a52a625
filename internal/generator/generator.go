// Package generator builds dockets of unjudged trials.
package generator

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/nvandessel/psiz/internal/constants"
	"github.com/nvandessel/psiz/internal/trials"
)

// Random generates trials whose stimuli are drawn uniformly without
// replacement. References within a trial are sorted ascending.
type Random struct {
	nStimuli int
	src      rand.Source
}

// NewRandom creates a generator over stimuli [0, nStimuli). A nil src
// means an unseeded PCG.
func NewRandom(nStimuli int, src rand.Source) (*Random, error) {
	if nStimuli < 1+constants.MinReference {
		return nil, fmt.Errorf("new random generator: need at least %d stimuli, got %d",
			1+constants.MinReference, nStimuli)
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Random{nStimuli: nStimuli, src: src}, nil
}

// NStimuli returns the size of the stimulus pool.
func (g *Random) NStimuli() int { return g.nStimuli }

// Generate returns nTrial trials, each with nReference references of which
// nSelect are to be selected.
func (g *Random) Generate(nTrial, nReference, nSelect int, isRanked bool) (*trials.Docket, error) {
	if nTrial < 1 {
		return nil, fmt.Errorf("generate: n_trial must be positive, got %d", nTrial)
	}
	if nReference+1 > g.nStimuli {
		return nil, fmt.Errorf("generate: %d references and a query need %d stimuli, have %d",
			nReference, nReference+1, g.nStimuli)
	}

	stimulusSet := make([][]int, nTrial)
	for i := range stimulusSet {
		row := make([]int, nReference+1)
		sampleuv.WithoutReplacement(row, g.nStimuli, g.src)
		slices.Sort(row[1:])
		stimulusSet[i] = row
	}

	d, err := trials.NewDocket(stimulusSet,
		trials.WithNSelect(nSelect),
		trials.WithIsRanked(isRanked),
		trials.WithNStimuli(g.nStimuli),
	)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return d, nil
}
