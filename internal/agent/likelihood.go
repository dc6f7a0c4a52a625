package agent

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/nvandessel/psiz/internal/outcomes"
	"github.com/nvandessel/psiz/internal/trials"
)

// LogLikelihood returns, for every judged trial, the natural log of the
// probability of the judgment it records, using each trial's own group.
//
// Observations store the selected references first, in selection order, so
// the recorded judgment is outcome 0. For unranked trials every reordering
// of the selected references is the same judgment and their probabilities
// are summed. With several embedding samples the probability is averaged
// across samples before the log is taken.
func (e *Engine) LogLikelihood(ctx context.Context, obs *trials.Observations, emb Embedding) ([]float64, error) {
	if obs == nil {
		return nil, fmt.Errorf("log likelihood: nil observations")
	}
	dist, err := e.Probability(ctx, obs, emb)
	if err != nil {
		return nil, fmt.Errorf("log likelihood: %w", err)
	}

	observed := make([][]int, len(dist.Configs))
	for c, cfg := range dist.Configs {
		observed[c] = recordedOutcomes(dist.Outcomes[c], cfg.IsRanked)
	}

	ll := make([]float64, obs.NTrial())
	for i, c := range dist.ConfigIdx {
		var p float64
		for _, z := range dist.Samples {
			for _, k := range observed[c] {
				p += z.At(i, k)
			}
		}
		ll[i] = math.Log(p / float64(len(dist.Samples)))
	}
	return ll, nil
}

// recordedOutcomes lists the outcomes matching a recorded judgment: outcome 0
// when ranked, otherwise every outcome whose selections are slots
// [0, n_select) in any order.
func recordedOutcomes(set *outcomes.Set, ranked bool) []int {
	if ranked {
		return []int{0}
	}
	nSelect := set.NSelect()
	var ks []int
	for k := 0; k < set.Len(); k++ {
		selected := set.Row(k)[:nSelect]
		if !slices.ContainsFunc(selected, func(slot int) bool { return slot >= nSelect }) {
			ks = append(ks, k)
		}
	}
	return ks
}
