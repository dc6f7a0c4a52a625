package simulation

import (
	"context"
	"math"
	"testing"

	"github.com/nvandessel/psiz/internal/constants"
)

// AssertFrequenciesMatch asserts that no trial's empirical outcome frequency
// strays more than maxDev from the engine's probability.
func AssertFrequenciesMatch(t *testing.T, result SimulationResult, maxDev float64) {
	t.Helper()
	worst, _ := result.Deviations()
	if worst > maxDev {
		t.Errorf("AssertFrequenciesMatch: max deviation %.4f > %.4f over %d rounds", worst, maxDev, len(result.Rounds))
	}
}

// AssertMeanDeviationBelow asserts that the mean absolute deviation between
// empirical frequencies and engine probabilities is below maxMean.
func AssertMeanDeviationBelow(t *testing.T, result SimulationResult, maxMean float64) {
	t.Helper()
	_, mean := result.Deviations()
	if mean > maxMean {
		t.Errorf("AssertMeanDeviationBelow: mean deviation %.4f > %.4f over %d rounds", mean, maxMean, len(result.Rounds))
	}
}

// AssertRowsNormalized asserts that every trial's probabilities sum to 1 and
// that padding columns are zero.
func AssertRowsNormalized(t *testing.T, result SimulationResult) {
	t.Helper()
	for s, m := range result.Distribution.Samples {
		rows, cols := m.Dims()
		for i := 0; i < rows; i++ {
			var sum float64
			n := result.Distribution.NOutcome(i)
			for k := 0; k < cols; k++ {
				v := m.At(i, k)
				if k >= n && v != 0 {
					t.Errorf("AssertRowsNormalized: sample %d trial %d: padding column %d = %g", s, i, k, v)
				}
				sum += v
			}
			if math.Abs(sum-1) > constants.ProbabilityTolerance {
				t.Errorf("AssertRowsNormalized: sample %d trial %d: row sums to %.9f", s, i, sum)
			}
		}
	}
}

// AssertLikelyOutcomesDrawn asserts that every outcome with probability at
// least minProb was drawn at least once.
func AssertLikelyOutcomesDrawn(t *testing.T, result SimulationResult, minProb float64) {
	t.Helper()
	for i, row := range result.Counts {
		p := result.Distribution.Row(0, i)
		for k, c := range row {
			if p[k] >= minProb && c == 0 {
				t.Errorf("AssertLikelyOutcomesDrawn: trial %d outcome %d (p=%.4f) never drawn in %d rounds", i, k, p[k], len(result.Rounds))
			}
		}
	}
}

// AssertObservationsMatchDocket asserts that every round kept the docket's
// query stimuli, reference sets and configuration shape.
func AssertObservationsMatchDocket(t *testing.T, result SimulationResult) {
	t.Helper()
	docket := result.Docket
	for _, rr := range result.Rounds {
		obs := rr.Observations
		if obs.NTrial() != docket.NTrial() {
			t.Errorf("AssertObservationsMatchDocket: round %d: %d trials, want %d", rr.Index, obs.NTrial(), docket.NTrial())
			continue
		}
		for i := 0; i < docket.NTrial(); i++ {
			want, got := docket.Row(i), obs.Row(i)
			if got[constants.QueryColumn] != want[constants.QueryColumn] {
				t.Errorf("AssertObservationsMatchDocket: round %d trial %d: query %d, want %d", rr.Index, i, got[0], want[0])
			}
			if !sameMembers(got[1:], want[1:]) {
				t.Errorf("AssertObservationsMatchDocket: round %d trial %d: references %v, want a reordering of %v", rr.Index, i, got[1:], want[1:])
			}
		}
		if len(obs.Configs()) != len(docket.Configs()) {
			t.Errorf("AssertObservationsMatchDocket: round %d: %d configs, want %d", rr.Index, len(obs.Configs()), len(docket.Configs()))
		}
	}
}

// AssertPersistedRounds asserts that every persisted round loads back from
// the store with the same stimulus set.
func AssertPersistedRounds(t *testing.T, result SimulationResult) {
	t.Helper()
	ctx := context.Background()
	for _, rr := range result.Rounds {
		if rr.StoreName == "" {
			t.Errorf("AssertPersistedRounds: round %d was not persisted", rr.Index)
			continue
		}
		loaded, err := result.Store.Load(ctx, rr.StoreName)
		if err != nil {
			t.Errorf("AssertPersistedRounds: round %d: %v", rr.Index, err)
			continue
		}
		for i := 0; i < loaded.NTrial(); i++ {
			if !equalInts(loaded.Row(i), rr.Observations.Row(i)) {
				t.Errorf("AssertPersistedRounds: round %d trial %d: loaded %v, want %v", rr.Index, i, loaded.Row(i), rr.Observations.Row(i))
			}
		}
	}
}
