package simulation

import (
	"github.com/nvandessel/psiz/internal/agent"
	"github.com/nvandessel/psiz/internal/embedding"
	"github.com/nvandessel/psiz/internal/store"
	"github.com/nvandessel/psiz/internal/trials"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name string

	// Model, when non-nil, is used as is. Otherwise a random embedding is
	// built from NStimuli, NDim, NGroup and Kernel.
	Model    *embedding.Model
	NStimuli int
	NDim     int    // 0 = 2
	NGroup   int    // 0 = 1
	Kernel   string // "" = exponential

	// Group is the agent population whose attention weights drive the draws.
	Group int

	NTrial     int
	NReference int
	NSelect    int
	Unranked   bool

	// Rounds is the number of times the docket is simulated.
	Rounds int

	// Seed drives the generator, the random embedding and the agent.
	Seed uint64

	// Persist saves every round's observations in the runner's store.
	Persist bool

	// BeforeRound, when non-nil, is called before each round executes.
	// Use this to change the model between rounds (e.g., shifting attention).
	BeforeRound func(round int, m *embedding.Model)
}

// RoundResult captures a single simulated round.
type RoundResult struct {
	Index        int
	Observations *trials.Observations

	// Outcomes holds, per trial, the row of the trial's outcome set that
	// the draw produced.
	Outcomes []int

	// StoreName is the name the round was persisted under, if any.
	StoreName string
}

// SimulationResult captures every round plus the engine's view of the docket.
type SimulationResult struct {
	Scenario     Scenario
	Model        *embedding.Model
	Docket       *trials.Docket
	Distribution *agent.Distribution
	Rounds       []RoundResult

	// Counts[i][k] is how often trial i produced outcome k.
	Counts [][]int

	Store *store.SQLiteTrialStore
}

// Frequencies returns Counts normalized by the number of rounds.
func (r SimulationResult) Frequencies() [][]float64 {
	freq := make([][]float64, len(r.Counts))
	n := float64(len(r.Rounds))
	for i, row := range r.Counts {
		freq[i] = make([]float64, len(row))
		if n == 0 {
			continue
		}
		for k, c := range row {
			freq[i][k] = float64(c) / n
		}
	}
	return freq
}

// Deviations returns the largest and the mean absolute difference between
// empirical frequencies and engine probabilities over every trial's valid
// outcomes.
func (r SimulationResult) Deviations() (maxDev, meanDev float64) {
	freq := r.Frequencies()
	var (
		sum   float64
		cells int
	)
	for i, row := range freq {
		p := r.Distribution.Row(0, i)
		for k := 0; k < r.Distribution.NOutcome(i); k++ {
			d := row[k] - p[k]
			if d < 0 {
				d = -d
			}
			if d > maxDev {
				maxDev = d
			}
			sum += d
			cells++
		}
	}
	if cells > 0 {
		meanDev = sum / float64(cells)
	}
	return maxDev, meanDev
}
