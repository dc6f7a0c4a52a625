package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/nvandessel/psiz/internal/agent"
	"github.com/nvandessel/psiz/internal/embedding"
	"github.com/nvandessel/psiz/internal/generator"
	"github.com/nvandessel/psiz/internal/outcomes"
	"github.com/nvandessel/psiz/internal/store"
	"github.com/nvandessel/psiz/internal/trials"
)

// Runner orchestrates multi-round simulation experiments against a real
// trial store and probability engine.
type Runner struct {
	t      *testing.T
	store  *store.SQLiteTrialStore
	engine *agent.Engine
}

// NewRunner creates a simulation runner with an isolated SQLite store
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.NewSQLiteTrialStore(store.LocalPsizPath(tmpDir))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s, engine: agent.NewEngine()}
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	rng := rand.New(rand.NewPCG(scenario.Seed, scenario.Seed+1))

	// Phase 1: Build the embedding and the docket.
	model := r.buildModel(scenario, rng)

	gen, err := generator.NewRandom(model.NStimuli(), rng)
	if err != nil {
		r.t.Fatalf("Run(%s): NewRandom: %v", scenario.Name, err)
	}
	docket, err := gen.Generate(scenario.NTrial, scenario.NReference, scenario.NSelect, !scenario.Unranked)
	if err != nil {
		r.t.Fatalf("Run(%s): Generate: %v", scenario.Name, err)
	}

	// Phase 2: Score the docket once for the agent's group.
	a, err := agent.NewAgent(model,
		agent.WithGroup(scenario.Group),
		agent.WithSeed(scenario.Seed),
		agent.WithEngine(r.engine),
	)
	if err != nil {
		r.t.Fatalf("Run(%s): NewAgent: %v", scenario.Name, err)
	}
	dist, err := a.Probability(ctx, docket)
	if err != nil {
		r.t.Fatalf("Run(%s): Probability: %v", scenario.Name, err)
	}

	counts := make([][]int, docket.NTrial())
	for i := range counts {
		counts[i] = make([]int, dist.NOutcome(i))
	}

	// Phase 3: Run rounds.
	rounds := make([]RoundResult, scenario.Rounds)
	for round := range rounds {
		if scenario.BeforeRound != nil {
			scenario.BeforeRound(round, model)
		}
		rr := r.runRound(ctx, round, a, docket, scenario)
		for i, k := range rr.Outcomes {
			counts[i][k]++
		}
		rounds[round] = rr
	}

	return SimulationResult{
		Scenario:     scenario,
		Model:        model,
		Docket:       docket,
		Distribution: dist,
		Rounds:       rounds,
		Counts:       counts,
		Store:        r.store,
	}
}

// buildModel returns the scenario's model or a random one.
func (r *Runner) buildModel(scenario Scenario, rng *rand.Rand) *embedding.Model {
	r.t.Helper()
	if scenario.Model != nil {
		return scenario.Model
	}

	nDim := scenario.NDim
	if nDim == 0 {
		nDim = 2
	}
	nGroup := scenario.NGroup
	if nGroup == 0 {
		nGroup = 1
	}
	name := scenario.Kernel
	if name == "" {
		name = "exponential"
	}

	kernel, err := embedding.NewKernel(name, nDim)
	if err != nil {
		r.t.Fatalf("Run(%s): NewKernel: %v", scenario.Name, err)
	}
	model, err := embedding.Random(kernel, scenario.NStimuli, nDim, nGroup, rng)
	if err != nil {
		r.t.Fatalf("Run(%s): Random: %v", scenario.Name, err)
	}
	return model
}

// runRound simulates the docket once and identifies every trial's outcome.
func (r *Runner) runRound(ctx context.Context, index int, a *agent.Agent, docket *trials.Docket, scenario Scenario) RoundResult {
	r.t.Helper()

	obs, err := a.Simulate(ctx, docket)
	if err != nil {
		r.t.Fatalf("Run(%s): round %d: Simulate: %v", scenario.Name, index, err)
	}

	configs := docket.Configs()
	configIdx := docket.ConfigIdx()
	picked := make([]int, docket.NTrial())
	for i := range picked {
		set, err := r.engine.Outcomes(configs[configIdx[i]])
		if err != nil {
			r.t.Fatalf("Run(%s): round %d: Outcomes: %v", scenario.Name, index, err)
		}
		k, err := identifyOutcome(set, docket.Row(i), obs.Row(i))
		if err != nil {
			r.t.Fatalf("Run(%s): round %d: trial %d: %v", scenario.Name, index, i, err)
		}
		picked[i] = k
	}

	rr := RoundResult{Index: index, Observations: obs, Outcomes: picked}
	if scenario.Persist {
		rr.StoreName = fmt.Sprintf("%s-round-%03d", scenario.Name, index)
		if _, err := r.store.Save(ctx, rr.StoreName, obs); err != nil {
			r.t.Fatalf("Run(%s): round %d: Save: %v", scenario.Name, index, err)
		}
	}
	return rr
}

// identifyOutcome finds the row of set that turns the presented references
// into the observed ones.
func identifyOutcome(set *outcomes.Set, presented, observed []int) (int, error) {
	n := set.NReference()
	perm := make([]int, n)
	for j := 0; j < n; j++ {
		pos := slices.Index(presented[1:n+1], observed[j+1])
		if pos < 0 {
			return 0, fmt.Errorf("observed reference %d was not presented", observed[j+1])
		}
		perm[j] = pos
	}
	for k := 0; k < set.Len(); k++ {
		if slices.Equal(set.Row(k), perm) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("reference order %v is not an enumerated outcome", perm)
}
