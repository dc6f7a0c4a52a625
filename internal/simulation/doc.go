// Package simulation provides a multi-round test harness for validating the
// outcome-probability engine against the agent's own draws.
//
// The harness exercises the real generator, Engine, Agent and
// SQLiteTrialStore with no mocks. A Scenario describes an embedding and a
// docket shape; the Runner generates the docket, simulates it for a number of
// rounds, tallies which outcome each trial produced and keeps the engine's
// distribution for comparison.
//
// Each test gets an isolated SQLite database via t.TempDir() and a sandboxed
// HOME to prevent touching user data.
//
// Usage:
//
//	func TestFrequencyConvergence(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:       "2c1",
//	        NStimuli:   10,
//	        NTrial:     20,
//	        NReference: 2,
//	        NSelect:    1,
//	        Rounds:     500,
//	    })
//	    simulation.AssertFrequenciesMatch(t, result, 0.1)
//	}
package simulation
