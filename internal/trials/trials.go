// Package trials holds similarity-judgment trials in canonical form.
//
// A trial shows a query stimulus and a set of reference stimuli. A Docket
// holds trials that have not been judged yet; Observations hold judged
// trials whose reference order records the agent's selections. Both keep
// the stimulus set padded with the sentinel to the widest trial and keep a
// configuration table that groups trials by shape. The table is rebuilt on
// every operation that changes which trials a container holds, so config
// indices are always dense from 0 in order of first occurrence.
package trials

import (
	"github.com/nvandessel/psiz/internal/constants"
)

// Trials is the capability set shared by Docket and Observations.
// The set of implementations is closed.
type Trials interface {
	Kind() constants.Kind
	NTrial() int
	MaxNReference() int
	StimulusSet() [][]int
	Row(i int) []int
	NReference() []int
	NSelect() []int
	IsRanked() []bool
	// GroupID and SessionID are all zero for a Docket.
	GroupID() []int
	SessionID() []int
	Configs() []Config
	ConfigIdx() []int
	Warnings() []Warning

	configKeys() []ConfigKey
	subsetTrials(index []int) (Trials, error)
}

// Subset returns a new container holding the trials at index, in order.
// Duplicates are allowed. Padding is tightened to the widest kept trial.
func Subset(t Trials, index []int) (Trials, error) {
	return t.subsetTrials(index)
}

// Stack concatenates containers of one variant in order.
func Stack(list ...Trials) (Trials, error) {
	if len(list) == 0 {
		return nil, &InvalidTrialError{Reason: "nothing to stack"}
	}
	if bad := nilEntries(list); len(bad) > 0 {
		return nil, &InvalidTrialError{Reason: "nil trials in stack", Rows: bad}
	}
	want := list[0].Kind()
	for _, t := range list[1:] {
		if t.Kind() != want {
			return nil, &TypeMismatchError{Got: t.Kind(), Want: want}
		}
	}

	switch want {
	case constants.KindDocket:
		ds := make([]*Docket, len(list))
		for i, t := range list {
			ds[i] = t.(*Docket)
		}
		d, err := StackDockets(ds...)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		obs := make([]*Observations, len(list))
		for i, t := range list {
			obs[i] = t.(*Observations)
		}
		o, err := StackObservations(obs...)
		if err != nil {
			return nil, err
		}
		return o, nil
	}
}

// nilEntries returns the positions of nil containers in list, typed or not.
func nilEntries(list []Trials) []int {
	var bad []int
	for i, t := range list {
		switch v := t.(type) {
		case nil:
			bad = append(bad, i)
		case *Docket:
			if v == nil {
				bad = append(bad, i)
			}
		case *Observations:
			if v == nil {
				bad = append(bad, i)
			}
		}
	}
	return bad
}

// Summary describes a container's shape.
type Summary struct {
	Kind            constants.Kind `json:"kind"`
	NTrial          int            `json:"n_trial"`
	MaxNReference   int            `json:"max_n_reference"`
	MaxOutcome      int            `json:"max_n_outcome"`
	NStimulus       int            `json:"n_stimulus"`
	Configs         []Config       `json:"configs"`
	TrialsPerConfig []int          `json:"trials_per_config"`
}

// Summarize reports the shape of t. NStimulus counts distinct stimuli
// referenced by any trial.
func Summarize(t Trials) Summary {
	configs := t.Configs()
	counts := make([]int, len(configs))
	for _, c := range t.ConfigIdx() {
		counts[c]++
	}

	seen := make(map[int]struct{})
	for _, row := range t.StimulusSet() {
		for _, v := range row {
			if v != constants.Sentinel {
				seen[v] = struct{}{}
			}
		}
	}

	return Summary{
		Kind:            t.Kind(),
		NTrial:          t.NTrial(),
		MaxNReference:   t.MaxNReference(),
		MaxOutcome:      MaxOutcome(configs),
		NStimulus:       len(seen),
		Configs:         configs,
		TrialsPerConfig: counts,
	}
}

func zeros(n int) []int { return make([]int, n) }
