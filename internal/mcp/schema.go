package mcp

import (
	"time"

	"github.com/nvandessel/psiz/internal/trials"
)

// TrialsInput names the trials a tool operates on: either a stored trial set
// or an inline stimulus set. Inline sets with group or session ids are
// treated as observations, anything else as a docket.
type TrialsInput struct {
	Ref         string  `json:"ref,omitempty" jsonschema:"Name or id of a stored trial set"`
	StimulusSet [][]int `json:"stimulus_set,omitempty" jsonschema:"Inline trials: each row is the query followed by its references, -1 pads unused slots"`
	NReference  []int   `json:"n_reference,omitempty" jsonschema:"Per-trial reference count (defaults to the non-sentinel count)"`
	NSelect     []int   `json:"n_select,omitempty" jsonschema:"Per-trial selection count, or one value for all trials (default 1)"`
	IsRanked    []bool  `json:"is_ranked,omitempty" jsonschema:"Per-trial ranking flag, or one value for all trials (default true)"`
	GroupID     []int   `json:"group_id,omitempty" jsonschema:"Per-trial agent group; marks the trials as observations"`
	SessionID   []int   `json:"session_id,omitempty" jsonschema:"Per-trial session; marks the trials as observations"`
}

// ConfigSummary is one row of a configuration table.
type ConfigSummary struct {
	NReference int  `json:"n_reference"`
	NSelect    int  `json:"n_select"`
	IsRanked   bool `json:"is_ranked"`
	GroupID    int  `json:"group_id"`
	SessionID  int  `json:"session_id"`
	NOutcome   int  `json:"n_outcome"`
	NTrial     int  `json:"n_trial"`
}

// PsizDescribeInput defines the input for psiz_describe tool.
type PsizDescribeInput struct {
	Trials TrialsInput `json:"trials" jsonschema:"Trials to describe"`
}

// PsizDescribeOutput defines the output for psiz_describe tool.
type PsizDescribeOutput struct {
	Kind          string          `json:"kind" jsonschema:"docket or observations"`
	NTrial        int             `json:"n_trial"`
	MaxNReference int             `json:"max_n_reference"`
	MaxNOutcome   int             `json:"max_n_outcome"`
	NStimulus     int             `json:"n_stimulus" jsonschema:"Distinct stimuli referenced by any trial"`
	Configs       []ConfigSummary `json:"configs"`
	Warnings      []string        `json:"warnings,omitempty" jsonschema:"Input values that were corrected"`
}

// PsizProbabilityInput defines the input for psiz_probability tool.
type PsizProbabilityInput struct {
	Trials TrialsInput `json:"trials" jsonschema:"Trials to score"`
	Model  string      `json:"model" jsonschema:"Path to an embedding model YAML file"`
	Group  *int        `json:"group,omitempty" jsonschema:"Score every trial with this group's attention (default: each trial's own group)"`
	Sample int         `json:"sample,omitempty" jsonschema:"Embedding sample to report (default 0)"`
}

// PsizProbabilityOutput defines the output for psiz_probability tool.
type PsizProbabilityOutput struct {
	Configs       []ConfigSummary `json:"configs"`
	ConfigIdx     []int           `json:"config_idx"`
	Probabilities [][]float64     `json:"probabilities" jsonschema:"Per trial, the probability of each enumerated outcome of its configuration"`
	NSample       int             `json:"n_sample"`
}

// PsizSimulateInput defines the input for psiz_simulate tool.
type PsizSimulateInput struct {
	Trials TrialsInput `json:"trials" jsonschema:"Trials to judge"`
	Model  string      `json:"model" jsonschema:"Path to an embedding model YAML file"`
	Group  int         `json:"group,omitempty" jsonschema:"Agent group whose attention drives the judgments (default 0)"`
	Seed   uint64      `json:"seed,omitempty" jsonschema:"Random seed (default: server seed or random)"`
	SaveAs string      `json:"save_as,omitempty" jsonschema:"Store the observations under this name"`
}

// PsizSimulateOutput defines the output for psiz_simulate tool.
type PsizSimulateOutput struct {
	StimulusSet [][]int `json:"stimulus_set" jsonschema:"Judged trials with references in choice order"`
	NSelect     []int   `json:"n_select"`
	GroupID     []int   `json:"group_id"`
	SavedID     string  `json:"saved_id,omitempty" jsonschema:"Id of the stored observations"`
}

// PsizListInput defines the input for psiz_list tool.
type PsizListInput struct{}

// PsizListOutput defines the output for psiz_list tool.
type PsizListOutput struct {
	TrialSets []TrialSetItem `json:"trial_sets"`
	Count     int            `json:"count"`
}

// TrialSetItem provides a list view of a stored trial set.
type TrialSetItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	TrialCount  int       `json:"trial_count"`
	ConfigCount int       `json:"config_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func configSummaries(configs []trials.Config, configIdx []int) []ConfigSummary {
	out := make([]ConfigSummary, len(configs))
	for i, c := range configs {
		out[i] = ConfigSummary{
			NReference: c.NReference,
			NSelect:    c.NSelect,
			IsRanked:   c.IsRanked,
			GroupID:    c.GroupID,
			SessionID:  c.SessionID,
			NOutcome:   c.NOutcome,
		}
	}
	for _, c := range configIdx {
		out[c].NTrial++
	}
	return out
}
