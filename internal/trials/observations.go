package trials

import (
	"github.com/nvandessel/psiz/internal/constants"
)

// Observations hold judged trials. For each trial the first n_select
// references are the selected ones in selection order; the rest follow.
// Group and session are part of configuration identity.
type Observations struct {
	table
	groupID   []int
	sessionID []int
}

var _ Trials = (*Observations)(nil)

// NewObservations validates stimulusSet and builds Observations. Negative
// group ids are clamped to the default group with a warning.
func NewObservations(stimulusSet [][]int, opts ...Option) (*Observations, error) {
	o := buildOptions(opts)
	t, err := newTable(stimulusSet, o)
	if err != nil {
		return nil, err
	}
	n := t.NTrial()

	groupID, w, err := resolveGroupID(o.groupID, n)
	if err != nil {
		return nil, err
	}
	sessionID, err := resolveSessionID(o.sessionID, n)
	if err != nil {
		return nil, err
	}

	obs := &Observations{table: *t, groupID: groupID, sessionID: sessionID}
	obs.warn(w)
	obs.resolve()
	return obs, nil
}

// Kind returns constants.KindObservations.
func (o *Observations) Kind() constants.Kind { return constants.KindObservations }

// GroupID returns a copy of the per-trial agent groups.
func (o *Observations) GroupID() []int { return append([]int(nil), o.groupID...) }

// SessionID returns a copy of the per-trial agent sessions.
func (o *Observations) SessionID() []int { return append([]int(nil), o.sessionID...) }

// Subset returns the trials at index as new Observations.
func (o *Observations) Subset(index []int) (*Observations, error) {
	t, err := o.table.subset(index)
	if err != nil {
		return nil, err
	}
	out := &Observations{
		table:     *t,
		groupID:   make([]int, len(index)),
		sessionID: make([]int, len(index)),
	}
	for j, i := range index {
		out.groupID[j] = o.groupID[i]
		out.sessionID[j] = o.sessionID[i]
	}
	out.resolve()
	return out, nil
}

// SetGroupID returns a copy of o with new group ids. A single value applies
// to every trial; otherwise one value per trial is required. The
// configuration table is rebuilt since group is part of its key.
func (o *Observations) SetGroupID(values ...int) (*Observations, error) {
	if len(values) == 0 {
		return nil, &ShapeMismatchError{Field: "group_id", Got: 0, Want: o.NTrial()}
	}
	groupID, w, err := resolveGroupID(values, o.NTrial())
	if err != nil {
		return nil, err
	}

	out := &Observations{
		table: table{
			stimulusSet: o.stimulusSet,
			nReference:  o.nReference,
			nSelect:     o.nSelect,
			isRanked:    o.isRanked,
			logger:      o.logger,
		},
		groupID:   groupID,
		sessionID: o.sessionID,
	}
	out.warn(w)
	out.resolve()
	return out, nil
}

// StackObservations concatenates observations in order.
func StackObservations(list ...*Observations) (*Observations, error) {
	if len(list) == 0 {
		return nil, &InvalidTrialError{Reason: "nothing to stack"}
	}
	tables := make([]*table, len(list))
	out := &Observations{}
	var bad []int
	for i, o := range list {
		if o == nil {
			bad = append(bad, i)
			continue
		}
		tables[i] = &o.table
		out.groupID = append(out.groupID, o.groupID...)
		out.sessionID = append(out.sessionID, o.sessionID...)
	}
	if len(bad) > 0 {
		return nil, &InvalidTrialError{Reason: "nil trials in stack", Rows: bad}
	}
	out.table = *concat(tables)
	out.resolve()
	return out, nil
}

func (o *Observations) configKeys() []ConfigKey {
	keys := make([]ConfigKey, o.NTrial())
	for i := range keys {
		keys[i] = ConfigKey{
			NReference: o.nReference[i],
			NSelect:    o.nSelect[i],
			IsRanked:   o.isRanked[i],
			GroupID:    o.groupID[i],
			SessionID:  o.sessionID[i],
		}
	}
	return keys
}

func (o *Observations) subsetTrials(index []int) (Trials, error) {
	out, err := o.Subset(index)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Observations) resolve() {
	o.configs, o.configIdx = ResolveConfigs(o.configKeys())
}
