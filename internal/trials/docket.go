package trials

import (
	"github.com/nvandessel/psiz/internal/constants"
)

// Docket holds trials that have not been judged.
type Docket struct {
	table
}

var _ Trials = (*Docket)(nil)

// NewDocket validates stimulusSet and builds a Docket. Each row holds the
// query in column 0 followed by references, padded with the sentinel.
func NewDocket(stimulusSet [][]int, opts ...Option) (*Docket, error) {
	o := buildOptions(opts)
	if o.groupID != nil || o.sessionID != nil {
		return nil, &InvalidTrialError{Reason: "group_id and session_id apply only to observations"}
	}
	t, err := newTable(stimulusSet, o)
	if err != nil {
		return nil, err
	}
	d := &Docket{table: *t}
	d.resolve()
	return d, nil
}

// Kind returns constants.KindDocket.
func (d *Docket) Kind() constants.Kind { return constants.KindDocket }

// GroupID returns zeros; dockets are not tied to an agent group.
func (d *Docket) GroupID() []int { return zeros(d.NTrial()) }

// SessionID returns zeros.
func (d *Docket) SessionID() []int { return zeros(d.NTrial()) }

// Subset returns the trials at index as a new Docket.
func (d *Docket) Subset(index []int) (*Docket, error) {
	t, err := d.table.subset(index)
	if err != nil {
		return nil, err
	}
	out := &Docket{table: *t}
	out.resolve()
	return out, nil
}

// StackDockets concatenates dockets in order.
func StackDockets(list ...*Docket) (*Docket, error) {
	if len(list) == 0 {
		return nil, &InvalidTrialError{Reason: "nothing to stack"}
	}
	tables := make([]*table, len(list))
	var bad []int
	for i, d := range list {
		if d == nil {
			bad = append(bad, i)
			continue
		}
		tables[i] = &d.table
	}
	if len(bad) > 0 {
		return nil, &InvalidTrialError{Reason: "nil trials in stack", Rows: bad}
	}
	out := &Docket{table: *concat(tables)}
	out.resolve()
	return out, nil
}

func (d *Docket) configKeys() []ConfigKey {
	keys := make([]ConfigKey, d.NTrial())
	for i := range keys {
		keys[i] = ConfigKey{
			NReference: d.nReference[i],
			NSelect:    d.nSelect[i],
			IsRanked:   d.isRanked[i],
		}
	}
	return keys
}

func (d *Docket) subsetTrials(index []int) (Trials, error) {
	out, err := d.Subset(index)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Docket) resolve() {
	d.configs, d.configIdx = ResolveConfigs(d.configKeys())
}
