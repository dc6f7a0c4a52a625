package trials

import (
	"log/slog"

	"github.com/nvandessel/psiz/internal/constants"
)

// table holds the state shared by both container variants: the canonical
// stimulus set, the per-trial shape metadata and the derived configurations.
type table struct {
	stimulusSet [][]int
	nReference  []int
	nSelect     []int
	isRanked    []bool

	configs   []Config
	configIdx []int

	warnings []Warning
	logger   *slog.Logger
}

// newTable validates raw inputs and returns a table in canonical form.
// Configurations are left for the variant to resolve.
func newTable(stimulusSet [][]int, o *options) (*table, error) {
	if _, err := checkRectangular(stimulusSet); err != nil {
		return nil, err
	}
	inferred, err := inspectRows(stimulusSet, o.nStimuli)
	if err != nil {
		return nil, err
	}
	nRef, err := resolveNReference(o.nReference, inferred)
	if err != nil {
		return nil, err
	}
	nSelect, w, err := resolveNSelect(o.nSelect, nRef)
	if err != nil {
		return nil, err
	}
	isRanked, err := broadcast("is_ranked", o.isRanked, len(nRef), constants.DefaultIsRanked)
	if err != nil {
		return nil, err
	}

	t := &table{
		stimulusSet: canonicalize(stimulusSet, nRef),
		nReference:  nRef,
		nSelect:     nSelect,
		isRanked:    isRanked,
		logger:      o.logger,
	}
	t.warn(w)
	return t, nil
}

func (t *table) warn(w *Warning) {
	if w == nil {
		return
	}
	t.warnings = append(t.warnings, *w)
	t.logger.Warn("trial input corrected",
		"field", w.Field,
		"rows", len(w.Rows),
		"detail", w.Message)
}

// canonicalize copies rows into a fresh matrix of width max(nRef)+1,
// padding every column past a row's n_reference with the sentinel.
func canonicalize(rows [][]int, nRef []int) [][]int {
	maxRef := 0
	for _, k := range nRef {
		if k > maxRef {
			maxRef = k
		}
	}
	width := maxRef + 1

	out := make([][]int, len(rows))
	buf := make([]int, len(rows)*width)
	for i, row := range rows {
		dst := buf[i*width : (i+1)*width : (i+1)*width]
		n := copy(dst, row[:nRef[i]+1])
		for j := n; j < width; j++ {
			dst[j] = constants.Sentinel
		}
		out[i] = dst
	}
	return out
}

// subset returns a table holding the selected rows, without configurations.
func (t *table) subset(index []int) (*table, error) {
	n := len(t.nReference)
	if len(index) == 0 {
		return nil, &InvalidTrialError{Reason: "subset selects no trials"}
	}
	for _, i := range index {
		if i < 0 || i >= n {
			return nil, &ShapeMismatchError{
				Field: "index",
				Got:   i,
				Want:  n,
				Msg:   "trial index out of range",
			}
		}
	}

	rows := make([][]int, len(index))
	s := &table{
		nReference: make([]int, len(index)),
		nSelect:    make([]int, len(index)),
		isRanked:   make([]bool, len(index)),
		logger:     t.logger,
	}
	for j, i := range index {
		rows[j] = t.stimulusSet[i]
		s.nReference[j] = t.nReference[i]
		s.nSelect[j] = t.nSelect[i]
		s.isRanked[j] = t.isRanked[i]
	}
	s.stimulusSet = canonicalize(rows, s.nReference)
	return s, nil
}

// concat stacks tables in order, padding to the widest input.
func concat(tables []*table) *table {
	total := 0
	for _, t := range tables {
		total += len(t.nReference)
	}
	out := &table{
		nReference: make([]int, 0, total),
		nSelect:    make([]int, 0, total),
		isRanked:   make([]bool, 0, total),
		logger:     tables[0].logger,
	}
	rows := make([][]int, 0, total)
	for _, t := range tables {
		rows = append(rows, t.stimulusSet...)
		out.nReference = append(out.nReference, t.nReference...)
		out.nSelect = append(out.nSelect, t.nSelect...)
		out.isRanked = append(out.isRanked, t.isRanked...)
	}
	out.stimulusSet = canonicalize(rows, out.nReference)
	return out
}

// NTrial returns the number of trials.
func (t *table) NTrial() int { return len(t.nReference) }

// MaxNReference returns the widest reference count, the stimulus set width minus one.
func (t *table) MaxNReference() int {
	if len(t.stimulusSet) == 0 {
		return 0
	}
	return len(t.stimulusSet[0]) - 1
}

// StimulusSet returns a copy of the canonical stimulus set.
func (t *table) StimulusSet() [][]int {
	out := make([][]int, len(t.stimulusSet))
	for i, row := range t.stimulusSet {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// Row returns a copy of trial i's stimulus row.
func (t *table) Row(i int) []int { return append([]int(nil), t.stimulusSet[i]...) }

// NReference returns a copy of the per-trial reference counts.
func (t *table) NReference() []int { return append([]int(nil), t.nReference...) }

// NSelect returns a copy of the per-trial selection counts.
func (t *table) NSelect() []int { return append([]int(nil), t.nSelect...) }

// IsRanked returns a copy of the per-trial ranking flags.
func (t *table) IsRanked() []bool { return append([]bool(nil), t.isRanked...) }

// Configs returns a copy of the configuration table.
func (t *table) Configs() []Config { return append([]Config(nil), t.configs...) }

// ConfigIdx returns a copy of each trial's row in the configuration table.
func (t *table) ConfigIdx() []int { return append([]int(nil), t.configIdx...) }

// Warnings returns the corrections applied while building this container.
func (t *table) Warnings() []Warning { return append([]Warning(nil), t.warnings...) }
