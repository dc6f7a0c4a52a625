package trials

import (
	"fmt"

	"github.com/nvandessel/psiz/internal/constants"
)

// checkRectangular rejects empty and ragged stimulus sets and returns the width.
func checkRectangular(stimulusSet [][]int) (int, error) {
	if len(stimulusSet) == 0 {
		return 0, &InvalidTrialError{Reason: "stimulus set has no trials"}
	}
	width := len(stimulusSet[0])
	var ragged []int
	for i, row := range stimulusSet {
		if len(row) != width {
			ragged = append(ragged, i)
		}
	}
	if len(ragged) > 0 {
		return 0, &ShapeMismatchError{
			Field: "stimulus_set",
			Got:   len(stimulusSet[ragged[0]]),
			Want:  width,
			Msg:   fmt.Sprintf("rows %s differ from width %d", formatRows(ragged), width),
		}
	}
	if width < 1+constants.MinReference {
		return 0, &InvalidTrialError{
			Reason: fmt.Sprintf("stimulus set has %d columns, need a query and at least %d references",
				width, constants.MinReference),
		}
	}
	return width, nil
}

// inspectRows validates stimulus indices row by row and returns the number of
// non-sentinel references in each row. nStimuli <= 0 disables the upper bound.
func inspectRows(stimulusSet [][]int, nStimuli int) ([]int, error) {
	var (
		badQuery   []int
		outOfRange []int
		gapped     []int
		duplicate  []int
		tooFew     []int
	)
	counts := make([]int, len(stimulusSet))

	for i, row := range stimulusSet {
		if row[constants.QueryColumn] == constants.Sentinel {
			badQuery = append(badQuery, i)
			continue
		}

		inRange := true
		for _, v := range row {
			if v < constants.Sentinel || (nStimuli > 0 && v >= nStimuli) {
				inRange = false
				break
			}
		}
		if !inRange {
			outOfRange = append(outOfRange, i)
			continue
		}

		n := 0
		padded := false
		ok := true
		for _, v := range row[1:] {
			if v == constants.Sentinel {
				padded = true
				continue
			}
			if padded {
				ok = false
				break
			}
			n++
		}
		if !ok {
			gapped = append(gapped, i)
			continue
		}

		seen := make(map[int]struct{}, n+1)
		for _, v := range row[:n+1] {
			if _, dup := seen[v]; dup {
				ok = false
				break
			}
			seen[v] = struct{}{}
		}
		if !ok {
			duplicate = append(duplicate, i)
			continue
		}

		if n < constants.MinReference {
			tooFew = append(tooFew, i)
		}
		counts[i] = n
	}

	switch {
	case len(badQuery) > 0:
		return nil, &InvalidTrialError{Reason: "query stimulus is the sentinel", Rows: badQuery}
	case len(outOfRange) > 0:
		if nStimuli > 0 {
			return nil, &InvalidTrialError{
				Reason: fmt.Sprintf("stimulus index outside [-1, %d)", nStimuli),
				Rows:   outOfRange,
			}
		}
		return nil, &InvalidTrialError{Reason: "stimulus index below -1", Rows: outOfRange}
	case len(gapped) > 0:
		return nil, &InvalidTrialError{Reason: "reference follows a sentinel", Rows: gapped}
	case len(duplicate) > 0:
		return nil, &InvalidTrialError{Reason: "duplicate stimulus within a trial", Rows: duplicate}
	case len(tooFew) > 0:
		return nil, &InvalidTrialError{
			Reason: fmt.Sprintf("fewer than %d references", constants.MinReference),
			Rows:   tooFew,
		}
	}
	return counts, nil
}

// resolveNReference checks declared reference counts against the counts
// present in the stimulus set. A nil declaration keeps the inferred counts.
func resolveNReference(declared []int, inferred []int) ([]int, error) {
	if declared == nil {
		return append([]int(nil), inferred...), nil
	}
	nRef, err := broadcast("n_reference", declared, len(inferred), 0)
	if err != nil {
		return nil, err
	}
	var bad []int
	for i, k := range nRef {
		if k < constants.MinReference || k > inferred[i] {
			bad = append(bad, i)
		}
	}
	if len(bad) > 0 {
		return nil, &InvalidTrialError{
			Reason: fmt.Sprintf("n_reference must be at least %d and at most the references supplied",
				constants.MinReference),
			Rows: bad,
		}
	}
	return nRef, nil
}

// resolveNSelect clamps n_select below 1 and rejects values above n_reference.
func resolveNSelect(values []int, nRef []int) ([]int, *Warning, error) {
	nSelect, err := broadcast("n_select", values, len(nRef), constants.DefaultNSelect)
	if err != nil {
		return nil, nil, err
	}

	var clamped, bad []int
	for i := range nSelect {
		if nSelect[i] < 1 {
			nSelect[i] = 1
			clamped = append(clamped, i)
		}
		if nSelect[i] > nRef[i] {
			bad = append(bad, i)
		}
	}
	if len(bad) > 0 {
		return nil, nil, &InvalidTrialError{Reason: "n_select exceeds n_reference", Rows: bad}
	}

	var w *Warning
	if len(clamped) > 0 {
		w = &Warning{Field: "n_select", Rows: clamped, Message: "value below 1 clamped to 1"}
	}
	return nSelect, w, nil
}

// resolveGroupID clamps negative group ids to the default group.
func resolveGroupID(values []int, n int) ([]int, *Warning, error) {
	groupID, err := broadcast("group_id", values, n, constants.DefaultGroupID)
	if err != nil {
		return nil, nil, err
	}
	var clamped []int
	for i, g := range groupID {
		if g < 0 {
			groupID[i] = constants.DefaultGroupID
			clamped = append(clamped, i)
		}
	}
	var w *Warning
	if len(clamped) > 0 {
		w = &Warning{
			Field:   "group_id",
			Rows:    clamped,
			Message: fmt.Sprintf("negative value clamped to %d", constants.DefaultGroupID),
		}
	}
	return groupID, w, nil
}

// resolveSessionID rejects negative session ids.
func resolveSessionID(values []int, n int) ([]int, error) {
	sessionID, err := broadcast("session_id", values, n, constants.DefaultSessionID)
	if err != nil {
		return nil, err
	}
	var bad []int
	for i, s := range sessionID {
		if s < 0 {
			bad = append(bad, i)
		}
	}
	if len(bad) > 0 {
		return nil, &InvalidTrialError{Reason: "negative session_id", Rows: bad}
	}
	return sessionID, nil
}
