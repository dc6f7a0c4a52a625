// Package outcomes enumerates the possible outcomes of a trial configuration.
//
// An outcome is one arrangement of a trial's reference slots: the first
// n_select columns hold the selected references in selection order, the
// remaining columns hold the unselected references in ascending order.
// Outcomes are generated in lexicographic order of the selected prefix, so
// row 0 is always the identity arrangement (0, 1, ..., n_reference-1).
package outcomes

import (
	"fmt"

	"github.com/nvandessel/psiz/internal/constants"
)

// Set holds every outcome of one (n_reference, n_select) configuration.
// Rows are stored contiguously; a Set is immutable once built.
type Set struct {
	nReference int
	nSelect    int
	idx        []int
}

// Count returns the number of ordered selections of k references out of n,
// n!/(n-k)!. It returns 0 when k is outside [0, n].
func Count(n, k int) int {
	if n < 0 || k < 0 || k > n {
		return 0
	}
	c := 1
	for i := 0; i < k; i++ {
		c *= n - i
	}
	return c
}

// Enumerate builds the outcome set for a configuration with nReference
// references of which nSelect are selected.
func Enumerate(nReference, nSelect int) (*Set, error) {
	if nReference < 1 {
		return nil, fmt.Errorf("enumerate outcomes: n_reference must be positive, got %d", nReference)
	}
	if nSelect < 1 || nSelect > nReference {
		return nil, fmt.Errorf("enumerate outcomes: n_select must be in [1, %d], got %d", nReference, nSelect)
	}
	n := Count(nReference, nSelect)
	if n > constants.MaxOutcomes {
		return nil, fmt.Errorf("enumerate outcomes: %d outcomes for (%d, %d) exceeds limit of %d",
			n, nReference, nSelect, constants.MaxOutcomes)
	}

	s := &Set{
		nReference: nReference,
		nSelect:    nSelect,
		idx:        make([]int, 0, n*nReference),
	}

	prefix := make([]int, 0, nSelect)
	used := make([]bool, nReference)

	var walk func()
	walk = func() {
		if len(prefix) == nSelect {
			s.idx = append(s.idx, prefix...)
			for j := 0; j < nReference; j++ {
				if !used[j] {
					s.idx = append(s.idx, j)
				}
			}
			return
		}
		for j := 0; j < nReference; j++ {
			if used[j] {
				continue
			}
			used[j] = true
			prefix = append(prefix, j)
			walk()
			prefix = prefix[:len(prefix)-1]
			used[j] = false
		}
	}
	walk()

	return s, nil
}

// NReference returns the number of reference slots in each outcome.
func (s *Set) NReference() int { return s.nReference }

// NSelect returns the number of selected slots at the front of each outcome.
func (s *Set) NSelect() int { return s.nSelect }

// Len returns the number of outcomes.
func (s *Set) Len() int {
	if s.nReference == 0 {
		return 0
	}
	return len(s.idx) / s.nReference
}

// Row returns outcome i. The returned slice aliases the set and must not be modified.
func (s *Set) Row(i int) []int {
	return s.idx[i*s.nReference : (i+1)*s.nReference]
}

// Rows returns a copy of every outcome as a matrix of shape (Len, NReference).
func (s *Set) Rows() [][]int {
	out := make([][]int, s.Len())
	for i := range out {
		out[i] = append([]int(nil), s.Row(i)...)
	}
	return out
}
