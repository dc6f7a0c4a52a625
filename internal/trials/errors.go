package trials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nvandessel/psiz/internal/constants"
)

// Sentinel errors. The structured error types below match these via errors.Is,
// so callers can branch on the kind without caring about the detail.
var (
	ErrInvalidTrial      = errors.New("invalid trial")
	ErrShapeMismatch     = errors.New("shape mismatch")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// InvalidTrialError reports trials that violate a construction rule.
// Rows lists every offending trial (zero-based).
type InvalidTrialError struct {
	Reason string
	Rows   []int
}

func (e *InvalidTrialError) Error() string {
	if len(e.Rows) == 0 {
		return fmt.Sprintf("invalid trial: %s", e.Reason)
	}
	return fmt.Sprintf("invalid trial: %s (rows %s)", e.Reason, formatRows(e.Rows))
}

// Is reports whether target is ErrInvalidTrial.
func (e *InvalidTrialError) Is(target error) bool { return target == ErrInvalidTrial }

// ShapeMismatchError reports an array whose length does not match what the
// operation requires.
type ShapeMismatchError struct {
	Field string
	Got   int
	Want  int
	// Msg overrides the default length message when set.
	Msg string
}

func (e *ShapeMismatchError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("shape mismatch: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("shape mismatch: %s has length %d, want %d", e.Field, e.Got, e.Want)
}

// Is reports whether target is ErrShapeMismatch.
func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// TypeMismatchError reports an operation mixing Docket and Observations.
type TypeMismatchError struct {
	Got  constants.Kind
	Want constants.Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: got %s, want %s", e.Got, e.Want)
}

// Is reports whether target is ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// DimensionMismatchError reports embedding coordinates whose dimensionality
// disagrees with another input of the same computation.
type DimensionMismatchError struct {
	Field string
	Got   int
	Want  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %s has %d dimensions, want %d", e.Field, e.Got, e.Want)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// Warning records an input that was corrected in place during construction.
type Warning struct {
	Field   string
	Rows    []int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (rows %s)", w.Field, w.Message, formatRows(w.Rows))
}

// formatRows renders row indices, eliding the middle of long lists.
func formatRows(rows []int) string {
	const maxShown = 10
	parts := make([]string, 0, maxShown+1)
	for i, r := range rows {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("... %d more", len(rows)-maxShown))
			break
		}
		parts = append(parts, fmt.Sprint(r))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
