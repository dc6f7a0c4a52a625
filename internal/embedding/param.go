package embedding

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfBounds is returned when a parameter is set outside its support.
var ErrOutOfBounds = errors.New("parameter out of bounds")

// Param is one kernel parameter. Bounds are inclusive; an unbounded side
// holds an infinity.
type Param struct {
	Value     float64 `json:"value" yaml:"value"`
	Trainable bool    `json:"trainable" yaml:"trainable"`
	Lower     float64 `json:"lower" yaml:"lower"`
	Upper     float64 `json:"upper" yaml:"upper"`
}

// NewParam returns a trainable parameter bounded below by lower.
func NewParam(value, lower float64) Param {
	return Param{Value: value, Trainable: true, Lower: lower, Upper: math.Inf(1)}
}

// Set updates the value after checking it against the bounds.
func (p *Param) Set(v float64) error {
	if math.IsNaN(v) || v < p.Lower || v > p.Upper {
		return fmt.Errorf("%w: %g not in [%g, %g]", ErrOutOfBounds, v, p.Lower, p.Upper)
	}
	p.Value = v
	return nil
}

// NamedParam pairs a parameter with its name within a kernel.
type NamedParam struct {
	Name  string
	Param *Param
}
