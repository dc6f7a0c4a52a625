package embedding

import (
	"fmt"
	"math"
	"sort"
)

// Kernel scores the similarity between a query point and a reference point
// under per-dimension attention weights.
type Kernel interface {
	Name() string
	Similarity(query, reference, attention []float64) float64
	// Params returns the kernel's parameters in a fixed order. The pointers
	// alias the kernel.
	Params() []NamedParam
}

// SetParam sets a kernel parameter by name, checking its bounds.
func SetParam(k Kernel, name string, v float64) error {
	for _, np := range k.Params() {
		if np.Name == name {
			if err := np.Param.Set(v); err != nil {
				return fmt.Errorf("%s.%s: %w", k.Name(), name, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%s has no parameter %q", k.Name(), name)
}

var kernels = map[string]func(nDim int) Kernel{
	"exponential":  func(int) Kernel { return NewExponential() },
	"inverse":      func(int) Kernel { return NewInverse() },
	"heavy-tailed": func(int) Kernel { return NewHeavyTailed() },
	"students-t":   func(nDim int) Kernel { return NewStudentsT(nDim) },
}

// NewKernel returns the named kernel with default parameters. nDim is used
// by kernels whose defaults depend on dimensionality.
func NewKernel(name string, nDim int) (Kernel, error) {
	ctor, ok := kernels[name]
	if !ok {
		return nil, fmt.Errorf("unknown kernel %q (valid: %v)", name, KernelNames())
	}
	return ctor(nDim), nil
}

// KernelNames lists the registered kernels.
func KernelNames() []string {
	names := make([]string, 0, len(kernels))
	for n := range kernels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Distance is the attention-weighted Minkowski distance of order rho.
func Distance(q, r, w []float64, rho float64) float64 {
	var sum float64
	for i := range q {
		sum += w[i] * math.Pow(math.Abs(q[i]-r[i]), rho)
	}
	return math.Pow(sum, 1/rho)
}

// Exponential is s = exp(-beta * d^tau) + gamma.
type Exponential struct {
	Rho   Param
	Tau   Param
	Beta  Param
	Gamma Param
}

// NewExponential returns an Exponential kernel with default parameters.
func NewExponential() *Exponential {
	return &Exponential{
		Rho:   NewParam(2, 1),
		Tau:   NewParam(1, 1),
		Beta:  NewParam(10, 1),
		Gamma: NewParam(0, 0),
	}
}

func (k *Exponential) Name() string { return "exponential" }

func (k *Exponential) Similarity(q, r, w []float64) float64 {
	d := Distance(q, r, w, k.Rho.Value)
	return math.Exp(-k.Beta.Value*math.Pow(d, k.Tau.Value)) + k.Gamma.Value
}

func (k *Exponential) Params() []NamedParam {
	return []NamedParam{{"rho", &k.Rho}, {"tau", &k.Tau}, {"beta", &k.Beta}, {"gamma", &k.Gamma}}
}

// Inverse is s = 1 / (d^tau + mu).
type Inverse struct {
	Rho Param
	Tau Param
	Mu  Param
}

// NewInverse returns an Inverse kernel with default parameters.
func NewInverse() *Inverse {
	return &Inverse{
		Rho: NewParam(2, 1),
		Tau: NewParam(1, 1),
		Mu:  NewParam(1e-15, 2.2e-16),
	}
}

func (k *Inverse) Name() string { return "inverse" }

func (k *Inverse) Similarity(q, r, w []float64) float64 {
	d := Distance(q, r, w, k.Rho.Value)
	return 1 / (math.Pow(d, k.Tau.Value) + k.Mu.Value)
}

func (k *Inverse) Params() []NamedParam {
	return []NamedParam{{"rho", &k.Rho}, {"tau", &k.Tau}, {"mu", &k.Mu}}
}

// HeavyTailed is s = (kappa + d^tau)^(-alpha).
type HeavyTailed struct {
	Rho   Param
	Tau   Param
	Kappa Param
	Alpha Param
}

// NewHeavyTailed returns a HeavyTailed kernel with default parameters.
func NewHeavyTailed() *HeavyTailed {
	return &HeavyTailed{
		Rho:   NewParam(2, 1),
		Tau:   NewParam(1, 1),
		Kappa: NewParam(2, 0),
		Alpha: NewParam(30, 0),
	}
}

func (k *HeavyTailed) Name() string { return "heavy-tailed" }

func (k *HeavyTailed) Similarity(q, r, w []float64) float64 {
	d := Distance(q, r, w, k.Rho.Value)
	return math.Pow(k.Kappa.Value+math.Pow(d, k.Tau.Value), -k.Alpha.Value)
}

func (k *HeavyTailed) Params() []NamedParam {
	return []NamedParam{{"rho", &k.Rho}, {"tau", &k.Tau}, {"kappa", &k.Kappa}, {"alpha", &k.Alpha}}
}

// StudentsT is s = (1 + d^tau / alpha)^(-(alpha+1)/2).
type StudentsT struct {
	Rho   Param
	Tau   Param
	Alpha Param
}

// NewStudentsT returns a StudentsT kernel. Alpha defaults to nDim-1
// degrees of freedom, floored at its lower bound.
func NewStudentsT(nDim int) *StudentsT {
	k := &StudentsT{
		Rho:   NewParam(2, 1),
		Tau:   NewParam(2, 1),
		Alpha: NewParam(math.Max(float64(nDim-1), 1e-6), 1e-6),
	}
	k.Rho.Trainable = false
	k.Tau.Trainable = false
	k.Alpha.Trainable = false
	return k
}

func (k *StudentsT) Name() string { return "students-t" }

func (k *StudentsT) Similarity(q, r, w []float64) float64 {
	d := Distance(q, r, w, k.Rho.Value)
	a := k.Alpha.Value
	return math.Pow(1+math.Pow(d, k.Tau.Value)/a, -(a+1)/2)
}

func (k *StudentsT) Params() []NamedParam {
	return []NamedParam{{"rho", &k.Rho}, {"tau", &k.Tau}, {"alpha", &k.Alpha}}
}
