package embedding

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// modelFile is the YAML layout of a saved Model.
type modelFile struct {
	Kernel    string           `yaml:"kernel"`
	Params    map[string]Param `yaml:"params"`
	Points    [][][]float64    `yaml:"points"`
	Attention [][]float64      `yaml:"attention"`
}

// Save writes m to path as YAML.
func (m *Model) Save(path string) error {
	f := modelFile{
		Kernel:    m.kernel.Name(),
		Params:    make(map[string]Param),
		Points:    make([][][]float64, len(m.points)),
		Attention: denseRows(m.attention),
	}
	for _, np := range m.kernel.Params() {
		f.Params[np.Name] = *np.Param
	}
	for i, p := range m.points {
		f.Points[i] = denseRows(p)
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshaling embedding: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing embedding: %w", err)
	}
	return nil
}

// Load reads a Model saved by Save. Parameter values are checked against
// the bounds stored with them.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading embedding: %w", err)
	}
	var f modelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing embedding: %w", err)
	}
	if len(f.Points) == 0 || len(f.Points[0]) == 0 {
		return nil, fmt.Errorf("parsing embedding: no points")
	}

	nDim := len(f.Points[0][0])
	kernel, err := NewKernel(f.Kernel, nDim)
	if err != nil {
		return nil, fmt.Errorf("parsing embedding: %w", err)
	}
	for _, np := range kernel.Params() {
		p, ok := f.Params[np.Name]
		if !ok {
			continue
		}
		np.Param.Lower = p.Lower
		np.Param.Upper = p.Upper
		np.Param.Trainable = p.Trainable
		if err := np.Param.Set(p.Value); err != nil {
			return nil, fmt.Errorf("parsing embedding: %s.%s: %w", f.Kernel, np.Name, err)
		}
	}

	points := make([]*mat.Dense, len(f.Points))
	for i, rows := range f.Points {
		d, err := denseFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("parsing embedding: points[%d]: %w", i, err)
		}
		points[i] = d
	}
	var attention *mat.Dense
	if len(f.Attention) > 0 {
		attention, err = denseFromRows(f.Attention)
		if err != nil {
			return nil, fmt.Errorf("parsing embedding: attention: %w", err)
		}
	}
	return New(kernel, points, attention)
}

func denseRows(d *mat.Dense) [][]float64 {
	r, _ := d.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, d)
	}
	return out
}

func denseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data), nil
}
