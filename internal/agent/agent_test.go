package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/nvandessel/psiz/internal/embedding"
	"github.com/nvandessel/psiz/internal/logging"
	"github.com/nvandessel/psiz/internal/trials"
)

func lineModel(t *testing.T) *embedding.Model {
	t.Helper()
	z := mat.NewDense(5, 2, []float64{
		0, 0,
		1, 0,
		0, 2,
		3, 0,
		1, 1,
	})
	w := mat.NewDense(2, 2, []float64{
		1, 1,
		1.9, 0.1,
	})
	k := embedding.NewExponential()
	require.NoError(t, k.Beta.Set(1))
	m, err := embedding.New(k, []*mat.Dense{z}, w)
	require.NoError(t, err)
	return m
}

func randomModel(t *testing.T, nStimuli int) *embedding.Model {
	t.Helper()
	k := embedding.NewExponential()
	require.NoError(t, k.Beta.Set(1))
	m, err := embedding.Random(k, nStimuli, 3, 2, rand.New(rand.NewPCG(7, 11)))
	require.NoError(t, err)
	return m
}

func sim(t *testing.T, m *embedding.Model, group, q, r int) float64 {
	t.Helper()
	w, err := m.Attention(group)
	require.NoError(t, err)
	z := m.Points()[0]
	return m.Similarity(z.RawRowView(q), z.RawRowView(r), w)
}

func TestProbability_TwoChooseOne(t *testing.T) {
	m := lineModel(t)
	d, err := trials.NewDocket([][]int{{0, 1, 2}})
	require.NoError(t, err)

	dist, err := NewEngine().Probability(context.Background(), d, m)
	require.NoError(t, err)

	require.Equal(t, 2, dist.NOutcome(0))
	s1 := sim(t, m, 0, 0, 1)
	s2 := sim(t, m, 0, 0, 2)
	p := dist.Row(0, 0)
	assert.InDelta(t, s1/(s1+s2), p[0], 1e-12)
	assert.InDelta(t, s2/(s1+s2), p[1], 1e-12)
}

func TestProbability_ThreeChooseTwo(t *testing.T) {
	m := lineModel(t)
	d, err := trials.NewDocket([][]int{{0, 1, 2, 3}}, trials.WithNSelect(2))
	require.NoError(t, err)

	dist, err := NewEngine().Probability(context.Background(), d, m)
	require.NoError(t, err)

	s := []float64{sim(t, m, 0, 0, 1), sim(t, m, 0, 0, 2), sim(t, m, 0, 0, 3)}
	total := s[0] + s[1] + s[2]
	set := dist.Outcomes[0]
	require.Equal(t, 6, set.Len())
	p := dist.Row(0, 0)
	for k := 0; k < set.Len(); k++ {
		o := set.Row(k)
		want := s[o[0]] / total * s[o[1]] / (total - s[o[0]])
		assert.InDelta(t, want, p[k], 1e-12, "outcome %v", o)
	}
}

func TestProbability_RowsSumToOneAndPad(t *testing.T) {
	m := randomModel(t, 20)
	d, err := trials.NewDocket([][]int{
		{0, 1, 2, -1, -1, -1, -1, -1, -1},
		{9, 12, 7, -1, -1, -1, -1, -1, -1},
		{3, 4, 5, 6, 7, -1, -1, -1, -1},
		{3, 4, 5, 6, 13, 14, 15, 16, 17},
	}, trials.WithNSelect(1, 1, 2, 2))
	require.NoError(t, err)

	dist, err := NewEngine(WithWorkers(2)).Probability(context.Background(), d, m)
	require.NoError(t, err)

	p := dist.Matrix()
	r, c := p.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 56, c)

	for i := 0; i < r; i++ {
		n := dist.NOutcome(i)
		var sum float64
		for k := 0; k < c; k++ {
			if k >= n {
				assert.Equal(t, 0.0, p.At(i, k), "trial %d outcome %d", i, k)
				continue
			}
			assert.GreaterOrEqual(t, p.At(i, k), 0.0)
			sum += p.At(i, k)
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "trial %d", i)
	}
	assert.Equal(t, []int{2, 2, 12, 56}, []int{dist.NOutcome(0), dist.NOutcome(1), dist.NOutcome(2), dist.NOutcome(3)})
}

func TestProbability_UsesTrialGroup(t *testing.T) {
	m := lineModel(t)
	stimulusSet := [][]int{{0, 1, 2}, {0, 1, 2}}
	obs, err := trials.NewObservations(stimulusSet, trials.WithGroupID(0, 1))
	require.NoError(t, err)

	e := NewEngine()
	dist, err := e.Probability(context.Background(), obs, m)
	require.NoError(t, err)

	g0 := sim(t, m, 0, 0, 1) / (sim(t, m, 0, 0, 1) + sim(t, m, 0, 0, 2))
	g1 := sim(t, m, 1, 0, 1) / (sim(t, m, 1, 0, 1) + sim(t, m, 1, 0, 2))
	require.NotEqual(t, g0, g1)
	assert.InDelta(t, g0, dist.Matrix().At(0, 0), 1e-12)
	assert.InDelta(t, g1, dist.Matrix().At(1, 0), 1e-12)

	// An agent applies its own group to every trial.
	a, err := NewAgent(m, WithGroup(1), WithEngine(e))
	require.NoError(t, err)
	dist, err = a.Probability(context.Background(), obs)
	require.NoError(t, err)
	assert.InDelta(t, g1, dist.Matrix().At(0, 0), 1e-12)
	assert.InDelta(t, g1, dist.Matrix().At(1, 0), 1e-12)
}

func TestProbability_Samples(t *testing.T) {
	z0 := mat.NewDense(3, 1, []float64{0, 1, 2})
	z1 := mat.NewDense(3, 1, []float64{0, 2, 1})
	m, err := embedding.New(embedding.NewInverse(), []*mat.Dense{z0, z1}, nil)
	require.NoError(t, err)
	d, err := trials.NewDocket([][]int{{0, 1, 2}})
	require.NoError(t, err)

	dist, err := NewEngine().Probability(context.Background(), d, m)
	require.NoError(t, err)
	require.Len(t, dist.Samples, 2)

	p0 := dist.Row(0, 0)
	p1 := dist.Row(1, 0)
	assert.Greater(t, p0[0], p0[1])
	assert.Greater(t, p1[1], p1[0])
	assert.InDelta(t, p0[0], p1[1], 1e-12)
}

func TestEngine_OutcomesMemoized(t *testing.T) {
	e := NewEngine()
	cfg := trials.Config{ConfigKey: trials.ConfigKey{NReference: 4, NSelect: 2}}

	a, err := e.Outcomes(cfg)
	require.NoError(t, err)
	cfg.GroupID = 3
	b, err := e.Outcomes(cfg)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := NewEngine().Outcomes(cfg)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, a.Rows(), c.Rows())
}

type fakeEmbedding struct {
	points    []*mat.Dense
	attention [][]float64
}

func (f *fakeEmbedding) Points() []*mat.Dense { return f.points }

func (f *fakeEmbedding) Attention(group int) ([]float64, error) {
	if group >= len(f.attention) {
		return nil, fmt.Errorf("no group %d", group)
	}
	return f.attention[group], nil
}

func (f *fakeEmbedding) Similarity(q, r, w []float64) float64 {
	return math.Exp(-embedding.Distance(q, r, w, 2))
}

func TestProbability_Errors(t *testing.T) {
	d, err := trials.NewDocket([][]int{{0, 1, 2}})
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name    string
		emb     Embedding
		wantErr error
	}{
		{
			name:    "no samples",
			emb:     &fakeEmbedding{attention: [][]float64{{1, 1}}},
			wantErr: trials.ErrDimensionMismatch,
		},
		{
			name: "samples disagree on dimensionality",
			emb: &fakeEmbedding{
				points:    []*mat.Dense{mat.NewDense(3, 2, nil), mat.NewDense(3, 3, nil)},
				attention: [][]float64{{1, 1}},
			},
			wantErr: trials.ErrDimensionMismatch,
		},
		{
			name: "attention disagrees with points",
			emb: &fakeEmbedding{
				points:    []*mat.Dense{mat.NewDense(3, 2, nil)},
				attention: [][]float64{{1, 1, 1}},
			},
			wantErr: trials.ErrDimensionMismatch,
		},
		{
			name: "stimulus outside embedding",
			emb: &fakeEmbedding{
				points:    []*mat.Dense{mat.NewDense(2, 2, nil)},
				attention: [][]float64{{1, 1}},
			},
			wantErr: trials.ErrShapeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine().Probability(ctx, d, tt.emb)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = NewEngine().ProbabilityForGroup(ctx, d, lineModel(t), -1)
	assert.Error(t, err)
	_, err = NewEngine().ProbabilityForGroup(ctx, d, lineModel(t), 5)
	assert.Error(t, err)
}

func TestProbability_Cancelled(t *testing.T) {
	d, err := trials.NewDocket([][]int{{0, 1, 2}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewEngine().Probability(ctx, d, lineModel(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProbability_DegenerateTrial(t *testing.T) {
	// Under the default beta every similarity to the query at 80 or 81
	// underflows to zero.
	z := mat.NewDense(3, 1, []float64{0, 80, 81})
	m, err := embedding.New(embedding.NewExponential(), []*mat.Dense{z}, mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)

	d, err := trials.NewDocket([][]int{{1, 2, 0}, {0, 1, 2}})
	require.NoError(t, err)

	_, err = NewEngine().Probability(context.Background(), d, m)
	require.ErrorIs(t, err, ErrDegenerateTrial)
	var dte *DegenerateTrialError
	require.True(t, errors.As(err, &dte))
	assert.Equal(t, 1, dte.Trial)
	assert.Equal(t, 0, dte.Sample)
	assert.Contains(t, err.Error(), "trial 1")

	a, err := NewAgent(m, WithSeed(1))
	require.NoError(t, err)
	_, err = a.Simulate(context.Background(), d)
	assert.ErrorIs(t, err, ErrDegenerateTrial)
}

func TestProbability_TraceLogsRows(t *testing.T) {
	d, err := trials.NewDocket([][]int{{0, 1, 2}, {3, 4, 1}})
	require.NoError(t, err)

	var buf bytes.Buffer
	e := NewEngine(WithEngineLogger(logging.NewLogger("trace", &buf)))
	_, err = e.Probability(context.Background(), d, lineModel(t))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(buf.String(), "level=TRACE msg=\"scored trial\""))

	buf.Reset()
	e = NewEngine(WithEngineLogger(logging.NewLogger("debug", &buf)))
	_, err = e.Probability(context.Background(), d, lineModel(t))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "scored trial")
}

func TestSequentialLuce_MatchesForwardOrder(t *testing.T) {
	s := []float64{0.5, 0.2, 0.9, 0.05, 0.3}
	outcome := []int{2, 0, 4, 1, 3}

	// Forward: pick 2 from all, then 0 from the rest, then 4.
	want := 0.9 / 1.95 * 0.5 / 1.05 * 0.3 / 0.55
	assert.InDelta(t, want, sequentialLuce(s, outcome, 3), 1e-12)
	assert.InDelta(t, 0.9/1.95, sequentialLuce(s, outcome, 1), 1e-12)
}

func TestSimulate_ZeroProbabilityNeverDrawn(t *testing.T) {
	// Reference 3 is far enough from the query that selecting it has
	// negligible probability.
	z := mat.NewDense(4, 1, []float64{0, 0.5, 1, 200})
	k := embedding.NewExponential()
	require.NoError(t, k.Beta.Set(1))
	m, err := embedding.New(k, []*mat.Dense{z}, mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)

	stimulusSet := make([][]int, 200)
	for i := range stimulusSet {
		stimulusSet[i] = []int{0, 1, 2, 3}
	}
	d, err := trials.NewDocket(stimulusSet)
	require.NoError(t, err)

	a, err := NewAgent(m, WithSource(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	obs, err := a.Simulate(context.Background(), d)
	require.NoError(t, err)
	for i, row := range obs.StimulusSet() {
		assert.NotEqual(t, 3, row[1], "trial %d selected the distant reference", i)
	}
}

func TestNewAgent_Validation(t *testing.T) {
	m := lineModel(t)

	_, err := NewAgent(nil)
	assert.Error(t, err)
	_, err = NewAgent(m, WithGroup(-1))
	assert.Error(t, err)
	_, err = NewAgent(m, WithGroup(2))
	assert.Error(t, err)

	a, err := NewAgent(m, WithGroup(1))
	require.NoError(t, err)
	assert.Equal(t, 1, a.Group())
}

func TestSimulate(t *testing.T) {
	m := randomModel(t, 20)
	d, err := trials.NewDocket([][]int{
		{0, 1, 2, -1, -1, -1, -1, -1, -1},
		{9, 12, 7, -1, -1, -1, -1, -1, -1},
		{3, 4, 5, 6, 7, -1, -1, -1, -1},
		{3, 4, 5, 6, 13, 14, 15, 16, 17},
	}, trials.WithNSelect(1, 1, 2, 2))
	require.NoError(t, err)

	a, err := NewAgent(m, WithGroup(1), WithSeed(42))
	require.NoError(t, err)
	obs, err := a.Simulate(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, d.NTrial(), obs.NTrial())
	assert.Equal(t, d.NSelect(), obs.NSelect())
	assert.Equal(t, d.IsRanked(), obs.IsRanked())
	assert.Equal(t, d.NReference(), obs.NReference())
	assert.Equal(t, []int{1, 1, 1, 1}, obs.GroupID())
	assert.Equal(t, []int{0, 0, 0, 0}, obs.SessionID())

	in := d.StimulusSet()
	out := obs.StimulusSet()
	for i := range in {
		assert.Equal(t, in[i][0], out[i][0], "query of trial %d", i)
		n := d.NReference()[i]
		got := append([]int(nil), out[i][1:1+n]...)
		want := append([]int(nil), in[i][1:1+n]...)
		sort.Ints(got)
		sort.Ints(want)
		assert.Equal(t, want, got, "references of trial %d", i)
		for j := 1 + n; j < len(out[i]); j++ {
			assert.Equal(t, -1, out[i][j])
		}
	}

	// Same seed, same judgments.
	b, err := NewAgent(m, WithGroup(1), WithSeed(42))
	require.NoError(t, err)
	again, err := b.Simulate(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, out, again.StimulusSet())
}

func TestSimulate_Frequencies(t *testing.T) {
	m := lineModel(t)
	const n = 4000
	rows := make([][]int, n)
	for i := range rows {
		rows[i] = []int{0, 1, 2}
	}
	d, err := trials.NewDocket(rows)
	require.NoError(t, err)

	a, err := NewAgent(m, WithSeed(3))
	require.NoError(t, err)
	obs, err := a.Simulate(context.Background(), d)
	require.NoError(t, err)

	first := 0
	for _, row := range obs.StimulusSet() {
		if row[1] == 1 {
			first++
		}
	}
	s1 := sim(t, m, 0, 0, 1)
	s2 := sim(t, m, 0, 0, 2)
	assert.InDelta(t, s1/(s1+s2), float64(first)/n, 0.03)
}

func TestSimulate_DecisionLog(t *testing.T) {
	dir := t.TempDir()
	dl := logging.NewDecisionLogger(dir, "debug")
	require.NotNil(t, dl)

	d, err := trials.NewDocket([][]int{{0, 1, 2}, {3, 4, 1}})
	require.NoError(t, err)
	a, err := NewAgent(lineModel(t), WithSeed(1), WithDecisionLogger(dl))
	require.NoError(t, err)
	_, err = a.Simulate(context.Background(), d)
	require.NoError(t, err)
	dl.Close()

	data, err := os.ReadFile(filepath.Join(dir, "decisions.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var event map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
	assert.Equal(t, "outcome_drawn", event["event"])
	assert.Equal(t, 0.0, event["trial"])
}
