// Package agent computes outcome probabilities for similarity-judgment
// trials and simulates the judgments of an agent.
//
// The Engine scores every enumerated outcome of every trial under the
// sequential Luce choice rule: references are selected one at a time,
// each with probability proportional to its similarity to the query among
// the references not yet selected. Trials are batched by configuration;
// configuration groups are independent and are scored concurrently.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/nvandessel/psiz/internal/constants"
	"github.com/nvandessel/psiz/internal/logging"
	"github.com/nvandessel/psiz/internal/outcomes"
	"github.com/nvandessel/psiz/internal/trials"
)

// Embedding supplies coordinates, attention weights and a similarity
// function. Implementations must be safe for concurrent reads.
type Embedding interface {
	// Points returns one (n_stimuli, n_dim) matrix per posterior sample.
	Points() []*mat.Dense
	Attention(group int) ([]float64, error)
	Similarity(query, reference, attention []float64) float64
}

// ErrDegenerateTrial reports a trial whose outcome probabilities cannot be
// normalized, typically because every similarity underflowed to zero.
var ErrDegenerateTrial = errors.New("degenerate trial")

// DegenerateTrialError names the trial and embedding sample whose
// unnormalized outcome probabilities summed to Sum.
type DegenerateTrialError struct {
	Trial  int
	Sample int
	Sum    float64
}

func (e *DegenerateTrialError) Error() string {
	return fmt.Sprintf("degenerate trial: trial %d under sample %d has outcome mass %g",
		e.Trial, e.Sample, e.Sum)
}

// Is reports whether target is ErrDegenerateTrial.
func (e *DegenerateTrialError) Is(target error) bool { return target == ErrDegenerateTrial }

type outcomeKey struct {
	nReference int
	nSelect    int
}

// Engine computes outcome probabilities. Enumerated outcome sets are
// memoized per engine; a new engine starts with an empty cache.
type Engine struct {
	mu      sync.Mutex
	cache   map[outcomeKey]*outcomes.Set
	workers int
	logger  *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWorkers bounds how many configuration groups are scored at once.
// Values below 1 mean GOMAXPROCS.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) { e.workers = n }
}

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{cache: make(map[outcomeKey]*outcomes.Set)}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Outcomes returns the outcome set of a configuration, enumerating it on
// first use.
func (e *Engine) Outcomes(cfg trials.Config) (*outcomes.Set, error) {
	key := outcomeKey{cfg.NReference, cfg.NSelect}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.cache[key]; ok {
		return s, nil
	}
	s, err := outcomes.Enumerate(cfg.NReference, cfg.NSelect)
	if err != nil {
		return nil, err
	}
	outcomeCacheMisses.Inc()
	e.cache[key] = s
	return s, nil
}

// Distribution holds outcome probabilities for a set of trials.
type Distribution struct {
	// Configs is the configuration table of the scored trials.
	Configs []trials.Config
	// ConfigIdx maps each trial to its row in Configs.
	ConfigIdx []int
	// Outcomes holds one outcome set per configuration.
	Outcomes []*outcomes.Set
	// Samples holds one (n_trial, max_n_outcome) matrix per embedding
	// sample. Column k of a trial's row is the probability of outcome k of
	// its configuration; columns past the configuration's count are zero.
	Samples []*mat.Dense
}

// Matrix returns the probabilities under the first embedding sample.
func (d *Distribution) Matrix() *mat.Dense { return d.Samples[0] }

// NOutcome returns the number of outcomes of trial i.
func (d *Distribution) NOutcome(i int) int { return d.Configs[d.ConfigIdx[i]].NOutcome }

// Row returns the probabilities of trial i's outcomes under sample s,
// without padding.
func (d *Distribution) Row(s, i int) []float64 {
	return mat.Row(nil, i, d.Samples[s])[:d.NOutcome(i)]
}

// Probability scores every trial using the attention weights of the
// trial's own group. Docket trials all use group 0.
func (e *Engine) Probability(ctx context.Context, t trials.Trials, emb Embedding) (*Distribution, error) {
	return e.probability(ctx, t, emb, -1)
}

// ProbabilityForGroup scores every trial using the attention weights of group.
func (e *Engine) ProbabilityForGroup(ctx context.Context, t trials.Trials, emb Embedding, group int) (*Distribution, error) {
	if group < 0 {
		return nil, fmt.Errorf("probability: negative group %d", group)
	}
	return e.probability(ctx, t, emb, group)
}

// probability scores t. A negative group means each configuration's own.
func (e *Engine) probability(ctx context.Context, t trials.Trials, emb Embedding, group int) (dist *Distribution, err error) {
	start := time.Now()
	kind := t.Kind().String()
	configs := t.Configs()

	ctx, span := startProbabilitySpan(ctx, kind, t.NTrial(), len(configs))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		recordProbability(ctx, kind, t.NTrial(), len(configs), time.Since(start), err == nil)
	}()

	points, nDim, err := checkPoints(emb)
	if err != nil {
		return nil, err
	}
	stimulusSet := t.StimulusSet()
	if err := checkStimuli(stimulusSet, points[0]); err != nil {
		return nil, err
	}

	dist = &Distribution{
		Configs:   configs,
		ConfigIdx: t.ConfigIdx(),
		Outcomes:  make([]*outcomes.Set, len(configs)),
		Samples:   make([]*mat.Dense, len(points)),
	}
	attention := make([][]float64, len(configs))
	for c, cfg := range configs {
		if dist.Outcomes[c], err = e.Outcomes(cfg); err != nil {
			return nil, fmt.Errorf("probability: %w", err)
		}
		g := group
		if g < 0 {
			g = cfg.GroupID
		}
		if attention[c], err = emb.Attention(g); err != nil {
			return nil, fmt.Errorf("probability: %w", err)
		}
		if len(attention[c]) != nDim {
			return nil, &trials.DimensionMismatchError{
				Field: fmt.Sprintf("attention[%d]", g),
				Got:   len(attention[c]),
				Want:  nDim,
			}
		}
	}

	maxOutcome := trials.MaxOutcome(configs)
	for s := range dist.Samples {
		dist.Samples[s] = mat.NewDense(t.NTrial(), maxOutcome, nil)
	}

	rows := make([][]int, len(configs))
	for i, c := range dist.ConfigIdx {
		rows[c] = append(rows[c], i)
	}

	// Groups write disjoint rows of each sample matrix.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for c := range configs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return e.scoreGroup(gctx, dist, c, rows[c], stimulusSet, points, attention[c], emb)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("probability: %w", err)
	}
	return dist, nil
}

// scoreGroup fills the rows of one configuration group in every sample.
func (e *Engine) scoreGroup(ctx context.Context, dist *Distribution, c int, rows []int,
	stimulusSet [][]int, points []*mat.Dense, w []float64, emb Embedding) error {
	cfg := dist.Configs[c]
	set := dist.Outcomes[c]
	nOutcome := set.Len()
	sim := make([]float64, cfg.NReference)
	prob := make([]float64, nOutcome)
	trace := e.logger.Enabled(ctx, logging.LevelTrace)

	for s, z := range points {
		out := dist.Samples[s]
		for _, i := range rows {
			row := stimulusSet[i]
			q := z.RawRowView(row[constants.QueryColumn])
			for j := 0; j < cfg.NReference; j++ {
				sim[j] = emb.Similarity(q, z.RawRowView(row[1+j]), w)
			}

			var sum float64
			for k := 0; k < nOutcome; k++ {
				prob[k] = sequentialLuce(sim, set.Row(k), cfg.NSelect)
				sum += prob[k]
			}
			if !(sum > 0) || math.IsInf(sum, 0) {
				return &DegenerateTrialError{Trial: i, Sample: s, Sum: sum}
			}
			if math.Abs(sum-1) > constants.ProbabilityTolerance {
				e.logger.Warn("outcome probabilities drift from 1",
					"trial", i, "sample", s, "sum", sum)
			}
			for k := 0; k < nOutcome; k++ {
				out.Set(i, k, prob[k]/sum)
			}
			if trace {
				e.logger.Log(ctx, logging.LevelTrace, "scored trial",
					"trial", i, "sample", s, "config", c, "probabilities", out.RawRowView(i)[:nOutcome])
			}
		}
	}
	return nil
}

// sequentialLuce returns the probability of one outcome. Selections are
// unwound from last to first so the running total grows rather than
// shrinks, which keeps the division well conditioned.
func sequentialLuce(sim []float64, outcome []int, nSelect int) float64 {
	var total float64
	for p := nSelect - 1; p < len(outcome); p++ {
		total += sim[outcome[p]]
	}
	prob := 1.0
	for p := nSelect - 1; p >= 0; p-- {
		prob *= sim[outcome[p]] / total
		if p > 0 {
			total += sim[outcome[p-1]]
		}
	}
	return prob
}

// checkPoints verifies that every sample shares one shape.
func checkPoints(emb Embedding) ([]*mat.Dense, int, error) {
	points := emb.Points()
	if len(points) == 0 {
		return nil, 0, fmt.Errorf("probability: %w: embedding has no point samples",
			trials.ErrDimensionMismatch)
	}
	nStimuli, nDim := points[0].Dims()
	for s, z := range points[1:] {
		r, c := z.Dims()
		if c != nDim {
			return nil, 0, &trials.DimensionMismatchError{
				Field: fmt.Sprintf("points[%d]", s+1), Got: c, Want: nDim,
			}
		}
		if r != nStimuli {
			return nil, 0, &trials.ShapeMismatchError{
				Field: fmt.Sprintf("points[%d]", s+1), Got: r, Want: nStimuli,
			}
		}
	}
	return points, nDim, nil
}

// checkStimuli verifies that every stimulus in the trials has a point.
func checkStimuli(stimulusSet [][]int, z *mat.Dense) error {
	nStimuli, _ := z.Dims()
	for i, row := range stimulusSet {
		for _, v := range row {
			if v >= nStimuli {
				return &trials.ShapeMismatchError{
					Field: "stimulus_set",
					Got:   v,
					Want:  nStimuli,
					Msg:   fmt.Sprintf("trial %d references stimulus %d, embedding has %d", i, v, nStimuli),
				}
			}
		}
	}
	return nil
}
