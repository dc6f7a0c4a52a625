package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nvandessel/psiz/internal/logging"
	"github.com/nvandessel/psiz/internal/trials"
)

// Agent simulates similarity judgments under one group's attention weights.
type Agent struct {
	emb       Embedding
	group     int
	engine    *Engine
	decisions *logging.DecisionLogger
	logger    *slog.Logger

	mu  sync.Mutex
	src rand.Source
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithGroup selects the attention weights the agent judges with.
func WithGroup(group int) AgentOption {
	return func(a *Agent) { a.group = group }
}

// WithSeed seeds the agent's random source.
func WithSeed(seed uint64) AgentOption {
	return func(a *Agent) { a.src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15) }
}

// WithSource sets the agent's random source. A *rand.Rand qualifies.
func WithSource(src rand.Source) AgentOption {
	return func(a *Agent) { a.src = src }
}

// WithEngine shares an engine, and its outcome cache, across agents.
func WithEngine(e *Engine) AgentOption {
	return func(a *Agent) { a.engine = e }
}

// WithDecisionLogger records every draw to dl.
func WithDecisionLogger(dl *logging.DecisionLogger) AgentOption {
	return func(a *Agent) { a.decisions = dl }
}

// WithLogger sets the agent's logger.
func WithLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) { a.logger = l }
}

// NewAgent creates an agent judging with emb. Without WithSeed or WithSource
// the agent draws from an unseeded source.
func NewAgent(emb Embedding, opts ...AgentOption) (*Agent, error) {
	if emb == nil {
		return nil, fmt.Errorf("new agent: nil embedding")
	}
	a := &Agent{emb: emb}
	for _, opt := range opts {
		opt(a)
	}
	if a.group < 0 {
		return nil, fmt.Errorf("new agent: negative group %d", a.group)
	}
	if _, err := emb.Attention(a.group); err != nil {
		return nil, fmt.Errorf("new agent: %w", err)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.engine == nil {
		a.engine = NewEngine(WithEngineLogger(a.logger))
	}
	if a.src == nil {
		a.src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return a, nil
}

// Group returns the agent's group.
func (a *Agent) Group() int { return a.group }

// Probability scores every trial under the agent's attention weights,
// whatever group the trials record.
func (a *Agent) Probability(ctx context.Context, t trials.Trials) (*Distribution, error) {
	return a.engine.ProbabilityForGroup(ctx, t, a.emb, a.group)
}

// Simulate draws one outcome per trial and returns the judged trials. Each
// trial's references are reordered so the drawn selections come first.
// Only the set of references matters on input: simulating Observations
// discards the order they recorded. Draws use the first embedding sample.
// The result carries the agent's group, the input's n_select and
// is_ranked, and session 0.
func (a *Agent) Simulate(ctx context.Context, t trials.Trials) (obs *trials.Observations, err error) {
	ctx, span := startSimulateSpan(ctx, a.group, t.NTrial())
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	dist, err := a.Probability(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	stimulusSet := t.StimulusSet()
	p := dist.Matrix()

	a.mu.Lock()
	for i, row := range stimulusSet {
		c := dist.ConfigIdx[i]
		set := dist.Outcomes[c]
		k := int(distuv.NewCategorical(p.RawRowView(i)[:set.Len()], a.src).Rand())

		refs := append([]int(nil), row[1:1+set.NReference()]...)
		for j, slot := range set.Row(k) {
			row[1+j] = refs[slot]
		}

		a.decisions.LogDraw(logging.Draw{
			Trial:       i,
			Config:      c,
			Group:       a.group,
			Outcome:     k,
			Probability: p.At(i, k),
		})
	}
	a.mu.Unlock()
	outcomesDrawn.Add(float64(len(stimulusSet)))

	obs, err = trials.NewObservations(stimulusSet,
		trials.WithNReference(t.NReference()...),
		trials.WithNSelect(t.NSelect()...),
		trials.WithIsRanked(t.IsRanked()...),
		trials.WithGroupID(a.group),
		trials.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	a.logger.Debug("simulated judgments", "trials", obs.NTrial(), "group", a.group)
	return obs, nil
}
