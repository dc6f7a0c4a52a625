package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/psiz/internal/agent"
	"github.com/nvandessel/psiz/internal/embedding"
	"github.com/nvandessel/psiz/internal/trials"
)

// registerTools registers all psiz MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "psiz_describe",
		Description: "Validate a set of similarity-judgment trials and report its configuration table",
	}, s.handlePsizDescribe)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "psiz_probability",
		Description: "Compute the probability of every possible outcome of each trial under an embedding model",
	}, s.handlePsizProbability)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "psiz_simulate",
		Description: "Simulate an agent judging trials under an embedding model and optionally store the observations",
	}, s.handlePsizSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "psiz_list",
		Description: "List stored trial sets",
	}, s.handlePsizList)
}

// resolveTrials loads a stored trial set or builds one from inline rows.
func (s *Server) resolveTrials(ctx context.Context, in TrialsInput) (trials.Trials, error) {
	if in.Ref != "" {
		if len(in.StimulusSet) > 0 {
			return nil, fmt.Errorf("trials: ref and stimulus_set are mutually exclusive")
		}
		t, err := s.store.Load(ctx, in.Ref)
		if err != nil {
			return nil, fmt.Errorf("failed to load trial set: %w", err)
		}
		return t, nil
	}
	if len(in.StimulusSet) == 0 {
		return nil, fmt.Errorf("trials: ref or stimulus_set is required")
	}

	opts := []trials.Option{
		trials.WithNSelect(in.NSelect...),
		trials.WithIsRanked(in.IsRanked...),
		trials.WithLogger(s.logger),
	}
	if len(in.NReference) > 0 {
		opts = append(opts, trials.WithNReference(in.NReference...))
	}
	if len(in.GroupID) > 0 || len(in.SessionID) > 0 {
		opts = append(opts, trials.WithGroupID(in.GroupID...), trials.WithSessionID(in.SessionID...))
		return trials.NewObservations(in.StimulusSet, opts...)
	}
	return trials.NewDocket(in.StimulusSet, opts...)
}

// loadModel reads an embedding model from a path inside the allowed directories.
func (s *Server) loadModel(path string) (*embedding.Model, error) {
	if path == "" {
		return nil, fmt.Errorf("model path is required")
	}
	resolved, err := validatePath(path, s.allowed)
	if err != nil {
		return nil, err
	}
	m, err := embedding.Load(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", redactPath(resolved), err)
	}
	return m, nil
}

// handlePsizDescribe implements the psiz_describe tool.
func (s *Server) handlePsizDescribe(ctx context.Context, req *sdk.CallToolRequest, args PsizDescribeInput) (_ *sdk.CallToolResult, _ PsizDescribeOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("psiz_describe", start, retErr, summarizeParams(args.Trials, nil))
	}()

	if err := s.limiters.check("psiz_describe"); err != nil {
		return nil, PsizDescribeOutput{}, err
	}

	t, err := s.resolveTrials(ctx, args.Trials)
	if err != nil {
		return nil, PsizDescribeOutput{}, err
	}

	sum := trials.Summarize(t)
	out := PsizDescribeOutput{
		Kind:          sum.Kind.String(),
		NTrial:        sum.NTrial,
		MaxNReference: sum.MaxNReference,
		MaxNOutcome:   sum.MaxOutcome,
		NStimulus:     sum.NStimulus,
		Configs:       configSummaries(t.Configs(), t.ConfigIdx()),
	}
	for _, w := range t.Warnings() {
		out.Warnings = append(out.Warnings, w.String())
	}
	return nil, out, nil
}

// handlePsizProbability implements the psiz_probability tool.
func (s *Server) handlePsizProbability(ctx context.Context, req *sdk.CallToolRequest, args PsizProbabilityInput) (_ *sdk.CallToolResult, _ PsizProbabilityOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("psiz_probability", start, retErr, summarizeParams(args.Trials, map[string]any{
			"model": args.Model, "group": args.Group, "sample": args.Sample,
		}))
	}()

	if err := s.limiters.check("psiz_probability"); err != nil {
		return nil, PsizProbabilityOutput{}, err
	}

	t, err := s.resolveTrials(ctx, args.Trials)
	if err != nil {
		return nil, PsizProbabilityOutput{}, err
	}
	model, err := s.loadModel(args.Model)
	if err != nil {
		return nil, PsizProbabilityOutput{}, err
	}
	if args.Sample < 0 || args.Sample >= model.NSample() {
		return nil, PsizProbabilityOutput{}, fmt.Errorf("sample %d out of range [0, %d)", args.Sample, model.NSample())
	}

	var dist *agent.Distribution
	if args.Group != nil {
		dist, err = s.engine.ProbabilityForGroup(ctx, t, model, *args.Group)
	} else {
		dist, err = s.engine.Probability(ctx, t, model)
	}
	if err != nil {
		return nil, PsizProbabilityOutput{}, fmt.Errorf("failed to compute probabilities: %w", err)
	}

	probs := make([][]float64, t.NTrial())
	for i := range probs {
		probs[i] = dist.Row(args.Sample, i)
	}
	return nil, PsizProbabilityOutput{
		Configs:       configSummaries(dist.Configs, dist.ConfigIdx),
		ConfigIdx:     dist.ConfigIdx,
		Probabilities: probs,
		NSample:       len(dist.Samples),
	}, nil
}

// handlePsizSimulate implements the psiz_simulate tool.
func (s *Server) handlePsizSimulate(ctx context.Context, req *sdk.CallToolRequest, args PsizSimulateInput) (_ *sdk.CallToolResult, _ PsizSimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("psiz_simulate", start, retErr, summarizeParams(args.Trials, map[string]any{
			"model": args.Model, "group": args.Group, "save_as": args.SaveAs,
		}))
	}()

	if err := s.limiters.check("psiz_simulate"); err != nil {
		return nil, PsizSimulateOutput{}, err
	}

	t, err := s.resolveTrials(ctx, args.Trials)
	if err != nil {
		return nil, PsizSimulateOutput{}, err
	}
	model, err := s.loadModel(args.Model)
	if err != nil {
		return nil, PsizSimulateOutput{}, err
	}

	opts := []agent.AgentOption{
		agent.WithGroup(args.Group),
		agent.WithEngine(s.engine),
		agent.WithLogger(s.logger),
	}
	seed := args.Seed
	if seed == 0 {
		seed = s.seed
	}
	if seed != 0 {
		opts = append(opts, agent.WithSeed(seed))
	}
	ag, err := agent.NewAgent(model, opts...)
	if err != nil {
		return nil, PsizSimulateOutput{}, err
	}

	obs, err := ag.Simulate(ctx, t)
	if err != nil {
		return nil, PsizSimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	out := PsizSimulateOutput{
		StimulusSet: obs.StimulusSet(),
		NSelect:     obs.NSelect(),
		GroupID:     obs.GroupID(),
	}
	if args.SaveAs != "" {
		info, err := s.store.Save(ctx, args.SaveAs, obs)
		if err != nil {
			return nil, PsizSimulateOutput{}, fmt.Errorf("failed to save observations: %w", err)
		}
		out.SavedID = info.ID
	}
	return nil, out, nil
}

// handlePsizList implements the psiz_list tool.
func (s *Server) handlePsizList(ctx context.Context, req *sdk.CallToolRequest, args PsizListInput) (_ *sdk.CallToolResult, _ PsizListOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("psiz_list", start, retErr, nil)
	}()

	if err := s.limiters.check("psiz_list"); err != nil {
		return nil, PsizListOutput{}, err
	}

	infos, err := s.store.List(ctx)
	if err != nil {
		return nil, PsizListOutput{}, fmt.Errorf("failed to list trial sets: %w", err)
	}

	items := make([]TrialSetItem, 0, len(infos))
	for _, info := range infos {
		items = append(items, TrialSetItem{
			ID:          info.ID,
			Name:        info.Name,
			Kind:        info.Kind.String(),
			TrialCount:  info.TrialCount,
			ConfigCount: info.ConfigCount,
			UpdatedAt:   info.UpdatedAt,
		})
	}
	return nil, PsizListOutput{TrialSets: items, Count: len(items)}, nil
}
