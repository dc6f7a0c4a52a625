package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/agent"
	"github.com/nvandessel/psiz/internal/embedding"
	"github.com/nvandessel/psiz/internal/trialfile"
)

func newProbabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probability <file>",
		Short: "Compute outcome probabilities of trials under a model",
		Long: `Compute the probability of every possible outcome of each trial.

Outcome k of a trial is the k-th arrangement of its references in
lexicographic order; outcome 0 selects the references in the order they
are stored. Each trial uses its own group's attention unless --group is
given.

Examples:
  psiz probability docket.psiz --model model.yaml
  psiz probability obs.psiz --model model.yaml --group 1 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modelPath, _ := cmd.Flags().GetString("model")
			sample, _ := cmd.Flags().GetInt("sample")

			cfg := loadConfig()
			t, err := trialfile.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load trials: %w", err)
			}
			model, err := embedding.Load(modelPath)
			if err != nil {
				return fmt.Errorf("failed to load model: %w", err)
			}
			if sample < 0 || sample >= model.NSample() {
				return fmt.Errorf("sample %d out of range [0, %d)", sample, model.NSample())
			}

			engine := agent.NewEngine(agent.WithWorkers(cfg.Simulation.Workers))
			ctx := context.Background()
			var dist *agent.Distribution
			if cmd.Flags().Changed("group") {
				group, _ := cmd.Flags().GetInt("group")
				dist, err = engine.ProbabilityForGroup(ctx, t, model, group)
			} else {
				dist, err = engine.Probability(ctx, t, model)
			}
			if err != nil {
				return fmt.Errorf("failed to compute probabilities: %w", err)
			}

			rows := make([][]float64, t.NTrial())
			for i := range rows {
				rows[i] = dist.Row(sample, i)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"config_idx":    dist.ConfigIdx,
					"probabilities": rows,
				})
			}
			for i, row := range rows {
				cells := make([]string, len(row))
				for k, p := range row {
					cells[k] = strconv.FormatFloat(p, 'f', 4, 64)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, strings.Join(cells, " "))
			}
			return nil
		},
	}

	cmd.Flags().String("model", "", "Embedding model YAML file (required)")
	cmd.Flags().Int("group", 0, "Score every trial with this group's attention")
	cmd.Flags().Int("sample", 0, "Embedding sample to report")
	cmd.MarkFlagRequired("model")

	return cmd
}
