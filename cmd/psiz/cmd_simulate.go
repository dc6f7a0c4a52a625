package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/agent"
	"github.com/nvandessel/psiz/internal/embedding"
	"github.com/nvandessel/psiz/internal/logging"
	"github.com/nvandessel/psiz/internal/trialfile"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <file>",
		Short: "Simulate an agent judging trials",
		Long: `Simulate an agent judging each trial of a docket.

The agent draws one outcome per trial from the model's outcome
probabilities and reorders the trial's references so the selected ones
come first. The judged trials are written as observations carrying the
agent's group.

At log level debug or trace every draw is recorded in
<root>/.psiz/decisions.jsonl.

Examples:
  psiz simulate docket.psiz --model model.yaml --output obs.psiz
  psiz simulate docket.psiz --model model.yaml --group 1 --seed 42 --output obs.psiz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			modelPath, _ := cmd.Flags().GetString("model")
			group, _ := cmd.Flags().GetInt("group")
			seed, _ := cmd.Flags().GetUint64("seed")
			output, _ := cmd.Flags().GetString("output")
			level, _ := cmd.Flags().GetString("log-level")

			cfg := loadConfig()
			if level == "" {
				level = cfg.Logging.Level
			}
			if seed == 0 {
				seed = cfg.Simulation.Seed
			}

			t, err := trialfile.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load trials: %w", err)
			}
			model, err := embedding.Load(modelPath)
			if err != nil {
				return fmt.Errorf("failed to load model: %w", err)
			}

			decisions := logging.NewDecisionLogger(filepath.Join(root, ".psiz"), level)
			defer decisions.Close()

			opts := []agent.AgentOption{
				agent.WithGroup(group),
				agent.WithEngine(agent.NewEngine(agent.WithWorkers(cfg.Simulation.Workers))),
				agent.WithDecisionLogger(decisions),
			}
			if seed != 0 {
				opts = append(opts, agent.WithSeed(seed))
			}
			a, err := agent.NewAgent(model, opts...)
			if err != nil {
				return err
			}

			obs, err := a.Simulate(context.Background(), t)
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			rec, format, err := saveTrials(cmd, cfg, output, obs)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"id":      rec.ID,
					"path":    output,
					"format":  format.String(),
					"n_trial": obs.NTrial(),
					"group":   group,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Simulated %d trials (group %d) -> %s (%s)\n", obs.NTrial(), group, output, format)
			if decisions.Enabled() {
				fmt.Fprintf(cmd.OutOrStdout(), "Draws logged to %s\n",
					filepath.Join(root, ".psiz", logging.DecisionsFile))
			}
			return nil
		},
	}

	cmd.Flags().String("model", "", "Embedding model YAML file (required)")
	cmd.Flags().Int("group", 0, "Agent group")
	cmd.Flags().Uint64("seed", 0, "Random seed (default from config, 0 for random)")
	cmd.Flags().String("output", "", "Output trial file (required)")
	cmd.Flags().String("format", "", "File layout: json, gzip or arrow (default from config)")
	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("output")

	return cmd
}
