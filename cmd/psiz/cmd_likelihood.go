package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/agent"
	"github.com/nvandessel/psiz/internal/constants"
	"github.com/nvandessel/psiz/internal/embedding"
	"github.com/nvandessel/psiz/internal/trialfile"
	"github.com/nvandessel/psiz/internal/trials"
)

func newLikelihoodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "likelihood <file>",
		Short: "Score judged trials under a model",
		Long: `Compute the log likelihood of the judgments recorded in an observations
file. Each trial is scored with its own group's attention.

Examples:
  psiz likelihood obs.psiz --model model.yaml
  psiz likelihood obs.psiz --model model.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modelPath, _ := cmd.Flags().GetString("model")

			cfg := loadConfig()
			t, err := trialfile.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load trials: %w", err)
			}
			obs, ok := t.(*trials.Observations)
			if !ok {
				return &trials.TypeMismatchError{Got: t.Kind(), Want: constants.KindObservations}
			}
			model, err := embedding.Load(modelPath)
			if err != nil {
				return fmt.Errorf("failed to load model: %w", err)
			}

			engine := agent.NewEngine(agent.WithWorkers(cfg.Simulation.Workers))
			ll, err := engine.LogLikelihood(context.Background(), obs, model)
			if err != nil {
				return fmt.Errorf("failed to score judgments: %w", err)
			}
			var total float64
			for _, v := range ll {
				total += v
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"log_likelihood": total,
					"trials":         ll,
				})
			}
			for i, v := range ll {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%.6f\n", i, v)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total\t%.6f\n", total)
			return nil
		},
	}

	cmd.Flags().String("model", "", "Embedding model YAML file (required)")
	cmd.MarkFlagRequired("model")

	return cmd
}
