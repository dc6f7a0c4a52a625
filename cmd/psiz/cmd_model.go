package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/embedding"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Create and compare embedding models",
	}

	cmd.AddCommand(
		newModelRandomCmd(),
		newModelCompareCmd(),
	)

	return cmd
}

func newModelRandomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "random",
		Short: "Write a random embedding model",
		Long: `Write an embedding model whose points are drawn from a normal
distribution centred on one. Every group starts with uniform attention.

Examples:
  psiz model random --n-stimuli 30 --n-dim 2 --output model.yaml
  psiz model random --n-stimuli 30 --n-dim 3 --n-group 2 --kernel inverse --param rho=2 --output m.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			nStimuli, _ := cmd.Flags().GetInt("n-stimuli")
			nDim, _ := cmd.Flags().GetInt("n-dim")
			nGroup, _ := cmd.Flags().GetInt("n-group")
			kernelName, _ := cmd.Flags().GetString("kernel")
			params, _ := cmd.Flags().GetStringSlice("param")
			seed, _ := cmd.Flags().GetUint64("seed")
			output, _ := cmd.Flags().GetString("output")

			kernel, err := embedding.NewKernel(kernelName, nDim)
			if err != nil {
				return err
			}
			for _, p := range params {
				name, raw, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid --param %q (want name=value)", p)
				}
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("invalid --param %q: %w", p, err)
				}
				if err := embedding.SetParam(kernel, name, v); err != nil {
					return err
				}
			}

			if seed == 0 {
				seed = loadConfig().Simulation.Seed
			}
			var rng *rand.Rand
			if seed != 0 {
				rng = rand.New(rand.NewPCG(seed, seed))
			} else {
				rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
			}

			model, err := embedding.Random(kernel, nStimuli, nDim, nGroup, rng)
			if err != nil {
				return err
			}
			if err := model.Save(output); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"path":      output,
					"kernel":    kernel.Name(),
					"n_stimuli": model.NStimuli(),
					"n_dim":     model.NDim(),
					"n_group":   model.NGroup(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s model (%d stimuli, %d dims, %d groups) -> %s\n",
				kernel.Name(), model.NStimuli(), model.NDim(), model.NGroup(), output)
			return nil
		},
	}

	cmd.Flags().Int("n-stimuli", 0, "Number of stimuli (required)")
	cmd.Flags().Int("n-dim", 2, "Embedding dimensionality")
	cmd.Flags().Int("n-group", 1, "Number of agent groups")
	cmd.Flags().String("kernel", "exponential", fmt.Sprintf("Similarity kernel %v", embedding.KernelNames()))
	cmd.Flags().StringSlice("param", nil, "Kernel parameter as name=value (repeatable)")
	cmd.Flags().Uint64("seed", 0, "Random seed (default from config, 0 for random)")
	cmd.Flags().String("output", "", "Output model YAML file (required)")
	cmd.MarkFlagRequired("n-stimuli")
	cmd.MarkFlagRequired("output")

	return cmd
}

func newModelCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <model-a> <model-b>",
		Short: "Compare the similarity structure of two models",
		Long: `Report R^2 between the pairwise similarities of two models over the same
stimuli. A value near 1 means the second model recovers the first.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			group, _ := cmd.Flags().GetInt("group")

			a, err := embedding.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", args[0], err)
			}
			b, err := embedding.Load(args[1])
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", args[1], err)
			}

			simA, err := embedding.SimilarityMatrix(a, 0, group)
			if err != nil {
				return err
			}
			simB, err := embedding.SimilarityMatrix(b, 0, group)
			if err != nil {
				return err
			}
			r2, err := embedding.MatrixCorrelation(simA, simB)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"r2":    r2,
					"group": group,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "R^2 = %.4f\n", r2)
			return nil
		},
	}

	cmd.Flags().Int("group", 0, "Group whose attention weights both models use")

	return cmd
}
