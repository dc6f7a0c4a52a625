package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/generator"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random docket",
		Long: `Generate a docket of random trials over a pool of stimuli.

Each trial draws a query and its references without replacement.
References are stored in ascending order. Shape defaults come from the
generator section of the configuration.

Examples:
  psiz generate --n-stimuli 30 --n-trial 100 --output docket.psiz
  psiz generate --n-stimuli 30 --n-trial 50 --n-reference 8 --n-select 2 --seed 7 --output d.psiz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			nStimuli, _ := cmd.Flags().GetInt("n-stimuli")
			nTrial, _ := cmd.Flags().GetInt("n-trial")
			output, _ := cmd.Flags().GetString("output")
			seed, _ := cmd.Flags().GetUint64("seed")

			cfg := loadConfig()
			nReference := cfg.Generator.NReference
			if cmd.Flags().Changed("n-reference") {
				nReference, _ = cmd.Flags().GetInt("n-reference")
			}
			nSelect := cfg.Generator.NSelect
			if cmd.Flags().Changed("n-select") {
				nSelect, _ = cmd.Flags().GetInt("n-select")
			}
			isRanked := cfg.Generator.IsRanked
			if cmd.Flags().Changed("unranked") {
				unranked, _ := cmd.Flags().GetBool("unranked")
				isRanked = !unranked
			}
			if seed == 0 {
				seed = cfg.Simulation.Seed
			}

			var src rand.Source
			if seed != 0 {
				src = rand.NewPCG(seed, seed)
			}
			gen, err := generator.NewRandom(nStimuli, src)
			if err != nil {
				return err
			}
			docket, err := gen.Generate(nTrial, nReference, nSelect, isRanked)
			if err != nil {
				return err
			}

			rec, format, err := saveTrials(cmd, cfg, output, docket)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"id":          rec.ID,
					"path":        output,
					"format":      format.String(),
					"n_trial":     docket.NTrial(),
					"n_reference": nReference,
					"n_select":    nSelect,
					"is_ranked":   isRanked,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d trials (%d references, select %d) -> %s (%s)\n",
				docket.NTrial(), nReference, nSelect, output, format)
			return nil
		},
	}

	cmd.Flags().Int("n-stimuli", 0, "Number of stimuli in the pool (required)")
	cmd.Flags().Int("n-trial", 0, "Number of trials to generate (required)")
	cmd.Flags().Int("n-reference", 0, "References per trial (default from config)")
	cmd.Flags().Int("n-select", 0, "Selections per trial (default from config)")
	cmd.Flags().Bool("unranked", false, "Selections are unordered")
	cmd.Flags().Uint64("seed", 0, "Random seed (default from config, 0 for random)")
	cmd.Flags().String("output", "", "Output trial file (required)")
	cmd.Flags().String("format", "", "File layout: json, gzip or arrow (default from config)")
	cmd.MarkFlagRequired("n-stimuli")
	cmd.MarkFlagRequired("n-trial")
	cmd.MarkFlagRequired("output")

	return cmd
}
