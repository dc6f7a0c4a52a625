package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/trialfile"
	"github.com/nvandessel/psiz/internal/trials"
)

func newStackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack <file>...",
		Short: "Concatenate trial files",
		Long: `Concatenate trial files of the same kind into one file.

Dockets stack with dockets and observations with observations.

Examples:
  psiz stack day1.psiz day2.psiz --output all.psiz`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")

			list := make([]trials.Trials, 0, len(args))
			for _, path := range args {
				t, err := trialfile.Load(path)
				if err != nil {
					return fmt.Errorf("failed to load %s: %w", path, err)
				}
				list = append(list, t)
			}
			stacked, err := trials.Stack(list...)
			if err != nil {
				return err
			}

			cfg := loadConfig()
			_, format, err := saveTrials(cmd, cfg, output, stacked)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"path":         output,
					"format":       format.String(),
					"kind":         stacked.Kind(),
					"n_trial":      stacked.NTrial(),
					"config_count": len(stacked.Configs()),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stacked %d files into %d trials -> %s\n", len(args), stacked.NTrial(), output)
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output trial file (required)")
	cmd.Flags().String("format", "", "File layout: json, gzip or arrow (default from config)")
	cmd.MarkFlagRequired("output")

	return cmd
}
