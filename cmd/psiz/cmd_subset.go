package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/trialfile"
	"github.com/nvandessel/psiz/internal/trials"
)

func newSubsetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subset <file>",
		Short: "Select trials by index",
		Long: `Write the selected trials of a trial file to a new file.

Indices keep their order and may repeat.

Examples:
  psiz subset obs.psiz --index 0,2,2 --output picked.psiz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			indexFlag, _ := cmd.Flags().GetString("index")
			output, _ := cmd.Flags().GetString("output")

			index, err := parseInts(indexFlag)
			if err != nil {
				return fmt.Errorf("invalid --index: %w", err)
			}

			t, err := trialfile.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load trials: %w", err)
			}
			sub, err := trials.Subset(t, index)
			if err != nil {
				return err
			}

			cfg := loadConfig()
			_, format, err := saveTrials(cmd, cfg, output, sub)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"path":         output,
					"format":       format.String(),
					"n_trial":      sub.NTrial(),
					"config_count": len(sub.Configs()),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d trials (%d configurations) -> %s\n", sub.NTrial(), len(sub.Configs()), output)
			return nil
		},
	}

	cmd.Flags().String("index", "", "Comma-separated trial indices (required)")
	cmd.Flags().String("output", "", "Output trial file (required)")
	cmd.Flags().String("format", "", "File layout: json, gzip or arrow (default from config)")
	cmd.MarkFlagRequired("index")
	cmd.MarkFlagRequired("output")

	return cmd
}
