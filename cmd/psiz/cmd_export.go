package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/trialfile"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Convert a trial file to an Arrow IPC file",
		Long: `Convert a trial file of any layout to an Arrow IPC file for use with
columnar tools. The record id and configuration table travel in the
schema metadata.

Examples:
  psiz export obs.psiz --output obs.arrow`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")

			rec, from, err := trialfile.ReadRecord(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			// Reject files whose stored configuration table has drifted.
			if _, err := rec.Trials(); err != nil {
				return fmt.Errorf("failed to load trials: %w", err)
			}
			if err := trialfile.WriteArrow(output, rec); err != nil {
				return fmt.Errorf("failed to export: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"id":      rec.ID,
					"from":    from.String(),
					"path":    output,
					"n_trial": len(rec.StimulusSet),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d trials (%s -> arrow) -> %s\n", len(rec.StimulusSet), from, output)
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output Arrow file (required)")
	cmd.MarkFlagRequired("output")

	return cmd
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a trial file's integrity",
		Long: `Verify that a trial file can be read and that its configuration table
matches its trials. Compressed files are also checked against their
SHA-256 checksum.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path := args[0]

			format, err := trialfile.DetectFormat(path)
			if err != nil {
				return err
			}
			if format == trialfile.FormatV2 {
				if err := trialfile.VerifyChecksum(path); err != nil {
					return err
				}
			}
			t, err := trialfile.Load(path)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"path":    path,
					"format":  format.String(),
					"kind":    t.Kind(),
					"n_trial": t.NTrial(),
					"valid":   true,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (%s, %s, %d trials)\n", path, format, t.Kind(), t.NTrial())
			return nil
		},
	}
}
