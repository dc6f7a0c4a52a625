package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/trialfile"
	"github.com/nvandessel/psiz/internal/trials"
)

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <file>",
		Short: "Show the configuration table of a trial file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			t, err := trialfile.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load trials: %w", err)
			}

			summary := trials.Summarize(t)
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func printSummary(w io.Writer, s trials.Summary) {
	fmt.Fprintf(w, "Kind:            %s\n", s.Kind)
	fmt.Fprintf(w, "Trials:          %d\n", s.NTrial)
	fmt.Fprintf(w, "Stimuli:         %d\n", s.NStimulus)
	fmt.Fprintf(w, "Max references:  %d\n", s.MaxNReference)
	fmt.Fprintf(w, "Max outcomes:    %d\n", s.MaxOutcome)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONFIG\tN_REF\tN_SELECT\tRANKED\tGROUP\tSESSION\tOUTCOMES\tTRIALS")
	for i, c := range s.Configs {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%v\t%d\t%d\t%d\t%d\n",
			i, c.NReference, c.NSelect, c.IsRanked, c.GroupID, c.SessionID, c.NOutcome, s.TrialsPerConfig[i])
	}
	tw.Flush()
}
