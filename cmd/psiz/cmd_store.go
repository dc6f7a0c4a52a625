package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/store"
	"github.com/nvandessel/psiz/internal/trialfile"
)

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage named trial sets in the local database",
		Long: `Save, load, list and delete named trial sets.

The database lives in storage.dir (default ~/.psiz/psiz.db). Saving
under an existing name replaces that set and keeps its id.

Examples:
  psiz store save obs.psiz --name pilot
  psiz store list
  psiz store load pilot --output pilot.psiz
  psiz store delete pilot`,
	}

	cmd.AddCommand(
		newStoreSaveCmd(),
		newStoreLoadCmd(),
		newStoreListCmd(),
		newStoreDeleteCmd(),
	)

	return cmd
}

// openStore opens the configured trial-set database.
func openStore() (*store.SQLiteTrialStore, error) {
	dir, err := storeDir(loadConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store directory: %w", err)
	}
	s, err := store.NewSQLiteTrialStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

func newStoreSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Save a trial file under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			name, _ := cmd.Flags().GetString("name")

			t, err := trialfile.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load trials: %w", err)
			}

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			info, err := s.Save(context.Background(), name, t)
			if err != nil {
				return fmt.Errorf("failed to save trial set: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s %q: %d trials, %d configurations (id %s)\n",
				info.Kind, info.Name, info.TrialCount, info.ConfigCount, info.ID)
			return nil
		},
	}

	cmd.Flags().String("name", "", "Trial set name (required)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newStoreLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <name-or-id>",
		Short: "Write a stored trial set to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			t, err := s.Load(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load trial set: %w", err)
			}

			_, format, err := saveTrials(cmd, loadConfig(), output, t)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"ref":     args[0],
					"path":    output,
					"format":  format.String(),
					"n_trial": t.NTrial(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d trials -> %s (%s)\n", t.NTrial(), output, format)
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output trial file (required)")
	cmd.Flags().String("format", "", "File layout: json, gzip or arrow (default from config)")
	cmd.MarkFlagRequired("output")

	return cmd
}

func newStoreListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored trial sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			infos, err := s.List(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list trial sets: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"trial_sets": infos,
					"count":      len(infos),
				})
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No trial sets stored.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tTRIALS\tCONFIGS\tHASH\tUPDATED")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					info.Name, info.Kind, info.TrialCount, info.ConfigCount, info.ContentHash,
					info.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newStoreDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name-or-id>",
		Short: "Delete a stored trial set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Delete(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to delete trial set: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "deleted",
					"ref":    args[0],
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
