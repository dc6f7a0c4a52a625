package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/config"
	"github.com/nvandessel/psiz/internal/logging"
	"github.com/nvandessel/psiz/internal/store"
	"github.com/nvandessel/psiz/internal/trialfile"
	"github.com/nvandessel/psiz/internal/trials"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "psiz",
		Short: "psiz - similarity-judgment trials and outcome probabilities",
		Long: `psiz manages similarity-judgment trials and the probabilities of their outcomes.

Trials pair a query stimulus with references; an agent selects the
references most similar to the query. psiz validates and stores trial
sets, computes the probability of every outcome under an embedding
model, and simulates agents judging trials.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			if level == "" {
				if cfg, err := config.Load(); err == nil {
					level = cfg.Logging.Level
				}
			}
			slog.SetDefault(logging.NewLogger(level, cmd.ErrOrStderr()))
		},
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (default from config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newGenerateCmd(),
		newDescribeCmd(),
		newProbabilityCmd(),
		newSimulateCmd(),
		newLikelihoodCmd(),
		newSubsetCmd(),
		newStackCmd(),
		newExportCmd(),
		newVerifyCmd(),
		newModelCmd(),
		newStoreCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// loadConfig loads the user configuration, falling back to defaults when
// the file is unreadable.
func loadConfig() *config.PsizConfig {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		return config.Default()
	}
	return cfg
}

// storeDir returns the directory holding the trial-set database.
func storeDir(cfg *config.PsizConfig) (string, error) {
	if cfg.Storage.Dir != "" {
		return cfg.Storage.Dir, nil
	}
	if err := store.EnsureGlobalPsizDir(); err != nil {
		return "", err
	}
	return store.GlobalPsizPath()
}

// saveTrials writes t to path. The layout comes from the --format flag when
// set, then from the configuration.
func saveTrials(cmd *cobra.Command, cfg *config.PsizConfig, path string, t trials.Trials) (*trialfile.Record, trialfile.Format, error) {
	name, _ := cmd.Flags().GetString("format")
	if name == "" {
		name = cfg.Storage.Format
	}
	format, err := trialfile.ParseFormat(name)
	if err != nil {
		return nil, 0, err
	}
	rec, err := trialfile.Save(path, t, trialfile.SaveOptions{
		Format: format,
		Level:  cfg.Storage.Compression,
		Metadata: map[string]string{
			"psiz_version": version,
		},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to save trials: %w", err)
	}
	return rec, format, nil
}

// parseInts parses a comma-separated list such as "0,2,2".
func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}
