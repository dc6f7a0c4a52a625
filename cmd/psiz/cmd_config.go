package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage psiz configuration",
		Long: `View and modify psiz configuration settings.

Configuration is stored in ~/.psiz/config.yaml.

Examples:
  psiz config list                         # Show all settings
  psiz config get storage.format           # Get a specific setting
  psiz config set simulation.seed 42       # Set a setting`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Configuration (~/.psiz/config.yaml):")
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Logging:")
			fmt.Fprintf(w, "  logging.level:          %s\n", valueOrDefault(cfg.Logging.Level, "info"))
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Simulation:")
			fmt.Fprintf(w, "  simulation.seed:        %d\n", cfg.Simulation.Seed)
			fmt.Fprintf(w, "  simulation.workers:     %d\n", cfg.Simulation.Workers)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Storage:")
			fmt.Fprintf(w, "  storage.format:         %s\n", valueOrDefault(cfg.Storage.Format, "gzip"))
			fmt.Fprintf(w, "  storage.compression:    %d\n", cfg.Storage.Compression)
			fmt.Fprintf(w, "  storage.dir:            %s\n", valueOrDefault(cfg.Storage.Dir, "(default)"))
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Generator:")
			fmt.Fprintf(w, "  generator.n_reference:  %d\n", cfg.Generator.NReference)
			fmt.Fprintf(w, "  generator.n_select:     %d\n", cfg.Generator.NSelect)
			fmt.Fprintf(w, "  generator.is_ranked:    %v\n", cfg.Generator.IsRanked)
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, err := config.Path()
			if err != nil {
				return err
			}
			// Start from the file alone so environment overrides are not persisted.
			cfg := config.Default()
			if loaded, err := config.LoadFromFile(path); err == nil {
				cfg = loaded
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.PsizConfig, key string) (interface{}, bool) {
	switch key {
	case "logging.level":
		return cfg.Logging.Level, true
	case "simulation.seed":
		return cfg.Simulation.Seed, true
	case "simulation.workers":
		return cfg.Simulation.Workers, true
	case "storage.format":
		return cfg.Storage.Format, true
	case "storage.compression":
		return cfg.Storage.Compression, true
	case "storage.dir":
		return cfg.Storage.Dir, true
	case "generator.n_reference":
		return cfg.Generator.NReference, true
	case "generator.n_select":
		return cfg.Generator.NSelect, true
	case "generator.is_ranked":
		return cfg.Generator.IsRanked, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key. Range
// checks are left to Validate.
func setConfigValue(cfg *config.PsizConfig, key, value string) error {
	var err error
	switch key {
	case "logging.level":
		cfg.Logging.Level = value
	case "simulation.seed":
		cfg.Simulation.Seed, err = strconv.ParseUint(value, 10, 64)
	case "simulation.workers":
		cfg.Simulation.Workers, err = strconv.Atoi(value)
	case "storage.format":
		cfg.Storage.Format = value
	case "storage.compression":
		cfg.Storage.Compression, err = strconv.Atoi(value)
	case "storage.dir":
		cfg.Storage.Dir = value
	case "generator.n_reference":
		cfg.Generator.NReference, err = strconv.Atoi(value)
	case "generator.n_select":
		cfg.Generator.NSelect, err = strconv.Atoi(value)
	case "generator.is_ranked":
		cfg.Generator.IsRanked, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q", key, value)
	}
	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
