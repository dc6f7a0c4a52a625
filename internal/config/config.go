// Package config provides unified configuration loading for psiz.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/psiz/internal/constants"
)

// PsizConfig contains all psiz configuration settings.
type PsizConfig struct {
	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Simulation contains settings for the probability engine and agents.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Storage contains settings for trial files and the trial-set database.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Generator contains defaults for randomly generated dockets.
	Generator GeneratorConfig `json:"generator" yaml:"generator"`
}

// LoggingConfig configures psiz's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to .psiz/decisions.jsonl.
	// "trace" additionally records per-trial probability rows.
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=info debug trace"`
}

// SimulationConfig configures outcome simulation.
type SimulationConfig struct {
	// Seed seeds the agent's random source. Zero draws a fresh seed per run.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Workers bounds how many configuration groups are scored concurrently.
	// Zero uses GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers" validate:"gte=0,lte=1024"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	// Format is the default trial file layout: "json", "gzip", or "arrow".
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=json gzip arrow"`

	// Compression is the gzip level used by the "gzip" layout (-2 to 9, 0 for default).
	Compression int `json:"compression" yaml:"compression" validate:"gte=-2,lte=9"`

	// Dir holds the trial-set database. Empty means ~/.psiz.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// GeneratorConfig sets the shape of generated trials.
type GeneratorConfig struct {
	NReference int  `json:"n_reference" yaml:"n_reference" validate:"gte=2"`
	NSelect    int  `json:"n_select" yaml:"n_select" validate:"gte=1,ltefield=NReference"`
	IsRanked   bool `json:"is_ranked" yaml:"is_ranked"`
}

// configValidate reports fields by their YAML names.
var configValidate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// Default returns a PsizConfig with sensible defaults.
func Default() *PsizConfig {
	return &PsizConfig{
		Logging: LoggingConfig{
			Level: "info",
		},
		Simulation: SimulationConfig{
			Seed:    0,
			Workers: 0,
		},
		Storage: StorageConfig{
			Format:      "gzip",
			Compression: 0,
		},
		Generator: GeneratorConfig{
			NReference: constants.DefaultGeneratorNReference,
			NSelect:    constants.DefaultGeneratorNSelect,
			IsRanked:   constants.DefaultIsRanked,
		},
	}
}

// Path returns ~/.psiz/config.yaml.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".psiz", "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.psiz/config.yaml -> environment variables
func Load() (*PsizConfig, error) {
	config := Default()

	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*PsizConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Storage.Dir = expandEnvVars(config.Storage.Dir)

	return config, nil
}

// Save writes the configuration to path as YAML.
func (c *PsizConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *PsizConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s: %v fails %q", fieldPath(verrs[0]), verrs[0].Value(), verrs[0].Tag())
		}
		return err
	}

	if c.Storage.Compression != 0 && c.Storage.Format != "gzip" {
		return fmt.Errorf("compression only applies to the gzip format, got format %q", c.Storage.Format)
	}

	return nil
}

// fieldPath turns "PsizConfig.generator.n_select" into "generator.n_select".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *PsizConfig) error {
	if v := os.Getenv("PSIZ_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("PSIZ_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing PSIZ_SEED: %w", err)
		}
		config.Simulation.Seed = seed
	}

	if v := os.Getenv("PSIZ_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing PSIZ_WORKERS: %w", err)
		}
		config.Simulation.Workers = n
	}

	if v := os.Getenv("PSIZ_STORAGE_FORMAT"); v != "" {
		config.Storage.Format = v
	}

	if v := os.Getenv("PSIZ_STORAGE_DIR"); v != "" {
		config.Storage.Dir = v
	}

	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
