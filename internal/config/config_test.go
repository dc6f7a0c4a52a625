package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if config.Simulation.Seed != 0 {
		t.Errorf("expected Seed 0, got %d", config.Simulation.Seed)
	}
	if config.Storage.Format != "gzip" {
		t.Errorf("expected Storage.Format 'gzip', got '%s'", config.Storage.Format)
	}
	if config.Generator.NReference != 2 || config.Generator.NSelect != 1 || !config.Generator.IsRanked {
		t.Errorf("expected generator 2c1 ranked, got %+v", config.Generator)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	t.Setenv("PSIZ_TEST_DIR", "/data/psiz")

	configContent := `
logging:
  level: debug
simulation:
  seed: 42
  workers: 4
storage:
  format: arrow
  dir: ${PSIZ_TEST_DIR}/sets
generator:
  n_reference: 8
  n_select: 2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("expected Level 'debug', got '%s'", config.Logging.Level)
	}
	if config.Simulation.Seed != 42 || config.Simulation.Workers != 4 {
		t.Errorf("expected seed 42 workers 4, got %+v", config.Simulation)
	}
	if config.Storage.Format != "arrow" {
		t.Errorf("expected Format 'arrow', got '%s'", config.Storage.Format)
	}
	if config.Storage.Dir != "/data/psiz/sets" {
		t.Errorf("expected expanded Dir, got '%s'", config.Storage.Dir)
	}
	if config.Generator.NReference != 8 || config.Generator.NSelect != 2 {
		t.Errorf("expected generator 8c2, got %+v", config.Generator)
	}
	// Omitted keys keep their defaults
	if !config.Generator.IsRanked {
		t.Error("expected IsRanked to keep its default")
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("logging: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoad_HomeConfigAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	dir := filepath.Join(home, ".psiz")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	content := "simulation:\n  seed: 7\nstorage:\n  format: json\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PSIZ_WORKERS", "3")
	t.Setenv("PSIZ_STORAGE_FORMAT", "arrow")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Simulation.Seed != 7 {
		t.Errorf("expected file seed 7, got %d", config.Simulation.Seed)
	}
	if config.Simulation.Workers != 3 {
		t.Errorf("expected env workers 3, got %d", config.Simulation.Workers)
	}
	if config.Storage.Format != "arrow" {
		t.Errorf("expected env to override format, got '%s'", config.Storage.Format)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Storage.Format != Default().Storage.Format {
		t.Errorf("expected defaults, got %+v", config.Storage)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PSIZ_LOG_LEVEL", "trace")
	t.Setenv("PSIZ_SEED", "123")
	t.Setenv("PSIZ_STORAGE_DIR", "/tmp/psiz")

	config := Default()
	if err := applyEnvOverrides(config); err != nil {
		t.Fatalf("applyEnvOverrides failed: %v", err)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected Level 'trace', got '%s'", config.Logging.Level)
	}
	if config.Simulation.Seed != 123 {
		t.Errorf("expected Seed 123, got %d", config.Simulation.Seed)
	}
	if config.Storage.Dir != "/tmp/psiz" {
		t.Errorf("expected Dir '/tmp/psiz', got '%s'", config.Storage.Dir)
	}
}

func TestApplyEnvOverrides_InvalidNumbers(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PSIZ_SEED", "-1"},
		{"PSIZ_SEED", "abc"},
		{"PSIZ_WORKERS", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if err := applyEnvOverrides(Default()); err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("expected error naming %s, got %v", tt.key, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*PsizConfig)
		wantErr string
	}{
		{
			name:   "valid default config",
			modify: func(c *PsizConfig) {},
		},
		{
			name:   "empty log level is valid",
			modify: func(c *PsizConfig) { c.Logging.Level = "" },
		},
		{
			name:    "invalid log level",
			modify:  func(c *PsizConfig) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "negative workers",
			modify:  func(c *PsizConfig) { c.Simulation.Workers = -1 },
			wantErr: "simulation.workers",
		},
		{
			name:    "unknown storage format",
			modify:  func(c *PsizConfig) { c.Storage.Format = "parquet" },
			wantErr: "storage.format",
		},
		{
			name:    "compression out of range",
			modify:  func(c *PsizConfig) { c.Storage.Compression = 10 },
			wantErr: "storage.compression",
		},
		{
			name: "compression with non-gzip format",
			modify: func(c *PsizConfig) {
				c.Storage.Format = "arrow"
				c.Storage.Compression = 5
			},
			wantErr: "compression only applies",
		},
		{
			name:    "single reference generator",
			modify:  func(c *PsizConfig) { c.Generator.NReference = 1 },
			wantErr: "generator.n_reference",
		},
		{
			name: "n_select above n_reference",
			modify: func(c *PsizConfig) {
				c.Generator.NReference = 3
				c.Generator.NSelect = 4
			},
			wantErr: "generator.n_select",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := Default()
	config.Simulation.Seed = 99
	config.Storage.Format = "json"
	if err := config.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Simulation.Seed != 99 || loaded.Storage.Format != "json" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
