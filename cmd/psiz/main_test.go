package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/psiz/internal/config"
	"github.com/nvandessel/psiz/internal/trialfile"
)

// isolateHome sets HOME to a temp directory to avoid touching real ~/.psiz/
// MUST be called for any test that loads config or opens the store
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
	for _, env := range []string{"PSIZ_LOG_LEVEL", "PSIZ_SEED", "PSIZ_WORKERS", "PSIZ_STORAGE_FORMAT", "PSIZ_STORAGE_DIR"} {
		t.Setenv(env, "")
	}
}

// runCmd executes the root command with args and returns its stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("psiz %s failed: %v", strings.Join(args, " "), err)
	}
	return out
}

func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("invalid JSON output %q: %v", out, err)
	}
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	rootCmd := newRootCmd()
	want := []string{
		"version", "generate", "describe", "probability", "simulate", "subset",
		"stack", "export", "verify", "model", "store", "config", "mcp-server",
	}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	isolateHome(t, t.TempDir())

	out := mustRun(t, "version", "--json")
	var got map[string]string
	decodeJSON(t, out, &got)
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}

	out = mustRun(t, "version")
	if !strings.HasPrefix(out, "psiz version ") {
		t.Errorf("output = %q", out)
	}
}

func TestGenerateAndDescribe(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	path := filepath.Join(tmpDir, "docket.psiz")

	out := mustRun(t, "generate", "--n-stimuli", "10", "--n-trial", "20", "--seed", "3", "--output", path, "--json")
	var gen struct {
		ID         string `json:"id"`
		Format     string `json:"format"`
		NTrial     int    `json:"n_trial"`
		NReference int    `json:"n_reference"`
	}
	decodeJSON(t, out, &gen)
	if gen.ID == "" || gen.Format != "gzip" || gen.NTrial != 20 || gen.NReference != 2 {
		t.Errorf("generate output = %+v", gen)
	}

	out = mustRun(t, "describe", path, "--json")
	var sum struct {
		Kind            string `json:"kind"`
		NTrial          int    `json:"n_trial"`
		MaxOutcome      int    `json:"max_n_outcome"`
		TrialsPerConfig []int  `json:"trials_per_config"`
	}
	decodeJSON(t, out, &sum)
	if sum.Kind != "docket" || sum.NTrial != 20 || sum.MaxOutcome != 2 {
		t.Errorf("describe = %+v", sum)
	}
	if len(sum.TrialsPerConfig) != 1 || sum.TrialsPerConfig[0] != 20 {
		t.Errorf("TrialsPerConfig = %v, want [20]", sum.TrialsPerConfig)
	}

	out = mustRun(t, "describe", path)
	if !strings.Contains(out, "Kind:            docket") || !strings.Contains(out, "OUTCOMES") {
		t.Errorf("text output = %q", out)
	}
}

func TestGenerate_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	path := filepath.Join(tmpDir, "d.psiz")

	if _, err := runCmd(t, "generate", "--n-stimuli", "2", "--n-trial", "5", "--output", path); err == nil {
		t.Error("expected error for too few stimuli")
	}
	if _, err := runCmd(t, "generate", "--n-stimuli", "10", "--n-trial", "5", "--format", "xml", "--output", path); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := runCmd(t, "generate", "--n-stimuli", "10", "--output", path); err == nil {
		t.Error("expected error for missing --n-trial")
	}
}

func TestProbabilitySimulateWorkflow(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	model := filepath.Join(tmpDir, "model.yaml")
	docket := filepath.Join(tmpDir, "docket.psiz")
	obs := filepath.Join(tmpDir, "obs.json")

	mustRun(t, "model", "random", "--n-stimuli", "8", "--n-dim", "2", "--n-group", "2", "--seed", "5", "--output", model)
	mustRun(t, "generate", "--n-stimuli", "8", "--n-trial", "6", "--n-reference", "3", "--n-select", "2",
		"--seed", "5", "--output", docket)

	out := mustRun(t, "probability", docket, "--model", model, "--json")
	var prob struct {
		ConfigIdx     []int       `json:"config_idx"`
		Probabilities [][]float64 `json:"probabilities"`
	}
	decodeJSON(t, out, &prob)
	if len(prob.Probabilities) != 6 {
		t.Fatalf("got %d rows, want 6", len(prob.Probabilities))
	}
	for i, row := range prob.Probabilities {
		if len(row) != 6 {
			t.Errorf("row %d has %d outcomes, want 6", i, len(row))
		}
		var sum float64
		for _, p := range row {
			sum += p
		}
		if sum < 1-1e-9 || sum > 1+1e-9 {
			t.Errorf("row %d sums to %g", i, sum)
		}
	}

	mustRun(t, "simulate", docket, "--model", model, "--group", "1", "--seed", "9", "--format", "json", "--output", obs,
		"--root", tmpDir)

	format, err := trialfile.DetectFormat(obs)
	if err != nil || format != trialfile.FormatV1 {
		t.Fatalf("DetectFormat = %v, %v, want json", format, err)
	}
	judged, err := trialfile.Load(obs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if judged.Kind() != "observations" || judged.NTrial() != 6 {
		t.Errorf("judged = %s with %d trials", judged.Kind(), judged.NTrial())
	}
	for i, g := range judged.GroupID() {
		if g != 1 {
			t.Errorf("trial %d group = %d, want 1", i, g)
		}
	}

	if _, err := runCmd(t, "probability", docket, "--model", model, "--sample", "2"); err == nil {
		t.Error("expected error for sample out of range")
	}

	out = mustRun(t, "likelihood", obs, "--model", model, "--json")
	var ll struct {
		LogLikelihood float64   `json:"log_likelihood"`
		Trials        []float64 `json:"trials"`
	}
	decodeJSON(t, out, &ll)
	if len(ll.Trials) != 6 {
		t.Fatalf("got %d trial scores, want 6", len(ll.Trials))
	}
	var total float64
	for i, v := range ll.Trials {
		if v > 0 {
			t.Errorf("trial %d log likelihood = %g, want <= 0", i, v)
		}
		total += v
	}
	if diff := total - ll.LogLikelihood; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("log_likelihood = %g, want sum %g", ll.LogLikelihood, total)
	}

	if _, err := runCmd(t, "likelihood", docket, "--model", model); err == nil {
		t.Error("expected error scoring an unjudged docket")
	}
}

func TestProbability_DecisionLog(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	model := filepath.Join(tmpDir, "model.yaml")
	docket := filepath.Join(tmpDir, "docket.psiz")

	mustRun(t, "model", "random", "--n-stimuli", "6", "--seed", "1", "--output", model)
	mustRun(t, "generate", "--n-stimuli", "6", "--n-trial", "4", "--seed", "1", "--output", docket)
	out := mustRun(t, "simulate", docket, "--model", model, "--seed", "2", "--output", filepath.Join(tmpDir, "obs.psiz"),
		"--root", tmpDir, "--log-level", "debug")
	if !strings.Contains(out, "Draws logged to") {
		t.Errorf("expected draw log path in output: %q", out)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, ".psiz", "decisions.jsonl"))
	if err != nil {
		t.Fatalf("expected decision log: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 4 {
		t.Errorf("decision log has %d lines, want one per trial", lines)
	}
}

func TestSubsetAndStack(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	a := filepath.Join(tmpDir, "a.psiz")
	b := filepath.Join(tmpDir, "b.psiz")
	sub := filepath.Join(tmpDir, "sub.psiz")
	stacked := filepath.Join(tmpDir, "stacked.psiz")

	mustRun(t, "generate", "--n-stimuli", "10", "--n-trial", "5", "--seed", "1", "--output", a)
	mustRun(t, "generate", "--n-stimuli", "10", "--n-trial", "3", "--n-reference", "4", "--seed", "2", "--output", b)

	mustRun(t, "subset", a, "--index", "0,2,2", "--output", sub)
	subTrials, err := trialfile.Load(sub)
	if err != nil {
		t.Fatalf("Load subset: %v", err)
	}
	orig, _ := trialfile.Load(a)
	if subTrials.NTrial() != 3 {
		t.Fatalf("subset has %d trials, want 3", subTrials.NTrial())
	}
	for i, src := range []int{0, 2, 2} {
		got, want := subTrials.StimulusSet()[i], orig.StimulusSet()[src]
		if len(got) != len(want) || got[0] != want[0] {
			t.Errorf("subset row %d = %v, want %v", i, got, want)
		}
	}

	if _, err := runCmd(t, "subset", a, "--index", "0,9", "--output", sub); err == nil {
		t.Error("expected error for out-of-range index")
	}
	if _, err := runCmd(t, "subset", a, "--index", "0,x", "--output", sub); err == nil {
		t.Error("expected error for malformed index")
	}

	out := mustRun(t, "stack", a, b, "--output", stacked, "--json")
	var st struct {
		NTrial      int `json:"n_trial"`
		ConfigCount int `json:"config_count"`
	}
	decodeJSON(t, out, &st)
	if st.NTrial != 8 || st.ConfigCount != 2 {
		t.Errorf("stack = %+v, want 8 trials in 2 configs", st)
	}
	all, err := trialfile.Load(stacked)
	if err != nil {
		t.Fatalf("Load stacked: %v", err)
	}
	if all.MaxNReference() != 4 {
		t.Errorf("MaxNReference = %d, want 4", all.MaxNReference())
	}
}

func TestStack_KindMismatch(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	model := filepath.Join(tmpDir, "model.yaml")
	docket := filepath.Join(tmpDir, "docket.psiz")
	obs := filepath.Join(tmpDir, "obs.psiz")

	mustRun(t, "model", "random", "--n-stimuli", "6", "--seed", "1", "--output", model)
	mustRun(t, "generate", "--n-stimuli", "6", "--n-trial", "3", "--seed", "1", "--output", docket)
	mustRun(t, "simulate", docket, "--model", model, "--seed", "1", "--output", obs, "--root", tmpDir)

	if _, err := runCmd(t, "stack", docket, obs, "--output", filepath.Join(tmpDir, "bad.psiz")); err == nil {
		t.Error("expected error stacking a docket with observations")
	}
}

func TestExportAndVerify(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	src := filepath.Join(tmpDir, "docket.psiz")
	dst := filepath.Join(tmpDir, "docket.arrow")

	mustRun(t, "generate", "--n-stimuli", "10", "--n-trial", "7", "--seed", "4", "--output", src)

	out := mustRun(t, "export", src, "--output", dst, "--json")
	var exp struct {
		From   string `json:"from"`
		NTrial int    `json:"n_trial"`
	}
	decodeJSON(t, out, &exp)
	if exp.From != "gzip" || exp.NTrial != 7 {
		t.Errorf("export = %+v", exp)
	}

	format, err := trialfile.DetectFormat(dst)
	if err != nil || format != trialfile.FormatArrow {
		t.Fatalf("DetectFormat = %v, %v, want arrow", format, err)
	}

	for _, path := range []string{src, dst} {
		out := mustRun(t, "verify", path)
		if !strings.HasPrefix(out, "OK: ") {
			t.Errorf("verify %s = %q", path, out)
		}
	}

	corrupt := filepath.Join(tmpDir, "corrupt.psiz")
	if err := os.WriteFile(corrupt, []byte("not a trial file"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "verify", corrupt); err == nil {
		t.Error("expected verify to fail on garbage")
	}
}

func TestStoreCommands(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	src := filepath.Join(tmpDir, "docket.psiz")
	restored := filepath.Join(tmpDir, "restored.psiz")

	mustRun(t, "generate", "--n-stimuli", "10", "--n-trial", "5", "--seed", "8", "--output", src)

	out := mustRun(t, "store", "save", src, "--name", "pilot", "--json")
	var info struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		TrialCount int    `json:"trial_count"`
	}
	decodeJSON(t, out, &info)
	if info.ID == "" || info.Name != "pilot" || info.TrialCount != 5 {
		t.Errorf("save = %+v", info)
	}

	home, _ := os.UserHomeDir()
	if _, err := os.Stat(filepath.Join(home, ".psiz", "psiz.db")); err != nil {
		t.Errorf("expected database under HOME: %v", err)
	}

	out = mustRun(t, "store", "list", "--json")
	var list struct {
		Count int `json:"count"`
	}
	decodeJSON(t, out, &list)
	if list.Count != 1 {
		t.Errorf("list count = %d, want 1", list.Count)
	}

	mustRun(t, "store", "load", info.ID, "--output", restored)
	orig, _ := trialfile.Load(src)
	back, err := trialfile.Load(restored)
	if err != nil {
		t.Fatalf("Load restored: %v", err)
	}
	if back.NTrial() != orig.NTrial() {
		t.Errorf("restored %d trials, want %d", back.NTrial(), orig.NTrial())
	}
	for i := range orig.StimulusSet() {
		if got, want := back.StimulusSet()[i], orig.StimulusSet()[i]; !equalRows(got, want) {
			t.Errorf("row %d = %v, want %v", i, got, want)
		}
	}

	mustRun(t, "store", "delete", "pilot")
	out = mustRun(t, "store", "list")
	if !strings.Contains(out, "No trial sets stored.") {
		t.Errorf("list after delete = %q", out)
	}
	if _, err := runCmd(t, "store", "delete", "pilot"); err == nil {
		t.Error("expected error deleting a missing set")
	}
}

func TestConfigCommands(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out := mustRun(t, "config", "get", "storage.format")
	if strings.TrimSpace(out) != "storage.format = gzip" {
		t.Errorf("get = %q", out)
	}

	mustRun(t, "config", "set", "simulation.seed", "42")
	out = mustRun(t, "config", "get", "simulation.seed", "--json")
	var got struct {
		Key   string  `json:"key"`
		Value float64 `json:"value"`
	}
	decodeJSON(t, out, &got)
	if got.Value != 42 {
		t.Errorf("simulation.seed = %v, want 42", got.Value)
	}

	path, _ := config.Path()
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Simulation.Seed != 42 {
		t.Errorf("saved seed = %d, want 42", cfg.Simulation.Seed)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"config", "set", "nope", "1"}},
		{"not a number", []string{"config", "set", "simulation.workers", "many"}},
		{"fails validation", []string{"config", "set", "generator.n_select", "5"}},
		{"bad format", []string{"config", "set", "storage.format", "xml"}},
		{"get unknown", []string{"config", "get", "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, tt.args...); err == nil {
				t.Errorf("psiz %s: expected error", strings.Join(tt.args, " "))
			}
		})
	}

	out = mustRun(t, "config", "list")
	if !strings.Contains(out, "simulation.seed:        42") {
		t.Errorf("list = %q", out)
	}
}

func TestParseInts(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "3", want: []int{3}},
		{in: "0, 2,2", want: []int{0, 2, 2}},
		{in: "1,,2", wantErr: true},
		{in: "a", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseInts(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseInts(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !equalRows(got, tt.want) {
			t.Errorf("parseInts(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func equalRows(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
