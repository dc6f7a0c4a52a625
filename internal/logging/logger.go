// Package logging sets up psiz's stderr logger and the draw log.
//
// Operational messages go through log/slog. When the level is debug or
// trace, simulations also append one JSON line per drawn outcome to
// <dir>/decisions.jsonl so a run can be replayed and audited.
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace sits below Debug. The probability engine logs every scored
// row at this level.
const LevelTrace = slog.LevelDebug - 4

// DecisionsFile is the draw log's file name inside its directory.
const DecisionsFile = "decisions.jsonl"

var levels = map[string]slog.Level{
	"info":  slog.LevelInfo,
	"debug": slog.LevelDebug,
	"trace": LevelTrace,
}

// ParseLevel maps "info", "debug" or "trace", in any case, to a level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	if lvl, ok := levels[strings.ToLower(s)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// NewLogger returns a text logger writing to w at the named level.
func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: labelTrace,
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// labelTrace prints LevelTrace as TRACE instead of DEBUG-4.
func labelTrace(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

// Draw is one simulated outcome.
type Draw struct {
	Trial       int     `json:"trial"`
	Config      int     `json:"config"`
	Group       int     `json:"group"`
	Outcome     int     `json:"outcome"`
	Probability float64 `json:"probability"`
}

type drawRecord struct {
	Time  string `json:"time"`
	Event string `json:"event"`
	Draw
}

// DecisionLogger appends draws to a JSONL file. A nil *DecisionLogger
// records nothing, so callers never need to check before logging.
type DecisionLogger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewDecisionLogger opens dir/decisions.jsonl for append when level is
// debug or trace. At info, or when the file cannot be opened, it returns nil.
func NewDecisionLogger(dir string, level string) *DecisionLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, DecisionsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &DecisionLogger{file: f, enc: json.NewEncoder(f)}
}

// Enabled reports whether draws are recorded.
func (dl *DecisionLogger) Enabled() bool {
	return dl != nil && dl.file != nil
}

// LogDraw appends d as an "outcome_drawn" event stamped with the current time.
func (dl *DecisionLogger) LogDraw(d Draw) {
	if dl == nil {
		return
	}
	rec := drawRecord{
		Time:  time.Now().UTC().Format(time.RFC3339Nano),
		Event: "outcome_drawn",
		Draw:  d,
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return
	}
	_ = dl.enc.Encode(rec)
}

// Close closes the file. Later draws are dropped.
func (dl *DecisionLogger) Close() error {
	if dl == nil {
		return nil
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return nil
	}
	err := dl.file.Close()
	dl.file = nil
	return err
}
