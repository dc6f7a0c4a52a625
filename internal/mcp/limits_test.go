package mcp

import (
	"strings"
	"testing"
	"time"
)

func TestLimiter_Refill(t *testing.T) {
	now := time.Unix(0, 0)
	l := newLimiter(1.0, 2)
	l.now = func() time.Time { return now }

	if !l.allow() || !l.allow() {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.allow() {
		t.Fatal("third call should be limited")
	}

	now = now.Add(500 * time.Millisecond)
	if l.allow() {
		t.Error("half a token should not be enough")
	}

	now = now.Add(time.Second)
	if !l.allow() {
		t.Error("expected a refilled token")
	}
}

func TestLimiter_CapsAtBurst(t *testing.T) {
	now := time.Unix(0, 0)
	l := newLimiter(10.0, 3)
	l.now = func() time.Time { return now }

	l.allow()
	now = now.Add(time.Hour)

	allowed := 0
	for range 10 {
		if l.allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("allowed = %d after long idle, want burst 3", allowed)
	}
}

func TestToolLimiters_Check(t *testing.T) {
	tl := toolLimiters{"psiz_simulate": newLimiter(0, 1)}

	if err := tl.check("psiz_simulate"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	err := tl.check("psiz_simulate")
	if err == nil || !strings.Contains(err.Error(), "psiz_simulate") {
		t.Errorf("second call error = %v, want rate limit naming the tool", err)
	}
	if err := tl.check("unknown_tool"); err != nil {
		t.Errorf("unlimited tool: %v", err)
	}
}
