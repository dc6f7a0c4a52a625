package mcp

import (
	"fmt"
	"sync"
	"time"
)

// limiter is a token bucket: it holds up to burst tokens and refills at
// rate tokens per second.
type limiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time
}

func newLimiter(rate float64, burst int) *limiter {
	return &limiter{rate: rate, burst: float64(burst), tokens: float64(burst), now: time.Now}
}

func (l *limiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.last.IsZero() {
		l.tokens = min(l.burst, l.tokens+now.Sub(l.last).Seconds()*l.rate)
	}
	l.last = now

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// toolLimiters maps tool names to their rate limiters.
type toolLimiters map[string]*limiter

// newToolLimiters creates the default per-tool limits. Simulation and
// probability calls are the expensive ones.
func newToolLimiters() toolLimiters {
	return toolLimiters{
		"psiz_describe":    newLimiter(1.0, 10),      // 60/minute, burst 10
		"psiz_probability": newLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"psiz_simulate":    newLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"psiz_list":        newLimiter(1.0, 10),      // 60/minute, burst 10
	}
}

// check returns an error if toolName is rate limited. Tools without a
// configured limiter are always allowed.
func (tl toolLimiters) check(toolName string) error {
	l, ok := tl[toolName]
	if !ok {
		return nil
	}
	if !l.allow() {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}
	return nil
}
