package agent

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for probability and simulation.
var (
	tracer = otel.Tracer("psiz.agent")
	meter  = otel.Meter("psiz.agent")
)

var (
	trialsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psiz_trials_scored_total",
		Help: "Trials whose outcome probabilities were computed, by container kind",
	}, []string{"kind"})

	outcomesDrawn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "psiz_outcomes_drawn_total",
		Help: "Outcomes drawn during simulation",
	})

	probabilityDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "psiz_probability_duration_seconds",
		Help:    "Duration of one probability computation",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
	})

	outcomeCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "psiz_outcome_cache_misses_total",
		Help: "Outcome sets enumerated because the engine had not seen the configuration",
	})
)

// OpenTelemetry instruments, created lazily.
var (
	probabilityLatency metric.Float64Histogram
	configsScored      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the otel instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		probabilityLatency, err = meter.Float64Histogram(
			"psiz_probability_duration_seconds",
			metric.WithDescription("Duration of outcome probability computations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		configsScored, err = meter.Int64Counter(
			"psiz_configs_scored_total",
			metric.WithDescription("Configuration groups scored"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startProbabilitySpan(ctx context.Context, kind string, nTrial, nConfig int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Probability",
		trace.WithAttributes(
			attribute.String("psiz.kind", kind),
			attribute.Int("psiz.n_trial", nTrial),
			attribute.Int("psiz.n_config", nConfig),
		),
	)
}

func startSimulateSpan(ctx context.Context, group, nTrial int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Agent.Simulate",
		trace.WithAttributes(
			attribute.Int("psiz.group_id", group),
			attribute.Int("psiz.n_trial", nTrial),
		),
	)
}

func recordProbability(ctx context.Context, kind string, nTrial, nConfig int, d time.Duration, success bool) {
	probabilityDuration.Observe(d.Seconds())
	if success {
		trialsScored.WithLabelValues(kind).Add(float64(nTrial))
	}

	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	)
	probabilityLatency.Record(ctx, d.Seconds(), attrs)
	configsScored.Add(ctx, int64(nConfig), attrs)
}
