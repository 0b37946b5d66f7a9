package core

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the generation path. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	invocations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	repairs     *prometheus.CounterVec
	agentRuns   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. Collectors
// already registered by another Metrics on the same registry are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cowrite_llm_invocations_total",
			Help: "Generation provider attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cowrite_llm_invocation_seconds",
			Help:    "Generation provider attempt latency.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"strategy"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cowrite_json_repairs_total",
			Help: "JSON repair calls by outcome.",
		}, []string{"outcome"}),
		agentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cowrite_agent_runs_total",
			Help: "Agent runtime calls by agent and outcome.",
		}, []string{"agent", "outcome"}),
	}
	if reg != nil {
		m.invocations = register(reg, m.invocations)
		m.latency = register(reg, m.latency)
		m.repairs = register(reg, m.repairs)
		m.agentRuns = register(reg, m.agentRuns)
	}
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeInvocation(strategy string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(strategy, outcome(err)).Inc()
	m.latency.WithLabelValues(strategy).Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeRepair(err error) {
	if m == nil {
		return
	}
	m.repairs.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) observeAgentRun(agent string, err error) {
	if m == nil {
		return
	}
	m.agentRuns.WithLabelValues(agent, outcome(err)).Inc()
}
