package queue

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics is nil-safe: a queue built without a registerer records nothing.
type metrics struct {
	inflightGauge *prometheus.GaugeVec
	waitingGauge  *prometheus.GaugeVec
	tasks         *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		inflightGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cowrite_queue_inflight",
			Help: "Tasks currently running per queue.",
		}, []string{"queue"}),
		waitingGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cowrite_queue_waiting",
			Help: "Tasks waiting for a slot per queue.",
		}, []string{"queue"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cowrite_queue_tasks_total",
			Help: "Finished tasks per queue and outcome.",
		}, []string{"queue", "outcome"}),
	}
	m.inflightGauge = register(reg, m.inflightGauge)
	m.waitingGauge = register(reg, m.waitingGauge)
	m.tasks = register(reg, m.tasks)
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

func (m *metrics) inflight(queue string, delta float64) {
	if m != nil {
		m.inflightGauge.WithLabelValues(queue).Add(delta)
	}
}

func (m *metrics) waiting(queue string, delta float64) {
	if m != nil {
		m.waitingGauge.WithLabelValues(queue).Add(delta)
	}
}

func (m *metrics) finished(queue, outcome string) {
	if m != nil {
		m.tasks.WithLabelValues(queue, outcome).Inc()
	}
}
