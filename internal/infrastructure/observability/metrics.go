package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry        *prometheus.Registry
	ActiveCaptures  prometheus.Gauge
	BytesIngested   *prometheus.CounterVec
	ExchangesTotal  prometheus.Counter
	BudgetBreaches  prometheus.Counter
	StepFailures    *prometheus.CounterVec
	CapturesByState *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveCaptures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scoop",
			Name:      "active_captures",
			Help:      "Number of captures currently in flight",
		}),
		BytesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoop",
			Name:      "bytes_ingested_total",
			Help:      "Raw bytes ingested from the proxy transport",
		}, []string{"direction"}),
		ExchangesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scoop",
			Name:      "exchanges_total",
			Help:      "Exchanges assembled from intercepted traffic",
		}),
		BudgetBreaches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scoop",
			Name:      "budget_breaches_total",
			Help:      "Captures terminated early by the size budget",
		}),
		StepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoop",
			Name:      "step_failures_total",
			Help:      "Pipeline step failures by step name",
		}, []string{"step"}),
		CapturesByState: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoop",
			Name:      "captures_total",
			Help:      "Finished captures by terminal state",
		}, []string{"state"}),
	}
	r.MustRegister(m.ActiveCaptures, m.BytesIngested, m.ExchangesTotal, m.BudgetBreaches, m.StepFailures, m.CapturesByState)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
