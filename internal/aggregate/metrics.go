package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Event outcomes recorded by the engine.
const (
	outcomeApplied   = "applied"
	outcomeSkipped   = "skipped"
	outcomeDecode    = "decode_error"
	outcomeOracle    = "oracle_failure"
	outcomeInvariant = "invariant_violation"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	Events      *prometheus.CounterVec
	OracleQuery *prometheus.HistogramVec
	Crosses     prometheus.Counter
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beanscope",
			Name:      "events_total",
			Help:      "Events seen by the engine by name and outcome.",
		}, []string{"event", "outcome"}),
		OracleQuery: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "beanscope",
			Name:      "oracle_query_seconds",
			Help:      "Latency of pinned-block price queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		Crosses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beanscope",
			Name:      "crosses_total",
			Help:      "Peg crosses recorded.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Events, m.OracleQuery, m.Crosses} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) event(name, outcome string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(name, outcome).Inc()
}
