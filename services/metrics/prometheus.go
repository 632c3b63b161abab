package metricsvc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmust/marktrack/core"
)

// Prometheus counts domain events on its own registry.
type Prometheus struct {
	registry    *prometheus.Registry
	rows        *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

var _ core.Metrics = (*Prometheus)(nil)

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marktrack",
			Name:      "ingest_rows_total",
			Help:      "Uploaded rows processed, by sheet kind and outcome.",
		}, []string{"kind", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marktrack",
			Name:      "complaint_transitions_total",
			Help:      "Complaint lifecycle transitions.",
		}, []string{"event"}),
	}
	p.registry.MustRegister(
		p.rows,
		p.transitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) IncRow(kind, status string) {
	p.rows.WithLabelValues(kind, status).Inc()
}

func (p *Prometheus) IncTransition(event string) {
	p.transitions.WithLabelValues(event).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
