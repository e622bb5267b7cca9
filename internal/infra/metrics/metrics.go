package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	DatagramsReceivedTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "fxarb_datagrams_received_total", Help: "Datagrams read from the feed"})
	ReceiveTimeoutsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "fxarb_receive_timeouts_total", Help: "Receive deadlines that expired without data"})
	DecodeErrorsTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "fxarb_decode_errors_total", Help: "Datagrams rejected by the frame decoder"})
	QuotesTotal            = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fxarb_quotes_total", Help: "Decoded quotes by outcome"}, []string{"outcome"})
	EdgesEvictedTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "fxarb_edges_evicted_total", Help: "Stale edges removed from the rate graph"})
	GraphNodes             = prometheus.NewGauge(prometheus.GaugeOpts{Name: "fxarb_graph_nodes", Help: "Currencies known to the rate graph"})
	GraphEdges             = prometheus.NewGauge(prometheus.GaugeOpts{Name: "fxarb_graph_edges", Help: "Live edges in the rate graph"})
	DetectionLatencyMs     = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "fxarb_detection_latency_ms", Help: "Cycle detection latency", Buckets: prometheus.ExponentialBuckets(0.01, 2, 16)})
	CyclesTotal            = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fxarb_cycles_total", Help: "Detection passes that extracted a cycle, by outcome"}, []string{"outcome"})
	InconsistentGraphTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "fxarb_inconsistent_graph_total", Help: "Detection passes abandoned on an inconsistent graph"})
	ReportsPublishedTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fxarb_reports_published_total", Help: "Arbitrage reports delivered, by sink and result"}, []string{"sink", "result"})
	LastMultiplier         = prometheus.NewGauge(prometheus.GaugeOpts{Name: "fxarb_last_multiplier", Help: "Realized multiplier of the latest arbitrage report"})
	WSClients              = prometheus.NewGauge(prometheus.GaugeOpts{Name: "fxarb_ws_clients", Help: "Connected websocket report subscribers"})
)

// Quote outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeDropped  = "dropped"
	OutcomeRejected = "rejected"
)

// Cycle outcomes.
const (
	CycleActionable    = "actionable"
	CycleNotActionable = "not_actionable"
	CycleArtifact      = "artifact"
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		DatagramsReceivedTotal, ReceiveTimeoutsTotal, DecodeErrorsTotal, QuotesTotal,
		EdgesEvictedTotal, GraphNodes, GraphEdges, DetectionLatencyMs,
		CyclesTotal, InconsistentGraphTotal, ReportsPublishedTotal, LastMultiplier, WSClients,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	// touch the vectors so the series exist before the first quote
	for _, o := range []string{OutcomeAccepted, OutcomeDropped, OutcomeRejected} {
		QuotesTotal.WithLabelValues(o)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
