package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pdfannotator", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pdfannotator", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// ResyncTotal counts preview resyncs by outcome: ok, error, superseded, reverted.
	ResyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pdfannotator", Name: "resync_total", Help: "Preview resyncs by outcome."},
		[]string{"result"},
	)
	RemoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "pdfannotator", Name: "remote_call_duration_seconds", Help: "Latency of calls to the document service.", Buckets: prometheus.DefBuckets},
		[]string{"op"},
	)
	ResourcesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pdfannotator", Name: "preview_resources_created_total", Help: "Preview resources materialized by store."},
		[]string{"store"},
	)
	ResourcesReleased = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pdfannotator", Name: "preview_resources_released_total", Help: "Preview resources released by store."},
		[]string{"store"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "pdfannotator", Name: "active_sessions", Help: "Editing sessions currently held in memory."},
	)

	// DocServiceOps counts operations served by the reference document service.
	DocServiceOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pdfannotator", Name: "docservice_operations_total", Help: "Document service operations by op and status."},
		[]string{"op", "status"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ResyncTotal)
	reg.MustRegister(RemoteCallDuration)
	reg.MustRegister(ResourcesCreated)
	reg.MustRegister(ResourcesReleased)
	reg.MustRegister(ActiveSessions)
}

// RegisterDocServiceCollectors registers the collectors used by cmd/docservice.
func RegisterDocServiceCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(DocServiceOps)
}
