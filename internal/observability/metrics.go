package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	reportsCreatedTotal    *prometheus.CounterVec
	reportTransitionsTotal *prometheus.CounterVec
	staffIDsAllocatedTotal prometheus.Counter
	staffStatsCacheTotal   *prometheus.CounterVec
	realtimeEventsTotal    *prometheus.CounterVec
	realtimeClientsActive  prometheus.Gauge
	uploadLatencySeconds   prometheus.Histogram
	uploadRejectedTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusfix_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusfix_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusfix_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		reportsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusfix_reports_created_total",
			Help: "Reports filed, by priority.",
		}, []string{"priority"})

		reportTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusfix_report_transitions_total",
			Help: "Report status transitions, by source, target and actor role.",
		}, []string{"from", "to", "role"})

		staffIDsAllocatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusfix_staff_ids_allocated_total",
			Help: "Staff ids handed out by the staff id sequence.",
		})

		staffStatsCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusfix_staff_stats_cache_total",
			Help: "Staff statistics cache lookups, by result.",
		}, []string{"result"})

		realtimeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusfix_realtime_events_total",
			Help: "Realtime report events delivered to local subscribers, by type.",
		}, []string{"type"})

		realtimeClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campusfix_realtime_clients_active",
			Help: "Currently connected realtime subscribers.",
		})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campusfix_upload_latency_seconds",
			Help:    "Latency of proxied photo uploads.",
			Buckets: prometheus.DefBuckets,
		})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusfix_upload_rejected_total",
			Help: "Rejected photo uploads, by reason.",
		}, []string{"reason"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			reportsCreatedTotal,
			reportTransitionsTotal,
			staffIDsAllocatedTotal,
			staffStatsCacheTotal,
			realtimeEventsTotal,
			realtimeClientsActive,
			uploadLatencySeconds,
			uploadRejectedTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ReportsCreated exposes the report creation counter.
func ReportsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return reportsCreatedTotal
}

// ReportTransitions exposes the status transition counter.
func ReportTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return reportTransitionsTotal
}

// StaffIDsAllocated exposes the staff id allocation counter.
func StaffIDsAllocated() prometheus.Counter {
	RegisterMetrics()
	return staffIDsAllocatedTotal
}

// StaffStatsCache exposes the staff stats cache hit/miss counter.
func StaffStatsCache() *prometheus.CounterVec {
	RegisterMetrics()
	return staffStatsCacheTotal
}

// RealtimeEvents exposes the realtime event counter.
func RealtimeEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return realtimeEventsTotal
}

// RealtimeClientsActive exposes the connected subscriber gauge.
func RealtimeClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return realtimeClientsActive
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// UploadRejected exposes the rejected upload counter.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}
