package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "water_monitor_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "water_monitor_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Stream metrics
	ReadingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "water_monitor_readings_total",
			Help: "Total number of readings normalized from the sensor stream",
		},
	)

	ParseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "water_monitor_parse_errors_total",
			Help: "Total number of sensor messages that could not be normalized",
		},
		[]string{"reason"}, // reason: unrecognized, missing_value
	)

	ReadingsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "water_monitor_readings_dropped_total",
			Help: "Readings dropped because the pipeline was full",
		},
	)

	WaterLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "water_monitor_level_percent",
			Help: "Most recent water level reading",
		},
	)

	CurrentSeverity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "water_monitor_severity",
			Help: "Severity of the most recent reading (0 safe, 1 moderate, 2 warning, 3 hazard)",
		},
	)

	// Connection metrics
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "water_monitor_connection_state",
			Help: "Supervisor state (0 idle, 1 connecting, 2 connected, 3 disconnected, 4 failed)",
		},
	)

	ConnectAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "water_monitor_connect_attempts_total",
			Help: "Total number of transport open attempts",
		},
	)

	TransportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "water_monitor_transport_errors_total",
			Help: "Total number of transport failures",
		},
		[]string{"kind"}, // kind: timeout, error, close, open
	)

	// Alert metrics
	AlertDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "water_monitor_alert_decisions_total",
			Help: "Alert engine outcomes per severity",
		},
		[]string{"severity", "outcome"},
	)

	AlertDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "water_monitor_alert_dispatch_total",
			Help: "Alert dispatch results",
		},
		[]string{"severity", "status"}, // status: success, failed
	)

	AlertDispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "water_monitor_alert_dispatch_duration_seconds",
			Help:    "Time taken to deliver an alert to all notifiers",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// Display metrics
	DisplayClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "water_monitor_display_clients",
			Help: "Connected dashboard websocket clients",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "water_monitor_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
