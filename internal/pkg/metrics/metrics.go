package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const namespace = "seawatch"

var (
	// AuthFailures counts rejected credentials by internal reason
	// (expired, malformed, signature, missing, credentials).
	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of rejected credentials by reason.",
		},
		[]string{"reason"},
	)

	// RegistrySubscribers tracks live subscriptions (kind: vehicle/all).
	RegistrySubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_subscribers",
			Help:      "Number of live viewer subscriptions by kind.",
		},
		[]string{"kind"},
	)

	// TelemetryIngested counts ingest attempts by result (ok, malformed, unknown, error).
	TelemetryIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_ingested_total",
			Help:      "Total number of telemetry samples received by result.",
		},
		[]string{"result"},
	)

	// TelemetryDelivered counts samples enqueued to viewer sessions.
	TelemetryDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_delivered_total",
			Help:      "Total number of telemetry samples enqueued to viewers.",
		},
	)

	// CommandsForwarded counts commands by outcome (ok, failed, dropped, malformed).
	CommandsForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_forwarded_total",
			Help:      "Total number of commands forwarded to gateways by result.",
		},
		[]string{"result"},
	)

	// ForwardLatency records the duration of downstream command forwards.
	ForwardLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_forward_latency_seconds",
			Help:      "Latency of forwarding commands to gateways.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// AuditDropped counts audit records dropped on a full queue.
	AuditDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Total number of audit records dropped because the queue was full.",
		},
	)

	// AuditFailures counts failed audit writes per backend.
	AuditFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Total number of failed audit writes by backend.",
		},
		[]string{"backend"},
	)

	// PresenceOnline tracks broker clients whose last status was online.
	PresenceOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_presence_online",
			Help:      "Number of MQTT clients whose retained status is online.",
		},
	)

	// Sessions tracks viewer connections by lifecycle state.
	Sessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Number of viewer sessions by lifecycle state.",
		},
		[]string{"state"},
	)
)

// init registers the collectors with the controller-runtime registry, which
// also carries the client-go and process collectors.
func init() {
	metrics.Registry.MustRegister(
		AuthFailures,
		RegistrySubscribers,
		TelemetryIngested,
		TelemetryDelivered,
		CommandsForwarded,
		ForwardLatency,
		AuditDropped,
		AuditFailures,
		PresenceOnline,
		Sessions,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}
