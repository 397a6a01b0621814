package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DevicesOnboarded counts devices that completed onboarding
	DevicesOnboarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "devices_onboarded_total",
			Help:      "Total number of devices onboarded",
		},
		[]string{"device_type"},
	)

	// PendingDevices tracks the current admission queue depth
	PendingDevices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "warden",
			Name:      "pending_devices",
			Help:      "Devices currently awaiting an operator decision",
		},
	)

	// AnomaliesDetected counts anomaly events by type and severity
	AnomaliesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "anomalies_detected_total",
			Help:      "Total number of anomaly events emitted",
		},
		[]string{"type", "severity"},
	)

	// TrustAdjustments counts trust score updates by reason
	TrustAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "trust_adjustments_total",
			Help:      "Total number of trust score adjustments",
		},
		[]string{"reason"},
	)

	// PolicyInstalls counts rule installer invocations by action
	PolicyInstalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "policy_installs_total",
			Help:      "Total number of policy rules installed",
		},
		[]string{"action", "origin"},
	)

	// TokensIssued counts session tokens handed out
	TokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "tokens_issued_total",
			Help:      "Total number of session tokens issued",
		},
		[]string{"outcome"},
	)

	// FlowSamples counts flow counter readings ingested from the data plane
	FlowSamples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Name:      "flow_samples_total",
			Help:      "Total number of flow samples ingested",
		},
		[]string{"switch_id"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Idempotent; safe to call from tests and main alike.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(DevicesOnboarded)
		prometheus.DefaultRegisterer.Register(PendingDevices)
		prometheus.DefaultRegisterer.Register(AnomaliesDetected)
		prometheus.DefaultRegisterer.Register(TrustAdjustments)
		prometheus.DefaultRegisterer.Register(PolicyInstalls)
		prometheus.DefaultRegisterer.Register(TokensIssued)
		prometheus.DefaultRegisterer.Register(FlowSamples)
	})
}
