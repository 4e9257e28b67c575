package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LeasesGranted counts leases granted per task type.
	LeasesGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wpilot",
			Name:      "leases_granted_total",
			Help:      "Total number of interface leases granted",
		},
		[]string{"task_type"},
	)

	// LeaseFailures counts failed lease requests by reason.
	LeaseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wpilot",
			Name:      "lease_failures_total",
			Help:      "Total number of failed lease requests",
		},
		[]string{"reason"},
	)

	// PendingRequests gauges the scheduler queue depth.
	PendingRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wpilot",
			Name:      "pending_requests",
			Help:      "Lease requests currently queued",
		},
	)

	// ModeSwitches counts mode/channel switch attempts per interface.
	ModeSwitches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wpilot",
			Name:      "mode_switches_total",
			Help:      "Total number of interface mode switch attempts",
		},
		[]string{"interface", "result"},
	)

	// DegradedInterfaces gauges quarantined adapters.
	DegradedInterfaces = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wpilot",
			Name:      "degraded_interfaces",
			Help:      "Interfaces currently quarantined as DEGRADED",
		},
	)

	// AttackPhases counts executed attack phases by phase and outcome.
	AttackPhases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wpilot",
			Name:      "attack_phases_total",
			Help:      "Total number of attack phases executed",
		},
		[]string{"phase", "outcome"},
	)

	// TargetsByState gauges the target table by campaign state.
	TargetsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wpilot",
			Name:      "targets",
			Help:      "Known targets by campaign state",
		},
		[]string{"state"},
	)

	// SnapshotWrites counts session snapshot persistence attempts.
	SnapshotWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wpilot",
			Name:      "snapshot_writes_total",
			Help:      "Total number of session snapshot writes",
		},
		[]string{"result"},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Idempotent; safe to call multiple times.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(LeasesGranted)
		prometheus.DefaultRegisterer.Register(LeaseFailures)
		prometheus.DefaultRegisterer.Register(PendingRequests)
		prometheus.DefaultRegisterer.Register(ModeSwitches)
		prometheus.DefaultRegisterer.Register(DegradedInterfaces)
		prometheus.DefaultRegisterer.Register(AttackPhases)
		prometheus.DefaultRegisterer.Register(TargetsByState)
		prometheus.DefaultRegisterer.Register(SnapshotWrites)
	})
}
