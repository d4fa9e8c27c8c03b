// Package metrics holds the Prometheus collectors of the inbox service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// IntakeTotal counts intake outcomes by kind (photo, problem_report) and response state.
	IntakeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rsapi",
		Subsystem: "inbox",
		Name:      "intake_total",
		Help:      "Submissions received, labeled by kind and response state.",
	}, []string{"kind", "state"})

	// CommandsTotal counts admin commands by command and result (ok, bad_request, error).
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rsapi",
		Subsystem: "inbox",
		Name:      "commands_total",
		Help:      "Admin inbox commands processed, labeled by command and result.",
	}, []string{"command", "result"})

	// CommandDurationSeconds is the time spent applying one admin command, lock wait included.
	CommandDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rsapi",
		Subsystem: "inbox",
		Name:      "command_duration_seconds",
		Help:      "Time to apply an admin inbox command.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"command"})

	// StorageInFlight is the number of photo storage operations currently running.
	StorageInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rsapi",
		Subsystem: "storage",
		Name:      "in_flight",
		Help:      "Photo storage operations currently holding a slot.",
	})

	// StorageRejectedTotal counts storage operations refused because no slot freed up in time.
	StorageRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rsapi",
		Subsystem: "storage",
		Name:      "busy_total",
		Help:      "Photo storage operations refused because all slots stayed busy.",
	})

	// NotificationsSentTotal counts review-result mails by result (sent, skipped, error).
	NotificationsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rsapi",
		Subsystem: "notify",
		Name:      "mails_total",
		Help:      "Review-result mails, labeled by result.",
	}, []string{"result"})

	// MonitorDroppedTotal counts operator messages dropped because the publish queue was full.
	MonitorDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rsapi",
		Subsystem: "monitor",
		Name:      "dropped_total",
		Help:      "Operator messages dropped on a full queue.",
	})
)

// Register registers the collectors with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			IntakeTotal,
			CommandsTotal,
			CommandDurationSeconds,
			StorageInFlight,
			StorageRejectedTotal,
			NotificationsSentTotal,
			MonitorDroppedTotal,
		)
	})
}
