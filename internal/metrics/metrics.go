// Package metrics defines and registers the Prometheus metrics of the courier
// tracking pipeline and its development ingest endpoint. It is the single
// source of truth for metric names, labels, and help strings.
//
// Metrics register with the default registry on package initialisation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "courier_tracking"

// ── Acquisition ───────────────────────────────────────────────────────────────

// PositionsTotal counts sensor readings by filter verdict.
// Label:
//   - verdict: "accepted", "rejected_accuracy", "rejected_noise", "rejected_invalid"
var PositionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "positions_total",
		Help:      "Sensor readings processed, by filter verdict.",
	},
	[]string{"verdict"},
)

// AcquisitionRetriesTotal counts tier fallbacks.
// Label:
//   - tier: the tier the retry switches to (e.g. "low_accuracy")
var AcquisitionRetriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "acquisition_retries_total",
		Help:      "Acquisition retries scheduled after a transient sensor error, by tier.",
	},
	[]string{"tier"},
)

// AcquisitionTerminalTotal counts sessions that ended in a terminal state.
// Label:
//   - state: "timed_out" or "error"
var AcquisitionTerminalTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "acquisition_terminal_total",
		Help:      "Acquisitions that reached a terminal state.",
	},
	[]string{"state"},
)

// ActiveSessions tracks the number of running tracking sessions.
var ActiveSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Tracking sessions currently running.",
	},
)

// ── Transmission ──────────────────────────────────────────────────────────────

// TransmissionsTotal counts transmission outcomes per position.
// Label:
//   - result: "sent" or "dropped"
var TransmissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transmissions_total",
		Help:      "Position transmissions, by final result after retries.",
	},
	[]string{"result"},
)

// TransmissionAttemptsTotal counts individual HTTP attempts, retries included.
var TransmissionAttemptsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transmission_attempts_total",
		Help:      "Individual transmission attempts, retries included.",
	},
)

// StatusPollsTotal counts delivery-status polls.
// Label:
//   - result: "ok", "terminal" or "error"
var StatusPollsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_polls_total",
		Help:      "Delivery status polls, by result.",
	},
	[]string{"result"},
)

// ── Estimation ────────────────────────────────────────────────────────────────

// ETAMinutes is the latest estimate in minutes.
var ETAMinutes = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "eta_minutes",
		Help:      "Most recent estimated minutes to arrival.",
	},
)

// ETAConfidence is the latest confidence percentage.
var ETAConfidence = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "eta_confidence_percent",
		Help:      "Confidence of the most recent arrival estimate.",
	},
)

// ── Ingest endpoint ───────────────────────────────────────────────────────────

// IngestEventsTotal counts tracking updates processed by the ingest endpoint.
// Label:
//   - result: "stored", "duplicate", "rejected" or "error"
var IngestEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_events_total",
		Help:      "Tracking updates handled by the ingest endpoint, by result.",
	},
	[]string{"result"},
)

// IngestQueueDepth tracks pending updates per dispatcher worker.
// Label:
//   - worker_id: numeric worker index
var IngestQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ingest_queue_depth",
		Help:      "Pending tracking updates in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
