package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/authctl/internal/protocol"
	"github.com/danmuck/authctl/internal/protocol/machine"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"app", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "authctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "method", "path", "status"},
	)
	protocolRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authctl",
			Subsystem: "protocol",
			Name:      "runs_total",
			Help:      "Protocol runs by final state.",
		},
		[]string{"outcome"},
	)
	protocolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "authctl",
			Subsystem: "protocol",
			Name:      "run_duration_seconds",
			Help:      "Protocol run duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	protocolTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authctl",
			Subsystem: "protocol",
			Name:      "transitions_total",
			Help:      "State machine transitions.",
		},
		[]string{"from", "to"},
	)
	protocolAborts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authctl",
			Subsystem: "protocol",
			Name:      "aborts_total",
			Help:      "Protocol aborts by state and failure kind.",
		},
		[]string{"state", "kind"},
	)
	enrollRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authctl",
			Subsystem: "enroll",
			Name:      "requests_total",
			Help:      "Enrollment requests by result.",
		},
		[]string{"result"},
	)
	enrollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "authctl",
			Subsystem: "enroll",
			Name:      "request_duration_seconds",
			Help:      "Enrollment request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			protocolRuns, protocolDuration, protocolTransitions, protocolAborts,
			enrollRequests, enrollDuration,
		)
	})
}

func RecordHTTPRequest(app, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(app, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(app, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordProtocolRun counts a finished run under its final state name.
func RecordProtocolRun(final machine.State, duration time.Duration) {
	RegisterMetrics()
	outcome := final.String()
	protocolRuns.WithLabelValues(outcome).Inc()
	protocolDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordEnroll counts an enrollment attempt. result is one of
// "success", "rejected" or "error".
func RecordEnroll(result string, duration time.Duration) {
	RegisterMetrics()
	enrollRequests.WithLabelValues(result).Inc()
	enrollDuration.Observe(duration.Seconds())
}

// MachineObserver feeds machine transitions and aborts into the protocol
// counters.
type MachineObserver struct{}

var _ machine.Observer = MachineObserver{}

func (MachineObserver) Transition(from, to machine.State) {
	RegisterMetrics()
	protocolTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (MachineObserver) Aborted(from machine.State, reason error) {
	RegisterMetrics()
	protocolAborts.WithLabelValues(from.String(), protocol.Kind(reason)).Inc()
}
