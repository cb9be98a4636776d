package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fischp/unreal-engine-mcp/internal/protocol"
)

const (
	OutcomeSuccess = "success"
	OutcomeRemote  = "remote_error"

	// CommandOther labels command types the bridge plugin does not handle.
	CommandOther = "other"
)

var (
	registerOnce sync.Once

	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unrealmcp",
			Subsystem: "bridge",
			Name:      "dispatch_total",
			Help:      "Bridge commands dispatched, by final outcome.",
		},
		[]string{"command", "outcome"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "unrealmcp",
			Subsystem: "bridge",
			Name:      "dispatch_duration_seconds",
			Help:      "End-to-end dispatch duration including retries.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command", "outcome"},
	)
	dispatchAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "unrealmcp",
			Subsystem: "bridge",
			Name:      "dispatch_attempts",
			Help:      "Round-trip attempts used per dispatch.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		},
		[]string{"command"},
	)
	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unrealmcp",
			Subsystem: "bridge",
			Name:      "connect_attempts_total",
			Help:      "TCP connect attempts to the bridge.",
		},
		[]string{"result"},
	)
	peerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unrealmcp",
			Subsystem: "peer",
			Name:      "requests_total",
			Help:      "Requests served by the mock bridge peer.",
		},
		[]string{"command", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(dispatchTotal, dispatchDuration, dispatchAttempts, connectAttempts, peerRequests)
	})
}

// RecordDispatch records one finished dispatch. outcome is OutcomeSuccess,
// OutcomeRemote, or a failure kind name.
func RecordDispatch(command, outcome string, attempts int, duration time.Duration) {
	RegisterMetrics()
	command = commandLabel(command)
	dispatchTotal.WithLabelValues(command, outcome).Inc()
	dispatchDuration.WithLabelValues(command, outcome).Observe(duration.Seconds())
	dispatchAttempts.WithLabelValues(command).Observe(float64(attempts))
}

func RecordConnectAttempt(ok bool) {
	RegisterMetrics()
	result := "failure"
	if ok {
		result = "success"
	}
	connectAttempts.WithLabelValues(result).Inc()
}

func RecordPeerRequest(command string, success bool) {
	RegisterMetrics()
	peerRequests.WithLabelValues(commandLabel(command), strconv.FormatBool(success)).Inc()
}

// commandLabel keeps the command label set bounded; callers pass whatever
// type the user typed.
func commandLabel(command string) string {
	if protocol.IsKnownCommand(command) {
		return command
	}
	return CommandOther
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
