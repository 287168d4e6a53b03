package shutdown

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assettracker",
		Subsystem: "shutdown",
		Name:      "requests_total",
		Help:      "Shutdown requests broadcast, by reason.",
	}, []string{"reason"})

	acksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assettracker",
		Subsystem: "shutdown",
		Name:      "acks_total",
		Help:      "Shutdown acknowledgements received, by outcome.",
	}, []string{"result"})

	moduleErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assettracker",
		Subsystem: "shutdown",
		Name:      "module_errors_total",
		Help:      "Module error events seen by the coordinator, by family and cause.",
	}, []string{"family", "cause"})

	timeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assettracker",
		Subsystem: "shutdown",
		Name:      "timeouts_total",
		Help:      "Shutdowns that gave up waiting for acknowledgements.",
	})
)

// Ack outcomes.
const (
	ackAccepted   = "accepted"
	ackDuplicate  = "duplicate"
	ackUnknown    = "unknown"
	ackUnexpected = "unexpected"
)
