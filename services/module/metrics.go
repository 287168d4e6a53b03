package module

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assettracker",
		Subsystem: "module",
		Name:      "messages_dispatched_total",
		Help:      "Messages handed to a module's state machine.",
	}, []string{"module"})

	overflowTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assettracker",
		Subsystem: "module",
		Name:      "mailbox_overflows_total",
		Help:      "Messages lost because a module mailbox was full.",
	}, []string{"module"})
)
