// Package debug implements the debug module. It observes every event family,
// logs and counts what it sees, and on emulator builds stands in for the
// absent modem by announcing network connectivity at start.
//
// The module handles events on the publisher's goroutine and has no queue.
// It does not take part in shutdown.
package debug

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"assettracker/bus"
	"assettracker/errcode"
	"assettracker/services/module"
	"assettracker/types"
)

const moduleName = "debug"

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "assettracker",
	Subsystem: "debug",
	Name:      "events_total",
	Help:      "Events observed on the bus by family and type.",
}, []string{"family", "type"})

type Options struct {
	// Emulator announces EmulatorInitialized and EmulatorNetworkConnected
	// on start.
	Emulator bool
	Log      *zap.Logger
}

type Service struct {
	self     module.Descriptor
	conn     *bus.Connection
	reg      *module.Registry
	emulator bool
	log      *zap.Logger

	once sync.Once
}

func New(conn *bus.Connection, reg *module.Registry, opts Options) *Service {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	s := &Service{
		self:     module.Descriptor{Name: moduleName, SupportsShutdown: false},
		conn:     conn,
		reg:      reg,
		emulator: opts.Emulator,
		log:      opts.Log.Named(moduleName),
	}
	conn.Subscribe(bus.T(bus.MultiWild), s.onEvent)
	return s
}

// Run keeps the module subscribed until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	<-ctx.Done()
	s.conn.Disconnect()
	return nil
}

func (s *Service) onEvent(ev bus.Event) {
	e, ok := ev.(types.Event)
	if !ok {
		return
	}
	kind := e.Topic().At(e.Topic().Len() - 1)
	eventsTotal.WithLabelValues(string(e.Family()), toString(kind)).Inc()
	s.log.Debug("event", zap.String("family", string(e.Family())), zap.Any("type", kind))

	if f, ok := e.(types.Failure); ok {
		if cause, ok := f.Failure(); ok {
			s.log.Warn("module error", zap.String("family", string(e.Family())), zap.String("cause", string(cause)))
		}
	}

	if types.AppEvtStart.Matches(e) {
		s.once.Do(s.start)
	}
}

func (s *Service) start() {
	if err := s.reg.Start(&s.self); err != nil {
		s.log.Error("failed starting module", zap.Error(err))
		cause := errcode.Of(err)
		if cause == errcode.Error {
			cause = errcode.StartFailed
		}
		s.conn.Publish(types.NewDebugError(cause))
	}
	if s.emulator {
		s.conn.Publish(types.NewDebugEvent(types.DebugEvtEmulatorInitialized))
		s.conn.Publish(types.NewDebugEvent(types.DebugEvtEmulatorNetworkConnected))
	}
}

func toString(tok bus.Token) string {
	if s, ok := tok.(string); ok {
		return s
	}
	return "unknown"
}
