// Package sensor implements the sensor module. It owns the ext-sensors
// boundary: it pushes the device configuration down to the accelerometer,
// turns movement triggers into bus events and reports peripheral failures
// as error events without stopping.
package sensor

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"assettracker/bus"
	"assettracker/errcode"
	"assettracker/services/module"
	"assettracker/types"
)

const (
	moduleName        = "sensor"
	DefaultMailboxLen = 10
)

type state uint8

const (
	stateInit state = iota
	stateRunning
	stateShutdown
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "STATE_INIT"
	case stateRunning:
		return "STATE_RUNNING"
	case stateShutdown:
		return "STATE_SHUTDOWN"
	}
	return "Unknown"
}

// message is either a bus event or a peripheral event.
type message struct {
	ev    types.Event
	ext   ExtEvent
	isExt bool
}

var subscriptions = []types.Family{
	types.FamilyApp,
	types.FamilyData,
	types.FamilyUtil,
}

type Options struct {
	MailboxLen int
	Ext        ExtSensors
	Clock      clock.Clock
	Log        *zap.Logger
}

type Service struct {
	self       module.Descriptor
	conn       *bus.Connection
	reg        *module.Registry
	ext        ExtSensors
	mb         *module.Mailbox[message]
	onOverflow func(error)
	clk        clock.Clock
	boot       time.Time
	log        *zap.Logger

	st      state
	started bool
}

// New creates the sensor module and subscribes it.
func New(conn *bus.Connection, reg *module.Registry, opts Options) *Service {
	if opts.MailboxLen <= 0 {
		opts.MailboxLen = DefaultMailboxLen
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	s := &Service{
		self: module.Descriptor{Name: moduleName, SupportsShutdown: true},
		conn: conn,
		reg:  reg,
		ext:  opts.Ext,
		mb:   module.NewMailbox[message](moduleName, opts.MailboxLen),
		clk:  opts.Clock,
		boot: opts.Clock.Now(),
		log:  opts.Log.Named(moduleName),
	}
	s.onOverflow = module.LogOverflow(s.log, conn, types.NewSensorError(errcode.MailboxOverflow))

	filters := make([]bus.Topic, 0, len(subscriptions))
	for _, f := range subscriptions {
		filters = append(filters, f.Filter())
	}
	module.Route(conn, s.mb, func(ev bus.Event) (message, bool) {
		e, ok := ev.(types.Event)
		return message{ev: e}, ok
	}, s.onOverflow, filters...)
	return s
}

func (s *Service) Run(ctx context.Context) error {
	defer s.conn.Disconnect()
	err := module.Dispatch(ctx, s.mb, s.handle)
	if err != nil {
		s.log.Error("dispatch stopped", zap.Error(err))
	}
	return err
}

func (s *Service) handle(m message) bool {
	switch s.st {
	case stateInit:
		s.onStateInit(m)
	case stateRunning:
		s.onStateRunning(m)
	case stateShutdown:
	default:
		s.log.Error("unknown state", zap.Stringer("state", s.st))
	}
	s.onAllStates(m)
	return s.st == stateShutdown
}

func (s *Service) setState(next state) {
	if next == s.st {
		return
	}
	s.log.Debug("state transition", zap.Stringer("from", s.st), zap.Stringer("to", next))
	s.st = next
}

func (s *Service) onStateInit(m message) {
	if !m.isExt && types.AppEvtStart.Matches(m.ev) {
		if err := s.start(); err != nil {
			s.fail(err, errcode.StartFailed)
		}
		s.setState(stateRunning)
	}
}

func (s *Service) onStateRunning(m message) {
	if m.isExt {
		s.onExt(m.ext)
		return
	}
	switch {
	case types.DataEvtConfigInit.Matches(m.ev), types.DataEvtConfigReady.Matches(m.ev):
		if cfg, ok := m.ev.(types.DataEvent).Config(); ok {
			s.applyConfig(cfg)
		}
	case types.AppEvtDataGet.Matches(m.ev):
		// No fuel gauge on this board.
		s.conn.Publish(types.NewSensorEvent(types.SensorEvtFuelGaugeNotSupported))
	}
}

func (s *Service) onAllStates(m message) {
	if s.st == stateShutdown || m.isExt || !types.UtilEvtShutdownRequest.Matches(m.ev) {
		return
	}
	if s.started {
		if err := s.ext.EnableTrigger(false); err != nil {
			s.log.Warn("disarming accelerometer on shutdown", zap.Error(err))
		}
	}
	s.conn.Publish(types.NewSensorShutdownReady(s.self.ID))
	s.setState(stateShutdown)
}

func (s *Service) start() error {
	if err := s.reg.Start(&s.self); err != nil {
		return err
	}
	if s.ext == nil {
		return &errcode.E{C: errcode.NotReady, Op: "sensor.start", Msg: "no ext sensors"}
	}
	if err := s.ext.Init(s.post); err != nil {
		return err
	}
	s.started = true
	return nil
}

// post runs in the peripheral's interrupt context.
func (s *Service) post(ev ExtEvent) {
	if err := s.mb.Put(message{ext: ev, isExt: true}); err != nil {
		s.onOverflow(err)
	}
}

func (s *Service) onExt(ev ExtEvent) {
	switch ev.Type {
	case ExtAccelActTrigger, ExtAccelInactTrigger:
		t := types.SensorEvtMovementActivityDetected
		if ev.Type == ExtAccelInactTrigger {
			t = types.SensorEvtMovementInactivityDetected
		}
		s.conn.Publish(types.NewSensorMovement(t, types.AccelData{
			Timestamp: s.clk.Now().Sub(s.boot).Milliseconds(),
			Values:    ev.Values,
		}))
	case ExtAccelError:
		s.log.Error("accelerometer error")
		s.conn.Publish(types.NewSensorError(errcode.DriverFailure))
	default:
		s.log.Error("unknown ext sensor event", zap.Uint8("type", uint8(ev.Type)))
	}
}

// applyConfig pushes thresholds and the inactivity timeout down. Movement
// triggers are only armed in passive mode.
func (s *Service) applyConfig(cfg types.DeviceConfig) {
	if !s.started {
		return
	}
	steps := []error{
		s.ext.SetThreshold(cfg.ActivityThreshold, true),
		s.ext.SetThreshold(cfg.InactivityThreshold, false),
		s.ext.SetTimeout(cfg.InactivityTimeout),
		s.ext.EnableTrigger(!cfg.ActiveMode),
	}
	for _, err := range steps {
		if err != nil {
			s.fail(err, errcode.DriverFailure)
		}
	}
}

// fail logs err and publishes its code, or fallback when err carries none.
func (s *Service) fail(err error, fallback errcode.Code) {
	s.log.Error("sensor failure", zap.Error(err))
	cause := errcode.Of(err)
	if cause == errcode.Error {
		cause = fallback
	}
	s.conn.Publish(types.NewSensorError(cause))
}
