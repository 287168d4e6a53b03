// Package ui implements the user-interface module: buttons in, indications
// out, driven by a three-level state machine (state, sub-state and sub-sub
// state) that tracks connectivity, mode and location activity.
package ui

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
	moduleName = "ui"

	// DefaultMailboxLen is the UI queue depth.
	DefaultMailboxLen = 10

	button1Mask = 1 << 0
)

// Buttons is the button driver. Init installs handler, which the driver
// calls with the current button states and the mask of buttons that
// changed.
type Buttons interface {
	Init(handler func(states, changed uint32)) error
}

var subscriptions = []types.Family{
	types.FamilyApp,
	types.FamilyData,
	types.FamilyModem,
	types.FamilyLocation,
	types.FamilyUtil,
	types.FamilyCloud,
}

type Options struct {
	MailboxLen int
	Buttons    Buttons
	Clock      clock.Clock
	Log        *zap.Logger
}

type Service struct {
	self    module.Descriptor
	conn    *bus.Connection
	reg     *module.Registry
	buttons Buttons
	mb      *module.Mailbox[types.Event]
	clk     clock.Clock
	boot    time.Time
	log     *zap.Logger

	// st is owned by the dispatch goroutine.
	st Composite
}

// New creates the UI module and subscribes it, so no event posted after New
// returns is missed even if Run has not started yet.
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
		self:    module.Descriptor{Name: moduleName, SupportsShutdown: true},
		conn:    conn,
		reg:     reg,
		buttons: opts.Buttons,
		mb:      module.NewMailbox[types.Event](moduleName, opts.MailboxLen),
		clk:     opts.Clock,
		boot:    opts.Clock.Now(),
		log:     opts.Log.Named(moduleName),
	}

	filters := make([]bus.Topic, 0, len(subscriptions))
	for _, f := range subscriptions {
		filters = append(filters, f.Filter())
	}
	module.Route(conn, s.mb, toMessage,
		module.LogOverflow(s.log, conn, types.NewUIError(errcode.MailboxOverflow)),
		filters...)
	return s
}

func toMessage(ev bus.Event) (types.Event, bool) {
	e, ok := ev.(types.Event)
	return e, ok
}

// Run dispatches messages until the module shuts down or ctx is cancelled.
// The module's subscriptions are dropped on return.
func (s *Service) Run(ctx context.Context) error {
	defer s.conn.Disconnect()
	err := module.Dispatch(ctx, s.mb, s.handle)
	if err != nil {
		s.log.Error("dispatch stopped", zap.Error(err))
	}
	return err
}

func (s *Service) handle(msg types.Event) bool {
	next, effects := Transition(s.st, msg, s.self, s.log)
	for _, e := range effects {
		s.apply(e)
	}
	s.st = next
	return next.State == StateShutdown
}

func (s *Service) apply(e Effect) {
	switch e := e.(type) {
	case Emit:
		s.conn.Publish(e.Event)
	case StartModule:
		if err := s.start(); err != nil {
			s.log.Error("failed starting module", zap.Error(err))
			cause := errcode.Of(err)
			if cause == errcode.Error {
				cause = errcode.StartFailed
			}
			s.conn.Publish(types.NewUIError(cause))
		}
	}
}

func (s *Service) start() error {
	if err := s.reg.Start(&s.self); err != nil {
		return err
	}
	if s.buttons == nil {
		return nil
	}
	if err := s.buttons.Init(s.onButtons); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "buttons.init", err)
	}
	return nil
}

// onButtons runs in the button driver's context.
func (s *Service) onButtons(states, changed uint32) {
	if changed&states&button1Mask == 0 {
		return
	}
	s.conn.Publish(types.NewUIButton(types.ButtonData{
		Number:    1,
		Timestamp: s.clk.Now().Sub(s.boot).Milliseconds(),
	}))
}
