// Package app implements the application module: it announces the start of
// the system, paces data sampling and takes part in shutdown.
package app

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"assettracker/bus"
	"assettracker/services/module"
	"assettracker/types"
)

const (
	moduleName        = "app"
	DefaultMailboxLen = 10
)

type Options struct {
	// DataGetInterval is the AppEvtDataGet period. Zero uses
	// types.DefaultDataGetInterval.
	DataGetInterval time.Duration
	MailboxLen      int
	Clock           clock.Clock
	Log             *zap.Logger
}

type Service struct {
	self     module.Descriptor
	conn     *bus.Connection
	reg      *module.Registry
	mb       *module.Mailbox[types.Event]
	clk      clock.Clock
	interval time.Duration
	log      *zap.Logger
}

func New(conn *bus.Connection, reg *module.Registry, opts Options) *Service {
	if opts.DataGetInterval <= 0 {
		opts.DataGetInterval = types.DefaultDataGetInterval
	}
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
		self:     module.Descriptor{Name: moduleName, SupportsShutdown: true},
		conn:     conn,
		reg:      reg,
		mb:       module.NewMailbox[types.Event](moduleName, opts.MailboxLen),
		clk:      opts.Clock,
		interval: opts.DataGetInterval,
		log:      opts.Log.Named(moduleName),
	}
	module.Route(conn, s.mb, func(ev bus.Event) (types.Event, bool) {
		e, ok := ev.(types.Event)
		return e, ok
	}, module.LogOverflow(s.log, conn, nil), types.FamilyUtil.Filter())
	return s
}

// Run registers the module, broadcasts AppEvtStart and then requests a data
// sample every interval until shutdown or ctx is done.
func (s *Service) Run(ctx context.Context) error {
	defer s.conn.Disconnect()

	if err := s.reg.Start(&s.self); err != nil {
		s.log.Error("failed starting module", zap.Error(err))
	}
	tick := s.clk.Ticker(s.interval)
	defer tick.Stop()

	s.conn.Publish(types.NewAppEvent(types.AppEvtStart))

	for {
		// A latched overflow wins over queued messages.
		select {
		case <-s.mb.Fault():
			_, err := s.mb.Get(ctx)
			s.log.Error("loop stopped", zap.Error(err))
			return err
		default:
		}

		select {
		case <-ctx.Done():
			s.log.Info("app module stopping")
			return nil
		case <-s.mb.Fault():
			continue
		case <-tick.C:
			s.conn.Publish(types.NewAppEvent(types.AppEvtDataGet))
		case msg := <-s.mb.C():
			if r, ok := msg.(types.UtilEvent); ok && types.UtilEvtShutdownRequest.Matches(r) {
				reason, _ := r.Reason()
				s.log.Info("shutdown requested", zap.Stringer("reason", reason))
				s.conn.Publish(types.NewAppShutdownReady(s.self.ID))
				return nil
			}
		}
	}
}
