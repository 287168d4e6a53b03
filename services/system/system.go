// Package system assembles the tracker: one bus, one module registry, the
// modules and the shutdown coordinator, run together under an errgroup.
//
// A module that stops with an error (a mailbox overflow) is not restarted.
// Its error event makes the coordinator start a GENERIC shutdown, and the
// system stops once the coordinator has powered off or given up.
package system

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"assettracker/bus"
	"assettracker/drivers/gpioirq"
	"assettracker/services/app"
	"assettracker/services/config"
	"assettracker/services/debug"
	"assettracker/services/module"
	"assettracker/services/sensor"
	"assettracker/services/shutdown"
	"assettracker/services/ui"
	"assettracker/types"
)

const DefaultDebounce = 20 * time.Millisecond

// PendingReader reports which accelerometer interrupt latched.
// adxl362.Device satisfies it.
type PendingReader interface {
	Pending() (activity, inactivity bool, err error)
}

type Options struct {
	Config types.Config

	// Accel backs the ext-sensors layer. AccelIRQ, when set, is its
	// interrupt line; Accel must then also implement PendingReader.
	Accel    sensor.Accelerometer
	AccelIRQ gpioirq.IRQPin
	// RangeMax and TimeoutMax override the ext-sensors defaults.
	RangeMax   float64
	TimeoutMax float64

	// ButtonPins are active-low; pin i is button i+1.
	ButtonPins []gpioirq.IRQPin
	Debounce   time.Duration

	PowerOff func(shutdown.Report)
	Clock    clock.Clock
	Log      *zap.Logger
}

type runner interface {
	Run(ctx context.Context) error
}

type System struct {
	Bus         *bus.Bus
	Registry    *module.Registry
	Coordinator *shutdown.Coordinator
	Config      *config.Service
	Ext         *sensor.Ext

	irq     *gpioirq.Worker
	buttons *gpioirq.Buttons
	modules []runner
	log     *zap.Logger
}

// New wires every module to a fresh bus. Modules subscribe here, so nothing
// published once Run starts is missed.
func New(opts Options) (*System, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	cfg := opts.Config.WithDefaults()

	s := &System{
		Bus:      bus.NewBus(),
		Registry: module.NewRegistry(),
		irq:      gpioirq.NewWorker(0, opts.Clock),
		log:      opts.Log.Named("system"),
	}

	// The coordinator subscribes first so it sees every ack before any
	// other observer.
	s.Coordinator = shutdown.New(s.Bus.NewConnection("shutdown"), s.Registry, shutdown.Options{
		Timeout:       cfg.ShutdownTimeout,
		ForcePowerOff: cfg.ForcePowerOff,
		PowerOff:      opts.PowerOff,
		Clock:         opts.Clock,
		Log:           opts.Log,
	})

	var btns ui.Buttons
	if len(opts.ButtonPins) > 0 {
		s.buttons = gpioirq.NewButtons(s.irq, opts.Debounce, opts.ButtonPins...)
		btns = s.buttons
	}

	var ext sensor.ExtSensors
	if opts.Accel != nil {
		s.Ext = sensor.NewExt(opts.Accel, sensor.ExtOptions{
			RangeMax:   opts.RangeMax,
			TimeoutMax: opts.TimeoutMax,
			Log:        opts.Log,
		})
		ext = s.Ext
		if opts.AccelIRQ != nil {
			if err := s.watchAccel(opts.Accel, opts.AccelIRQ); err != nil {
				return nil, err
			}
		}
	}

	s.Config = config.New(s.Bus.NewConnection("config"), config.Options{
		Device:     cfg.Device,
		MailboxLen: cfg.MailboxLen,
		Log:        opts.Log,
	})
	s.modules = []runner{
		ui.New(s.Bus.NewConnection("ui"), s.Registry, ui.Options{
			MailboxLen: cfg.MailboxLen,
			Buttons:    btns,
			Clock:      opts.Clock,
			Log:        opts.Log,
		}),
		sensor.New(s.Bus.NewConnection("sensor"), s.Registry, sensor.Options{
			MailboxLen: cfg.MailboxLen,
			Ext:        ext,
			Clock:      opts.Clock,
			Log:        opts.Log,
		}),
		debug.New(s.Bus.NewConnection("debug"), s.Registry, debug.Options{
			Emulator: cfg.Emulator,
			Log:      opts.Log,
		}),
		s.Config,
		// app last: its Run publishes AppEvtStart.
		app.New(s.Bus.NewConnection("app"), s.Registry, app.Options{
			DataGetInterval: cfg.DataGetInterval,
			MailboxLen:      cfg.MailboxLen,
			Clock:           opts.Clock,
			Log:             opts.Log,
		}),
	}
	return s, nil
}

// watchAccel forwards latched activity and inactivity interrupts to the
// ext-sensors layer.
func (s *System) watchAccel(acc sensor.Accelerometer, pin gpioirq.IRQPin) error {
	pr, ok := acc.(PendingReader)
	if !ok {
		s.log.Warn("accelerometer interrupt ignored, device cannot report the cause")
		return nil
	}
	_, err := s.irq.Register("accel_int1", pin, gpioirq.EdgeRising, 0, false, func(gpioirq.Event) {
		act, inact, err := pr.Pending()
		if err != nil {
			s.log.Error("accelerometer status read failed", zap.Error(err))
			return
		}
		if act {
			s.Ext.Trigger(true)
		}
		if inact {
			s.Ext.Trigger(false)
		}
	})
	return err
}

// Run starts every module and blocks until the coordinator has finished or
// ctx is done. It returns the first module or coordinator error.
func (s *System) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error { return s.irq.Run(ctx) })
	g.Go(func() error {
		defer cancel()
		return s.Coordinator.Run(ctx)
	})
	for _, m := range s.modules {
		m := m
		g.Go(func() error { return m.Run(ctx) })
	}

	err := g.Wait()
	if s.buttons != nil {
		s.buttons.Close()
	}
	if err != nil {
		s.log.Error("system stopped", zap.Error(err))
	}
	return err
}

// Shutdown asks the coordinator to start a shutdown.
func (s *System) Shutdown(ctx context.Context, reason types.ShutdownReason) error {
	return s.Coordinator.Request(ctx, reason)
}
