// Package shutdown implements the coordinator of the cooperative shutdown
// handshake. It broadcasts one request, waits for an acknowledgement from
// every started module that supports shutdown, and only then powers off.
//
//	RUNNING_MODULES -> SHUTDOWN_REQUESTED -> ACK_RECEIVED... -> ALL_ACKED -> POWER_OFF
//
// A module that never acknowledges does not stall power-off forever: after
// Timeout the coordinator reports the missing modules and, when
// ForcePowerOff is set, powers off anyway.
package shutdown

import (
	"context"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"assettracker/bus"
	"assettracker/errcode"
	"assettracker/services/module"
	"assettracker/types"
)

const (
	serviceName = "shutdown"

	DefaultTimeout    = types.DefaultShutdownTimeout
	DefaultMailboxLen = 64
)

// Report describes a finished shutdown.
type Report struct {
	RequestID uuid.UUID
	Reason    types.ShutdownReason
	Acked     []module.Descriptor
	// Missing lists participants that did not acknowledge in time.
	Missing []module.Descriptor
	// Err holds one errcode.ShutdownTimeout error per missing module.
	Err        error
	PoweredOff bool
}

type Options struct {
	Timeout       time.Duration
	ForcePowerOff bool
	// PowerOff is called once, from Run, when the system may power off.
	PowerOff   func(Report)
	MailboxLen int
	Clock      clock.Clock
	Log        *zap.Logger
}

type phase uint8

const (
	phaseIdle phase = iota
	phaseWaiting
	phaseDone
)

type request struct {
	reason types.ShutdownReason
	reply  chan error
}

type Coordinator struct {
	conn *bus.Connection
	reg  *module.Registry
	opts Options
	mb   *module.Mailbox[types.Event]
	reqs chan request
	done chan Report
	log  *zap.Logger

	// Owned by Run.
	phase   phase
	id      uuid.UUID
	reason  types.ShutdownReason
	pending map[uint32]module.Descriptor
	acked   map[uint32]module.Descriptor
	timer   *clock.Timer
}

// New creates the coordinator and subscribes it to every family, so acks
// and automatic triggers posted before Run starts are kept.
func New(conn *bus.Connection, reg *module.Registry, opts Options) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
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
	c := &Coordinator{
		conn: conn,
		reg:  reg,
		opts: opts,
		mb:   module.NewMailbox[types.Event](serviceName, opts.MailboxLen),
		reqs: make(chan request),
		done: make(chan Report, 1),
		log:  opts.Log.Named(serviceName),
	}
	module.Route(conn, c.mb, relevant, module.LogOverflow(c.log, conn, nil), bus.T(bus.MultiWild))
	return c
}

// relevant keeps acks, module errors and FOTA completion.
func relevant(ev bus.Event) (types.Event, bool) {
	e, ok := ev.(types.Event)
	if !ok {
		return nil, false
	}
	if a, ok := e.(types.ShutdownAck); ok {
		if _, ok := a.ShutdownReady(); ok {
			return e, true
		}
	}
	if f, ok := e.(types.Failure); ok {
		if _, ok := f.Failure(); ok {
			return e, true
		}
	}
	return e, types.CloudEvtFOTADone.Matches(e)
}

// Request starts a shutdown. It returns once the request has been broadcast,
// or errcode.Busy when a shutdown is already under way.
func (c *Coordinator) Request(ctx context.Context, reason types.ShutdownReason) error {
	r := request{reason: reason, reply: make(chan error, 1)}
	select {
	case c.reqs <- r:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-r.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done delivers the report of the finished shutdown.
func (c *Coordinator) Done() <-chan Report { return c.done }

// Run drives the handshake. It returns nil after power-off or when ctx is
// done, and the report's error when the shutdown timed out, or its own
// mailbox overflowed, without ForcePowerOff.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.conn.Disconnect()
	defer func() {
		if c.timer != nil {
			c.timer.Stop()
		}
	}()

	for {
		select {
		case <-c.mb.Fault():
			_, err := c.mb.Get(ctx)
			c.log.Error("coordinator lost acknowledgements", zap.Error(err))
			return c.finish(c.abort(err))
		default:
		}

		var timeout <-chan time.Time
		if c.timer != nil {
			timeout = c.timer.C
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.mb.Fault():
			continue
		case r := <-c.reqs:
			r.reply <- c.begin(r.reason)
		case ev := <-c.mb.C():
			c.onEvent(ev)
		case <-timeout:
			c.timer = nil
			c.onTimeout()
		}

		if c.phase == phaseDone {
			rep := c.report()
			return c.finish(rep)
		}
	}
}

func (c *Coordinator) begin(reason types.ShutdownReason) error {
	if c.phase != phaseIdle {
		return &errcode.E{C: errcode.Busy, Op: "shutdown.request", Msg: "shutdown already requested"}
	}
	if !reason.Valid() {
		return &errcode.E{C: errcode.InvalidParams, Op: "shutdown.request", Msg: "unknown reason"}
	}

	c.phase = phaseWaiting
	c.id = uuid.New()
	c.reason = reason
	c.pending = map[uint32]module.Descriptor{}
	c.acked = map[uint32]module.Descriptor{}
	for _, d := range c.reg.Close() {
		c.pending[d.ID] = d
	}

	c.log.Info("shutdown requested",
		zap.Stringer("request_id", c.id),
		zap.Stringer("reason", reason),
		zap.Int("participants", len(c.pending)))
	requestsTotal.WithLabelValues(reason.String()).Inc()

	c.timer = c.opts.Clock.Timer(c.opts.Timeout)
	c.conn.Publish(types.NewShutdownRequest(reason))

	if len(c.pending) == 0 {
		c.phase = phaseDone
	}
	return nil
}

func (c *Coordinator) onEvent(ev types.Event) {
	if a, ok := ev.(types.ShutdownAck); ok {
		if id, ok := a.ShutdownReady(); ok {
			c.onAck(id, ev.Family())
			return
		}
	}

	if f, ok := ev.(types.Failure); ok {
		if cause, ok := f.Failure(); ok {
			c.onModuleError(ev.Family(), cause)
			return
		}
	}

	if c.phase == phaseIdle && types.CloudEvtFOTADone.Matches(ev) {
		c.log.Info("firmware update downloaded")
		_ = c.begin(types.ReasonFOTAUpdate)
	}
}

// onModuleError counts a module error. Modules keep running after their
// own errors; only a lost mailbox takes the system down.
func (c *Coordinator) onModuleError(from types.Family, cause errcode.Code) {
	moduleErrorsTotal.WithLabelValues(string(from), string(cause)).Inc()
	fields := []zap.Field{zap.String("family", string(from)), zap.String("cause", string(cause))}
	if cause != errcode.MailboxOverflow {
		c.log.Warn("module error", fields...)
		return
	}
	c.log.Error("module lost its mailbox", fields...)
	if c.phase == phaseIdle {
		_ = c.begin(types.ReasonGeneric)
	}
}

func (c *Coordinator) onAck(id uint32, from types.Family) {
	fields := []zap.Field{zap.Uint32("module_id", id), zap.String("family", string(from))}

	if c.phase != phaseWaiting {
		c.log.Warn("acknowledgement without a pending request", fields...)
		acksTotal.WithLabelValues(ackUnexpected).Inc()
		return
	}
	if d, ok := c.pending[id]; ok {
		delete(c.pending, id)
		c.acked[id] = d
		acksTotal.WithLabelValues(ackAccepted).Inc()
		c.log.Debug("module acknowledged", append(fields, zap.String("module", d.Name), zap.Int("pending", len(c.pending)))...)
		if len(c.pending) == 0 {
			c.phase = phaseDone
		}
		return
	}
	if _, ok := c.acked[id]; ok {
		c.log.Warn("duplicate acknowledgement", fields...)
		acksTotal.WithLabelValues(ackDuplicate).Inc()
		return
	}
	c.log.Warn("acknowledgement from unknown module", fields...)
	acksTotal.WithLabelValues(ackUnknown).Inc()
}

func (c *Coordinator) onTimeout() {
	if c.phase != phaseWaiting {
		return
	}
	timeoutsTotal.Inc()
	c.phase = phaseDone
}

func (c *Coordinator) report() Report {
	rep := Report{
		RequestID: c.id,
		Reason:    c.reason,
		Acked:     sorted(c.acked),
		Missing:   sorted(c.pending),
	}
	for _, d := range rep.Missing {
		rep.Err = multierr.Append(rep.Err, &errcode.E{
			C:   errcode.ShutdownTimeout,
			Op:  "shutdown.ack",
			Msg: d.Name,
		})
	}
	return rep
}

// abort ends the handshake early: with acks lost the barrier can no longer
// be trusted. A request still goes out so modules stop, and the report
// carries cause ahead of the missing modules.
func (c *Coordinator) abort(cause error) Report {
	if c.phase == phaseIdle {
		_ = c.begin(types.ReasonGeneric)
	}
	c.phase = phaseDone
	rep := c.report()
	rep.Err = multierr.Append(cause, rep.Err)
	return rep
}

func (c *Coordinator) finish(rep Report) error {
	fields := []zap.Field{
		zap.Stringer("request_id", rep.RequestID),
		zap.Int("acked", len(rep.Acked)),
	}
	if rep.Err == nil {
		c.log.Info("all modules acknowledged", fields...)
	} else {
		c.log.Error("shutdown timed out", append(fields, zap.Error(rep.Err))...)
	}

	if rep.Err == nil || c.opts.ForcePowerOff {
		rep.PoweredOff = true
		if c.opts.PowerOff != nil {
			c.opts.PowerOff(rep)
		}
	}
	c.done <- rep

	if !rep.PoweredOff {
		return rep.Err
	}
	return nil
}

func sorted(m map[uint32]module.Descriptor) []module.Descriptor {
	out := make([]module.Descriptor, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
