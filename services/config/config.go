// Package config resolves the tracker configuration and owns the device
// configuration at run time, announcing it to the other modules.
package config

import (
	"context"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"assettracker/bus"
	"assettracker/errcode"
	"assettracker/services/module"
	"assettracker/types"
)

// -----------------------------------------------------------------------------
// String constants
// -----------------------------------------------------------------------------

const serviceName = "config"

type ctxKey string

// CtxDeviceKey is the context key holding the device ID.
const CtxDeviceKey ctxKey = "device"

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// -----------------------------------------------------------------------------
// Loading
// -----------------------------------------------------------------------------

// Load decodes the embedded configuration of device. Embedded configs are
// JSON, which the YAML decoder reads as is. Keys that are absent keep their
// defaults.
func Load(device string) (types.Config, error) {
	const op = "config.load"
	if device == "" {
		return types.Config{}, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "missing device ID"}
	}
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return types.Config{}, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "no embedded config for device: " + device}
	}

	cfg := types.Config{ForcePowerOff: true}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return types.Config{}, errcode.Wrap(errcode.InvalidParams, op, err)
	}
	return cfg.WithDefaults(), nil
}

// LoadContext is Load for the device ID stored under CtxDeviceKey.
func LoadContext(ctx context.Context) (types.Config, error) {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	return Load(device)
}

// LoadFile overlays the YAML file at path onto base.
func LoadFile(path string, base types.Config) (types.Config, error) {
	const op = "config.load_file"
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Config{}, errcode.Wrap(errcode.InvalidParams, op, err)
	}
	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return types.Config{}, errcode.Wrap(errcode.InvalidParams, op, err)
	}
	return cfg.WithDefaults(), nil
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

const DefaultMailboxLen = 10

type message struct {
	ev     types.Event
	update types.DeviceConfig
	isUpd  bool
}

type Options struct {
	Device     types.DeviceConfig
	MailboxLen int
	Log        *zap.Logger
}

// Service publishes DataEvtConfigInit when the system starts and
// DataEvtConfigReady for every accepted update.
type Service struct {
	conn *bus.Connection
	mb   *module.Mailbox[message]
	log  *zap.Logger

	// cur is owned by the dispatch goroutine.
	cur types.DeviceConfig
}

func New(conn *bus.Connection, opts Options) *Service {
	if opts.MailboxLen <= 0 {
		opts.MailboxLen = DefaultMailboxLen
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	s := &Service{
		conn: conn,
		mb:   module.NewMailbox[message](serviceName, opts.MailboxLen),
		log:  opts.Log.Named(serviceName),
		cur:  opts.Device,
	}
	module.Route(conn, s.mb, func(ev bus.Event) (message, bool) {
		e, ok := ev.(types.Event)
		return message{ev: e}, ok
	}, module.LogOverflow(s.log, conn, nil), types.FamilyApp.Filter())
	return s
}

// Update replaces the device configuration. It does not block; the new
// configuration is announced from the service loop.
func (s *Service) Update(dev types.DeviceConfig) error {
	return s.mb.Put(message{update: dev, isUpd: true})
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
	switch {
	case m.isUpd:
		s.cur = m.update
		s.log.Info("device configuration updated", zap.Bool("active_mode", s.cur.ActiveMode))
		s.conn.Publish(types.NewDataConfigEvent(types.DataEvtConfigReady, s.cur))
	case types.AppEvtStart.Matches(m.ev):
		s.conn.Publish(types.NewDataConfigEvent(types.DataEvtConfigInit, s.cur))
	}
	return false
}
