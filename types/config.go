package types

import "time"

// DeviceConfig is the runtime configuration shared with modules through
// DataEvtConfigInit / DataEvtConfigReady.
type DeviceConfig struct {
	// ActiveMode selects the active (true) or passive (false) sub-state.
	ActiveMode bool `yaml:"active_mode"`
	// Accelerometer thresholds in m/s².
	ActivityThreshold   float64 `yaml:"accelerometer_activity_threshold"`
	InactivityThreshold float64 `yaml:"accelerometer_inactivity_threshold"`
	// InactivityTimeout in seconds.
	InactivityTimeout float64 `yaml:"accelerometer_inactivity_timeout"`
}

// Config is the process-level configuration.
type Config struct {
	Device DeviceConfig `yaml:"device"`

	// MailboxLen is the per-module mailbox capacity.
	MailboxLen int `yaml:"mailbox_len"`
	// ShutdownTimeout bounds how long the coordinator waits for acks.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// ForcePowerOff powers off after a shutdown timeout even though some
	// modules never acknowledged.
	ForcePowerOff bool `yaml:"force_power_off"`
	// DataGetInterval is the period of AppEvtDataGet broadcasts.
	DataGetInterval time.Duration `yaml:"data_get_interval"`
	// Emulator marks builds without a modem.
	Emulator bool `yaml:"emulator"`
}

const (
	DefaultMailboxLen      = 10
	DefaultShutdownTimeout = 10 * time.Second
	DefaultDataGetInterval = 2 * time.Minute
)

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	if c.MailboxLen <= 0 {
		c.MailboxLen = DefaultMailboxLen
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.DataGetInterval <= 0 {
		c.DataGetInterval = DefaultDataGetInterval
	}
	return c
}
