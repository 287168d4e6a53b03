package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgTracker = `{
  "device": {
    "active_mode": true,
    "accelerometer_activity_threshold": 10,
    "accelerometer_inactivity_threshold": 5,
    "accelerometer_inactivity_timeout": 60
  },
  "mailbox_len": 10,
  "shutdown_timeout": "10s",
  "force_power_off": true,
  "data_get_interval": "2m"
}`

const cfgEmulator = `{
  "device": {
    "active_mode": true,
    "accelerometer_activity_threshold": 10,
    "accelerometer_inactivity_threshold": 5,
    "accelerometer_inactivity_timeout": 60
  },
  "shutdown_timeout": "5s",
  "data_get_interval": "30s",
  "emulator": true
}`

var embeddedConfigs = map[string][]byte{
	"tracker":  []byte(cfgTracker),
	"emulator": []byte(cfgEmulator),
}
