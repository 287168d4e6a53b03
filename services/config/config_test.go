package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assettracker/bus"
	"assettracker/errcode"
	"assettracker/types"
)

func TestLoad_EmbeddedJSON(t *testing.T) {
	// Override lookup for this test.
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "bench" {
			return nil, false
		}
		return []byte(`{
  "device": {"active_mode": false, "accelerometer_activity_threshold": 12.5},
  "shutdown_timeout": "3s",
  "emulator": true
}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	cfg, err := LoadContext(context.WithValue(context.Background(), CtxDeviceKey, "bench"))
	require.NoError(t, err)

	assert.False(t, cfg.Device.ActiveMode)
	assert.Equal(t, 12.5, cfg.Device.ActivityThreshold)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.Emulator)
	assert.True(t, cfg.ForcePowerOff, "absent keys keep their defaults")
	assert.Equal(t, types.DefaultMailboxLen, cfg.MailboxLen)
	assert.Equal(t, types.DefaultDataGetInterval, cfg.DataGetInterval)
}

func TestLoad_ShippedDevices(t *testing.T) {
	for device := range embeddedConfigs {
		cfg, err := Load(device)
		require.NoError(t, err, device)
		assert.Positive(t, cfg.Device.ActivityThreshold, device)
		assert.Positive(t, cfg.ShutdownTimeout, device)
	}

	cfg, err := Load("tracker")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 2*time.Minute, cfg.DataGetInterval)
}

func TestLoad_MissingDevice(t *testing.T) {
	_, err := LoadContext(context.Background())
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	_, err = Load("unknown-device")
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
}

func TestLoad_Malformed(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(string) ([]byte, bool) { return []byte(`{"shutdown_timeout": "soon"}`), true }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	_, err := Load("any")
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
}

func TestLoadFile_Overlay(t *testing.T) {
	base, err := Load("tracker")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device:\n  active_mode: false\nforce_power_off: false\n"), 0o600))

	cfg, err := LoadFile(path, base)
	require.NoError(t, err)
	assert.False(t, cfg.Device.ActiveMode)
	assert.False(t, cfg.ForcePowerOff)
	assert.Equal(t, base.Device.ActivityThreshold, cfg.Device.ActivityThreshold, "untouched keys survive the overlay")
	assert.Equal(t, base.ShutdownTimeout, cfg.ShutdownTimeout)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), base)
	assert.Error(t, err)
}

func TestService_AnnouncesConfig(t *testing.T) {
	b := bus.NewBus()
	got := make(chan types.DataEvent, 4)
	b.NewConnection("observer").Subscribe(types.FamilyData.Filter(), func(ev bus.Event) {
		if e, ok := types.Cast[types.DataEvent](ev); ok {
			got <- e
		}
	})

	initial := types.DeviceConfig{ActiveMode: true, ActivityThreshold: 10}
	svc := New(b.NewConnection(serviceName), Options{Device: initial})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	b.Publish(types.NewAppEvent(types.AppEvtStart))
	ev := <-got
	assert.Equal(t, types.DataEvtConfigInit, ev.Type)
	cfg, ok := ev.Config()
	require.True(t, ok)
	assert.Equal(t, initial, cfg)

	passive := types.DeviceConfig{ActiveMode: false, ActivityThreshold: 8}
	require.NoError(t, svc.Update(passive))
	ev = <-got
	assert.Equal(t, types.DataEvtConfigReady, ev.Type)
	cfg, _ = ev.Config()
	assert.Equal(t, passive, cfg)

	cancel()
	assert.NoError(t, <-done)
}
