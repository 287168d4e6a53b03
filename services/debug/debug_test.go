package debug

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assettracker/bus"
	"assettracker/errcode"
	"assettracker/services/module"
	"assettracker/types"
)

func observe(b *bus.Bus) *[]types.DebugEvent {
	var got []types.DebugEvent
	b.NewConnection("observer").Subscribe(types.FamilyDebug.Filter(), func(ev bus.Event) {
		if e, ok := types.Cast[types.DebugEvent](ev); ok {
			got = append(got, e)
		}
	})
	return &got
}

func TestDebug_EmulatorAnnouncesNetworkOnStart(t *testing.T) {
	b := bus.NewBus()
	reg := module.NewRegistry()
	got := observe(b)
	New(b.NewConnection(moduleName), reg, Options{Emulator: true})

	b.Publish(types.NewAppEvent(types.AppEvtStart))
	b.Publish(types.NewAppEvent(types.AppEvtStart))

	require.Len(t, *got, 2, "start handled once")
	assert.Equal(t, types.DebugEvtEmulatorInitialized, (*got)[0].Type)
	assert.Equal(t, types.DebugEvtEmulatorNetworkConnected, (*got)[1].Type)

	assert.Empty(t, reg.Participants(), "debug does not take part in shutdown")
}

func TestDebug_QuietOnHardware(t *testing.T) {
	b := bus.NewBus()
	got := observe(b)
	New(b.NewConnection(moduleName), module.NewRegistry(), Options{})

	b.Publish(types.NewAppEvent(types.AppEvtStart))
	assert.Empty(t, *got)
}

func TestDebug_StartFailureIsReported(t *testing.T) {
	b := bus.NewBus()
	reg := module.NewRegistry()
	reg.Close()
	got := observe(b)
	New(b.NewConnection(moduleName), reg, Options{})

	b.Publish(types.NewAppEvent(types.AppEvtStart))
	require.Len(t, *got, 1)
	cause, ok := (*got)[0].Failure()
	require.True(t, ok)
	assert.Equal(t, errcode.RegistryClosed, cause)
}

func TestDebug_CountsEveryFamily(t *testing.T) {
	b := bus.NewBus()
	s := New(b.NewConnection(moduleName), module.NewRegistry(), Options{})

	before := testutil.ToFloat64(eventsTotal.WithLabelValues("cloud", "fota_done"))
	b.Publish(types.CloudEvent{Type: types.CloudEvtFOTADone})
	b.Publish(types.NewSensorError(errcode.DriverFailure))
	assert.Equal(t, before+1, testutil.ToFloat64(eventsTotal.WithLabelValues("cloud", "fota_done")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(eventsTotal.WithLabelValues("sensor", "error")), 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))

	b.Publish(types.CloudEvent{Type: types.CloudEvtFOTADone})
	assert.Equal(t, before+1, testutil.ToFloat64(eventsTotal.WithLabelValues("cloud", "fota_done")), "unsubscribed after Run returns")
}
