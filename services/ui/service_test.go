package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assettracker/bus"
	"assettracker/errcode"
	"assettracker/services/module"
	"assettracker/types"
)

type fakeButtons struct {
	err     error
	handler func(states, changed uint32)
	ready   chan struct{}
}

func newFakeButtons(err error) *fakeButtons {
	return &fakeButtons{err: err, ready: make(chan struct{})}
}

func (f *fakeButtons) Init(h func(states, changed uint32)) error {
	if f.err != nil {
		return f.err
	}
	f.handler = h
	close(f.ready)
	return nil
}

func collect(t *testing.T, b *bus.Bus, f types.Family) <-chan types.UIEvent {
	t.Helper()
	out := make(chan types.UIEvent, 16)
	b.NewConnection("observer").Subscribe(f.Filter(), func(ev bus.Event) {
		if e, ok := types.Cast[types.UIEvent](ev); ok {
			out <- e
		}
	})
	return out
}

func next(t *testing.T, ch <-chan types.UIEvent) types.UIEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ui event")
		return types.UIEvent{}
	}
}

func runService(t *testing.T, s *Service) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return done
}

func TestService_StartThenShutdownAck(t *testing.T) {
	b := bus.NewBus()
	reg := module.NewRegistry()
	events := collect(t, b, types.FamilyUI)
	btn := newFakeButtons(nil)

	s := New(b.NewConnection(moduleName), reg, Options{Buttons: btn})
	done := runService(t, s)

	b.Publish(types.NewAppEvent(types.AppEvtStart))
	b.Publish(types.NewShutdownRequest(types.ReasonGeneric))

	ack := next(t, events)
	id, ok := ack.ShutdownReady()
	require.True(t, ok)

	parts := reg.Participants()
	require.Len(t, parts, 1)
	assert.Equal(t, parts[0].ID, id)
	assert.NotNil(t, btn.handler, "buttons initialised on start")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ui module did not stop after shutdown")
	}
}

func TestService_StartFailureReportsErrorAndKeepsRunning(t *testing.T) {
	b := bus.NewBus()
	reg := module.NewRegistry()
	events := collect(t, b, types.FamilyUI)

	s := New(b.NewConnection(moduleName), reg, Options{Buttons: newFakeButtons(errors.New("gpio busy"))})
	done := runService(t, s)

	b.Publish(types.NewAppEvent(types.AppEvtStart))
	failure := next(t, events)
	cause, ok := failure.Failure()
	require.True(t, ok)
	assert.Equal(t, errcode.DriverFailure, cause)

	// The state machine moved on regardless and still honours shutdown.
	b.Publish(types.NewShutdownRequest(types.ReasonFOTAUpdate))
	_, ok = next(t, events).ShutdownReady()
	assert.True(t, ok)
	assert.NoError(t, <-done)
}

func TestService_DuplicateStartReportsRegistryCode(t *testing.T) {
	b := bus.NewBus()
	reg := module.NewRegistry()
	require.NoError(t, reg.Start(&module.Descriptor{Name: moduleName}))
	events := collect(t, b, types.FamilyUI)

	s := New(b.NewConnection(moduleName), reg, Options{})
	done := runService(t, s)

	b.Publish(types.NewAppEvent(types.AppEvtStart))
	cause, ok := next(t, events).Failure()
	require.True(t, ok)
	assert.Equal(t, errcode.DuplicateModule, cause)

	b.Publish(types.NewShutdownRequest(types.ReasonGeneric))
	id, ok := next(t, events).ShutdownReady()
	require.True(t, ok)
	assert.Zero(t, id, "a module that never registered acks with the reserved ID")
	assert.NoError(t, <-done)
}

func TestService_ButtonPressPublishesTimestamp(t *testing.T) {
	b := bus.NewBus()
	events := collect(t, b, types.FamilyUI)
	btn := newFakeButtons(nil)
	clk := clock.NewMock()

	s := New(b.NewConnection(moduleName), module.NewRegistry(), Options{Buttons: btn, Clock: clk})
	done := runService(t, s)

	b.Publish(types.NewAppEvent(types.AppEvtStart))
	select {
	case <-btn.ready:
	case <-time.After(time.Second):
		t.Fatal("buttons not initialised")
	}

	// Release and other-button edges are ignored.
	clk.Add(1500 * time.Millisecond)
	btn.handler(0, button1Mask)
	btn.handler(1<<1, 1<<1)
	btn.handler(button1Mask, button1Mask)

	press, ok := next(t, events).Button()
	require.True(t, ok)
	assert.Equal(t, 1, press.Number)
	assert.Equal(t, int64(1500), press.Timestamp)

	b.Publish(types.NewShutdownRequest(types.ReasonGeneric))
	next(t, events)
	assert.NoError(t, <-done)
}

func TestService_OverflowEscalates(t *testing.T) {
	b := bus.NewBus()
	events := collect(t, b, types.FamilyUI)

	s := New(b.NewConnection(moduleName), module.NewRegistry(), Options{MailboxLen: 1})

	// Not running yet: the second event does not fit.
	b.Publish(types.ModemEvent{Type: types.ModemEvtLTEConnecting})
	b.Publish(types.ModemEvent{Type: types.ModemEvtLTEConnected})

	cause, ok := next(t, events).Failure()
	require.True(t, ok)
	assert.Equal(t, errcode.MailboxOverflow, cause)

	err := s.Run(context.Background())
	assert.Equal(t, errcode.MailboxOverflow, errcode.Of(err))
}

func TestService_StopsOnCancel(t *testing.T) {
	b := bus.NewBus()
	s := New(b.NewConnection(moduleName), module.NewRegistry(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}
