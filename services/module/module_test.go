package module

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"assettracker/bus"
	"assettracker/errcode"
	"assettracker/types"
)

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

func TestRegistry_AssignsUniqueIDs(t *testing.T) {
	r := NewRegistry()
	ui := &Descriptor{Name: "ui", SupportsShutdown: true}
	dbg := &Descriptor{Name: "debug"}
	sensor := &Descriptor{Name: "sensor", SupportsShutdown: true}

	require.NoError(t, r.Start(ui))
	require.NoError(t, r.Start(dbg))
	require.NoError(t, r.Start(sensor))

	assert.NotEqual(t, ui.ID, dbg.ID)
	assert.NotEqual(t, dbg.ID, sensor.ID)
	assert.NotZero(t, ui.ID, "zero is reserved for modules that never started")

	got, ok := r.Lookup(sensor.ID)
	require.True(t, ok)
	assert.Equal(t, "sensor", got.Name)

	parts := r.Participants()
	require.Len(t, parts, 2, "debug does not support shutdown")
	assert.Equal(t, "ui", parts[0].Name)
	assert.Equal(t, "sensor", parts[1].Name)
}

func TestRegistry_RejectsDuplicateAndClosed(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Start(&Descriptor{Name: "ui"}))

	err := r.Start(&Descriptor{Name: "ui"})
	assert.Equal(t, errcode.DuplicateModule, errcode.Of(err))

	r.Close()
	err = r.Start(&Descriptor{Name: "late"})
	assert.Equal(t, errcode.RegistryClosed, errcode.Of(err))
}

// -----------------------------------------------------------------------------
// Mailbox + Dispatch
// -----------------------------------------------------------------------------

func TestMailbox_OverflowLatchesFault(t *testing.T) {
	mb := NewMailbox[int]("overflow-test", 2)
	before := testutil.ToFloat64(overflowTotal.WithLabelValues("overflow-test"))

	require.NoError(t, mb.Put(1))
	require.NoError(t, mb.Put(2))
	err := mb.Put(3)
	require.Error(t, err)
	assert.Equal(t, errcode.MailboxOverflow, errcode.Of(err))
	assert.Equal(t, before+1, testutil.ToFloat64(overflowTotal.WithLabelValues("overflow-test")))

	// Pending messages are not delivered once coordination is lost.
	_, err = mb.Get(context.Background())
	assert.Equal(t, errcode.MailboxOverflow, errcode.Of(err))

	select {
	case <-mb.Fault():
	default:
		t.Fatal("fault channel not closed")
	}
}

func TestMailbox_GetHonoursContext(t *testing.T) {
	mb := NewMailbox[int]("ctx-test", 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mb.Get(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDispatch_FIFO(t *testing.T) {
	mb := NewMailbox[int]("fifo-test", 16)
	for i := 1; i <= 10; i++ {
		require.NoError(t, mb.Put(i))
	}

	var got []int
	err := Dispatch(context.Background(), mb, func(m int) bool {
		got = append(got, m)
		return m == 10
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
	assert.Equal(t, float64(10), testutil.ToFloat64(dispatchedTotal.WithLabelValues("fifo-test")))
}

func TestDispatch_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	mb := NewMailbox[[2]int]("producers-test", 256)
	const perProducer = 50

	for p := 0; p < 4; p++ {
		p := p
		go func() {
			for i := 0; i < perProducer; i++ {
				_ = mb.Put([2]int{p, i})
			}
		}()
	}

	last := map[int]int{0: -1, 1: -1, 2: -1, 3: -1}
	seen := 0
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := Dispatch(ctx, mb, func(m [2]int) bool {
		require.Greater(t, m[1], last[m[0]], "producer %d reordered", m[0])
		last[m[0]] = m[1]
		seen++
		return seen == 4*perProducer
	})
	require.NoError(t, err)
	assert.Equal(t, 4*perProducer, seen)
}

func TestDispatch_StopsOnCancelAndReportsOverflow(t *testing.T) {
	mb := NewMailbox[int]("cancel-test", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, Dispatch(ctx, mb, func(int) bool { return false }))

	full := NewMailbox[int]("overflow-dispatch-test", 1)
	require.NoError(t, full.Put(1))
	require.Error(t, full.Put(2))
	err := Dispatch(context.Background(), full, func(int) bool { return false })
	assert.Equal(t, errcode.MailboxOverflow, errcode.Of(err))
}

// -----------------------------------------------------------------------------
// Route
// -----------------------------------------------------------------------------

func TestRoute_ConvertsAndEscalatesOverflow(t *testing.T) {
	b := bus.NewBus()
	conn := b.NewConnection("route-test")
	mb := NewMailbox[types.Event]("route-test", 1)

	var overflowed []error
	Route(conn, mb, func(ev bus.Event) (types.Event, bool) {
		if ev, ok := ev.(types.ModemEvent); ok {
			return ev, true
		}
		return nil, false
	}, func(err error) { overflowed = append(overflowed, err) }, types.FamilyModem.Filter(), types.FamilyCloud.Filter())

	b.Publish(types.CloudEvent{Type: types.CloudEvtConnected})
	assert.Equal(t, 0, mb.Len(), "conv rejected cloud events")

	b.Publish(types.ModemEvent{Type: types.ModemEvtLTEConnecting})
	assert.Equal(t, 1, mb.Len())
	assert.Empty(t, overflowed)

	b.Publish(types.ModemEvent{Type: types.ModemEvtLTEConnected})
	require.Len(t, overflowed, 1)
	assert.Equal(t, errcode.MailboxOverflow, errcode.Of(overflowed[0]))
}

func TestLogOverflow_PublishesErrorOnce(t *testing.T) {
	b := bus.NewBus()
	conn := b.NewConnection("observer")
	var errs int
	conn.Subscribe(types.FamilyUI.Filter(), func(ev bus.Event) {
		if types.UIEvtError.Matches(ev.(types.Event)) {
			errs++
		}
	})

	escalate := LogOverflow(zap.NewNop(), conn, types.NewUIError(errcode.MailboxOverflow))
	escalate(errcode.MailboxOverflow)
	escalate(errcode.MailboxOverflow)

	assert.Equal(t, 1, errs)
}
