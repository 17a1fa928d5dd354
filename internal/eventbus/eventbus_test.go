package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateEnvelope(t *testing.T, eventType string) *Envelope {
	t.Helper()
	ev, err := NewEnvelope(eventType, "test", 5, GateEvent{
		GateID: "g-1",
		Format: "nether",
		Origin: vec.New(1, 64, -3),
		Facing: "east",
	})
	require.NoError(t, err)
	return ev
}

func TestMemoryBusDeliversFilteredEvents(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	got := make(chan *Envelope, 4)
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventGateOpened}}, func(ctx context.Context, ev *Envelope) {
		got <- ev
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), gateEnvelope(t, EventGateBuilt)))
	require.NoError(t, bus.Publish(context.Background(), gateEnvelope(t, EventGateOpened)))

	select {
	case ev := <-got:
		assert.Equal(t, EventGateOpened, ev.EventType)
		var payload GateEvent
		require.NoError(t, ev.Decode(&payload))
		assert.Equal(t, vec.New(1, 64, -3), payload.Origin)
		assert.NotEmpty(t, ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("событие не доставлено")
	}

	select {
	case ev := <-got:
		t.Fatalf("лишнее событие %s", ev.EventType)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)

	calls := make(chan struct{}, 4)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		calls <- struct{}{}
	})
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), gateEnvelope(t, EventGateClosed)))
	require.NoError(t, bus.Close())
	assert.Len(t, calls, 0)
	assert.Equal(t, uint64(1), bus.Metrics().Published)
}

func TestMemoryBusCloseDrainsAndRejects(t *testing.T) {
	bus := NewMemoryBus(8)
	delivered := make(chan struct{}, 8)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		delivered <- struct{}{}
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), gateEnvelope(t, EventGateBuilt)))
	}
	require.NoError(t, bus.Close())
	assert.Len(t, delivered, 3, "Close ждёт обработчиков")
	assert.Equal(t, uint64(3), bus.Metrics().Consumed)

	err = bus.Publish(context.Background(), gateEnvelope(t, EventGateBuilt))
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.True(t, errors.Is(err, ErrClosed))
	assert.NoError(t, bus.Close(), "повторное закрытие")
}

func TestFilterMatching(t *testing.T) {
	ev := &Envelope{EventType: EventGateBuilt, Source: "portal"}
	assert.True(t, matchFilter(ev, Filter{}))
	assert.True(t, matchFilter(ev, Filter{Types: GateEventTypes}))
	assert.False(t, matchFilter(ev, Filter{Sources: []string{"api"}}))
}

func TestJetStreamSubjects(t *testing.T) {
	assert.Equal(t, "events.gate.built", Subject(EventGateBuilt))
	assert.Equal(t, "events.gate.opened", subjectFor(Filter{Types: []string{EventGateOpened}}))
	assert.Equal(t, "events.>", subjectFor(Filter{Types: GateEventTypes}))
	assert.NotContains(t, durableName(Filter{Types: []string{EventGateOpened}}), ".")
}

// statsBus шина с заданной статистикой для проверки экспортёра
type statsBus struct {
	MemoryBus
	stats Stats
}

func (s *statsBus) Metrics() Stats { return s.stats }

func TestMetricsExporterAddsDeltas(t *testing.T) {
	bus := &statsBus{stats: Stats{Published: 5, Consumed: 3, Dropped: 1, InFlight: 2}}
	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	me.collect()
	assert.Equal(t, 5.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 2.0, testutil.ToFloat64(me.inflight))

	bus.stats = Stats{Published: 8, Consumed: 3, Dropped: 1}
	me.collect()
	assert.Equal(t, 8.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 3.0, testutil.ToFloat64(me.consumed))
	assert.Equal(t, 0.0, testutil.ToFloat64(me.inflight))
}

func TestGlobalPublishWithoutBus(t *testing.T) {
	Init(nil)
	assert.NoError(t, Publish(context.Background(), &Envelope{EventType: EventGateBuilt}))

	bus := NewMemoryBus(2)
	defer bus.Close()
	Init(bus)
	defer Init(nil)
	require.NoError(t, Publish(context.Background(), gateEnvelope(t, EventGateDestroyed)))
	assert.Same(t, bus, Global())
}
