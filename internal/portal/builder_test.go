package portal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/annel0/mmo-gates/internal/eventbus"
	"github.com/annel0/mmo-gates/internal/gate"
	"github.com/annel0/mmo-gates/internal/gate/catalog"
	"github.com/annel0/mmo-gates/internal/metrics"
	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world"
	"github.com/annel0/mmo-gates/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const netherGate = `X=obsidian
-=obsidian

XXXX
X..X
-..-
X*.X
XXXX
`

type fixture struct {
	world   *world.World
	catalog *catalog.Catalog
	format  *gate.Format
	store   *MemoryStore
	bus     *eventbus.MemoryBus
	events  chan *eventbus.Envelope
	metrics *metrics.GateMetrics
	builder *Builder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := block.NewDefaultRegistry()
	f, err := gate.ParseString("nether", netherGate, registry)
	require.NoError(t, err)

	cat := catalog.New()
	require.NoError(t, cat.Add(f))

	fx := &fixture{
		world:   world.New(registry, world.DefaultMinY, world.DefaultMaxY),
		catalog: cat,
		format:  f,
		store:   NewMemoryStore(),
		bus:     eventbus.NewMemoryBus(64),
		events:  make(chan *eventbus.Envelope, 64),
		metrics: metrics.New("test", prometheus.NewRegistry()),
	}
	t.Cleanup(func() { fx.bus.Close() })

	_, err = fx.bus.Subscribe(context.Background(), eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		fx.events <- ev
	})
	require.NoError(t, err)

	fx.builder = fx.newBuilder()
	return fx
}

func (fx *fixture) newBuilder() *Builder {
	return NewBuilder(fx.world, fx.catalog, Options{Store: fx.store, Bus: fx.bus, Metrics: fx.metrics})
}

// place ставит блоки формата и возвращает позицию блока за табличкой
func (fx *fixture) place(t *testing.T, origin vec.Vec3, facing gate.Facing) vec.Vec3 {
	t.Helper()
	tr := gate.NewTransform(facing, false)
	for _, c := range fx.format.Cells() {
		id := block.ObsidianBlockID
		if c.Role == gate.RoleIris {
			id = block.AirBlockID
		}
		require.NoError(t, fx.world.SetBlock(origin.Add(tr.ToWorld(c.Vec)), id))
	}
	return origin.Add(tr.ToWorld(fx.format.ControlCells()[0]))
}

func (fx *fixture) nextEvent(t *testing.T) *eventbus.Envelope {
	t.Helper()
	select {
	case ev := <-fx.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("событие не получено")
		return nil
	}
}

func TestBuildRegistersPortal(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	anchor := fx.place(t, vec.New(0, 64, 0), gate.East)

	p, err := fx.builder.Build(ctx, anchor, gate.East)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 1, fx.builder.Len())

	found, role, ok := fx.builder.Lookup(anchor)
	require.True(t, ok)
	assert.Same(t, p, found)
	assert.Equal(t, gate.RoleFrame, role, "управляющий блок входит в рамку")

	exit := p.Instance.Exit()
	found, role, ok = fx.builder.Lookup(exit)
	require.True(t, ok)
	assert.Equal(t, gate.RoleIris, role)

	sizes := fx.builder.IndexSize()
	assert.Equal(t, 14, sizes[gate.RoleFrame])
	assert.Equal(t, 6, sizes[gate.RoleIris])
	assert.Equal(t, 2, sizes[gate.RoleControl])

	records, err := fx.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, p.ID, records[0].ID)
	assert.Equal(t, "nether", records[0].Format)

	ev := fx.nextEvent(t)
	assert.Equal(t, eventbus.EventGateBuilt, ev.EventType)
	var payload eventbus.GateEvent
	require.NoError(t, ev.Decode(&payload))
	assert.Equal(t, p.ID, payload.GateID)

	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Matches.WithLabelValues("matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Gates))
}

func TestBuildNoMatch(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.world.SetBlock(vec.New(0, 64, 0), block.ObsidianBlockID))

	_, err := fx.builder.Build(context.Background(), vec.New(0, 64, 0), gate.North)
	assert.True(t, errors.Is(err, gate.ErrNoMatch))
	assert.Equal(t, 0, fx.builder.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Matches.WithLabelValues("no_match")))
}

func TestBuildTwiceConflicts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	anchor := fx.place(t, vec.New(10, 70, 10), gate.South)

	_, err := fx.builder.Build(ctx, anchor, gate.South)
	require.NoError(t, err)

	_, err = fx.builder.Build(ctx, anchor, gate.South)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gate.ErrConflict))
	var ce *gate.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, fx.builder.Len())
}

func TestOpenCloseDestroy(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	anchor := fx.place(t, vec.New(0, 64, 0), gate.West)

	p, err := fx.builder.Build(ctx, anchor, gate.West)
	require.NoError(t, err)
	fx.nextEvent(t)

	require.NoError(t, fx.builder.Open(ctx, p.ID))
	assert.True(t, p.Instance.IsOpen())
	assert.Equal(t, block.PortalBlockID, fx.world.MaterialAt(p.Instance.Exit()))
	assert.Equal(t, eventbus.EventGateOpened, fx.nextEvent(t).EventType)

	records, _ := fx.store.List(ctx)
	assert.True(t, records[0].Open)

	require.NoError(t, fx.builder.Close(ctx, p.ID))
	assert.Equal(t, block.AirBlockID, fx.world.MaterialAt(p.Instance.Exit()))
	assert.Equal(t, eventbus.EventGateClosed, fx.nextEvent(t).EventType)

	require.NoError(t, fx.builder.Destroy(ctx, p.ID, "test"))
	assert.Equal(t, eventbus.EventGateDestroyed, fx.nextEvent(t).EventType)
	_, _, ok := fx.builder.Lookup(anchor)
	assert.False(t, ok)
	for role, n := range fx.builder.IndexSize() {
		assert.Zero(t, n, "роль %s", role)
	}
	records, _ = fx.store.List(ctx)
	assert.Empty(t, records)

	assert.True(t, errors.Is(fx.builder.Open(ctx, p.ID), ErrNotFound))
	assert.True(t, errors.Is(fx.builder.Destroy(ctx, p.ID, "again"), ErrNotFound))
}

func TestBlockBrokenDestroysPortal(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	origin := vec.New(0, 64, 0)
	anchor := fx.place(t, origin, gate.East)

	p, err := fx.builder.Build(ctx, anchor, gate.East)
	require.NoError(t, err)

	// Поверхность не является несущей частью
	_, destroyed := fx.builder.BlockBroken(ctx, p.Instance.Exit())
	assert.False(t, destroyed)

	got, destroyed := fx.builder.BlockBroken(ctx, origin)
	require.True(t, destroyed)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 0, fx.builder.Len())
}

func TestAdjacent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	anchor := fx.place(t, vec.New(0, 64, 0), gate.East)

	p, err := fx.builder.Build(ctx, anchor, gate.East)
	require.NoError(t, err)

	// Клетка перед поверхностью примыкает к ней по горизонтали
	front := p.Instance.Exit().Add(gate.East.Forward())
	adj := fx.builder.Adjacent(front, gate.RoleIris)
	require.Len(t, adj, 1)
	assert.Same(t, p, adj[0])
	assert.Empty(t, fx.builder.Adjacent(vec.New(50, 64, 50), gate.RoleIris))
}

func TestSnapshotsAreCopies(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	anchor := fx.place(t, vec.New(0, 64, 0), gate.East)

	p, err := fx.builder.Build(ctx, anchor, gate.East)
	require.NoError(t, err)

	snap, ok := fx.builder.Snapshot(p.ID)
	require.True(t, ok)
	assert.Equal(t, p.ID, snap.ID)
	assert.Equal(t, "nether", snap.Format)
	assert.Equal(t, p.Instance.Exit(), snap.Exit)
	assert.Equal(t, 6, snap.Cells[gate.RoleIris])
	sign, hasSign := p.Instance.SignLocation()
	require.True(t, hasSign)
	require.NotNil(t, snap.Sign)
	assert.Equal(t, sign, *snap.Sign)
	assert.False(t, snap.Open)

	// Снимок не меняется вместе с вратами
	require.NoError(t, fx.builder.Open(ctx, p.ID))
	assert.False(t, snap.Open)
	again, _ := fx.builder.Snapshot(p.ID)
	assert.True(t, again.Open)

	found, role, ok := fx.builder.LookupSnapshot(sign)
	require.True(t, ok)
	assert.Equal(t, gate.RoleControl, role)
	assert.Equal(t, p.ID, found.ID)

	front := p.Instance.Exit().Add(gate.East.Forward())
	require.Len(t, fx.builder.AdjacentSnapshots(front, gate.RoleIris), 1)
	require.Len(t, fx.builder.Snapshots(), 1)

	_, ok = fx.builder.Snapshot("missing")
	assert.False(t, ok)
	_, _, ok = fx.builder.LookupSnapshot(vec.New(99, 64, 99))
	assert.False(t, ok)
}

func TestRestoreFromStore(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	anchorA := fx.place(t, vec.New(0, 64, 0), gate.North)
	anchorB := fx.place(t, vec.New(20, 64, 20), gate.East)

	a, err := fx.builder.Build(ctx, anchorA, gate.North)
	require.NoError(t, err)
	b, err := fx.builder.Build(ctx, anchorB, gate.East)
	require.NoError(t, err)
	require.NoError(t, fx.builder.Open(ctx, a.ID))

	// Вторые врата сломаны, пока сервер был выключен
	require.NoError(t, fx.world.SetBlock(b.Instance.Origin(), block.AirBlockID))

	restarted := fx.newBuilder()
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok := restarted.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, a.Instance.Origin(), got.Instance.Origin())
	assert.True(t, got.Instance.IsOpen(), "состояние определяется по миру")
	assert.Equal(t, a.Record().Controls, got.Record().Controls)

	records, err := fx.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1, "устаревшая запись удалена")
	assert.Equal(t, a.ID, records[0].ID)
}

func TestRestoreWithoutStore(t *testing.T) {
	fx := newFixture(t)
	b := NewBuilder(fx.world, fx.catalog, Options{})
	n, err := b.Restore(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
