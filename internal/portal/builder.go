package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/mmo-gates/internal/eventbus"
	"github.com/annel0/mmo-gates/internal/gate"
	"github.com/annel0/mmo-gates/internal/logging"
	"github.com/annel0/mmo-gates/internal/metrics"
	"github.com/annel0/mmo-gates/internal/observability"
	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world/block"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var logger = logging.GetComponentLogger("portal")

// EventSource источник событий врат в шине
const EventSource = "portal"

// World мир, в котором стоят врата
type World interface {
	gate.WorldQuery
	gate.BlockSetter
}

// Catalog источник форматов-кандидатов
type Catalog interface {
	Get(name string) (*gate.Format, bool)
	FormatsFor(material block.BlockID) []*gate.Format
}

// Options зависимости Builder. Нулевые значения допустимы: без Store
// записи не сохраняются, без Bus события идут в глобальную шину, без
// Metrics метрики не собираются.
type Options struct {
	Matcher  *gate.Matcher
	AlwaysOn bool
	Store    Store
	Bus      eventbus.EventBus
	Metrics  *metrics.GateMetrics
}

// Builder владеет индексом структур и всеми зарегистрированными вратами.
// Изменения идут из горутины симуляции; чтение (отладочный API) может
// идти параллельно, поэтому состояние защищено мьютексом.
type Builder struct {
	mu      sync.RWMutex
	world   World
	catalog Catalog
	matcher *gate.Matcher
	index   *gate.Index[*Portal]
	portals map[string]*Portal

	alwaysOn bool
	store    Store
	bus      eventbus.EventBus
	metrics  *metrics.GateMetrics
	now      func() time.Time
}

// NewBuilder создаёт владельца врат
func NewBuilder(w World, c Catalog, opts Options) *Builder {
	m := opts.Matcher
	if m == nil {
		m = gate.NewMatcher(block.NewSet(block.SignBlockID), block.NewSet(block.StoneButtonBlockID, block.WoodButtonBlockID))
	}
	return &Builder{
		world:    w,
		catalog:  c,
		matcher:  m,
		index:    gate.NewIndex[*Portal](),
		portals:  make(map[string]*Portal),
		alwaysOn: opts.AlwaysOn,
		store:    opts.Store,
		bus:      opts.Bus,
		metrics:  opts.Metrics,
		now:      time.Now,
	}
}

// Build пытается распознать врата, управляющий блок которых стоит в
// anchor, а лицевая сторона смотрит в facing. Возвращает
// gate.ErrNoMatch, если постройка не совпала ни с одним форматом, и
// *gate.ConflictError, если она пересекается с существующими вратами.
func (b *Builder) Build(ctx context.Context, anchor vec.Vec3, facing gate.Facing) (*Portal, error) {
	ctx, span := observability.Tracer().Start(ctx, "portal.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("gate.anchor", anchor.String()),
		attribute.String("gate.facing", facing.String()),
	)

	candidates := b.catalog.FormatsFor(b.world.MaterialAt(anchor))
	span.SetAttributes(attribute.Int("gate.candidates", len(candidates)))

	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	res := b.matcher.Match(anchor, facing, candidates, b.world, b.index, gate.MatchOptions{AlwaysOn: b.alwaysOn})
	if b.metrics != nil {
		b.metrics.ObserveMatch(res.Outcome.String(), time.Since(start).Seconds())
	}
	span.SetAttributes(attribute.String("gate.outcome", res.Outcome.String()))

	if res.Outcome != gate.Matched {
		err := res.Err()
		if res.Outcome == gate.Conflicted {
			span.SetStatus(codes.Error, err.Error())
			logger.Debug("🚧 Врата в %s пересекаются с существующими: %v", anchor, err)
		}
		return nil, err
	}

	p := &Portal{ID: uuid.NewString(), Instance: res.Instance, CreatedAt: b.now().UTC()}
	if err := b.register(p); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("gate.id", p.ID), attribute.String("gate.format", p.Instance.Format().Name()))

	logger.Info("🚪 Врата %s построены: %s", p.ID, p.Instance)
	b.persist(ctx, p)
	b.publish(ctx, eventbus.EventGateBuilt, p, "")
	return p, nil
}

// register вносит все клетки врат в индекс (всё или ничего)
func (b *Builder) register(p *Portal) error {
	if err := b.index.RegisterAll(p, p.Instance.Entries()); err != nil {
		return fmt.Errorf("register portal %s: %w", p.ID, err)
	}
	b.portals[p.ID] = p
	b.updateGauges()
	return nil
}

// Open открывает врата
func (b *Builder) Open(ctx context.Context, id string) error {
	return b.transition(ctx, id, eventbus.EventGateOpened, func(in *gate.Instance) error {
		return in.Open(b.world)
	})
}

// Close закрывает врата
func (b *Builder) Close(ctx context.Context, id string) error {
	return b.transition(ctx, id, eventbus.EventGateClosed, func(in *gate.Instance) error {
		return in.Close(b.world)
	})
}

func (b *Builder) transition(ctx context.Context, id, event string, apply func(*gate.Instance) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, exists := b.portals[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := apply(p.Instance); err != nil {
		return err
	}
	if b.metrics != nil {
		b.metrics.Transitions.WithLabelValues(event).Inc()
	}
	logger.Debug("🔁 %s: %s", event, p.ID)
	b.persist(ctx, p)
	b.publish(ctx, event, p, "")
	return nil
}

// Destroy снимает врата с регистрации. Блоки мира не трогает.
func (b *Builder) Destroy(ctx context.Context, id, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyLocked(ctx, id, reason)
}

func (b *Builder) destroyLocked(ctx context.Context, id, reason string) error {
	p, exists := b.portals[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	b.index.UnregisterOwner(p)
	delete(b.portals, id)
	b.updateGauges()
	if b.metrics != nil {
		b.metrics.Transitions.WithLabelValues(eventbus.EventGateDestroyed).Inc()
	}

	if b.store != nil {
		if err := b.store.Delete(ctx, id); err != nil {
			logger.Error("❌ Не удалось удалить запись врат %s: %v", id, err)
		}
	}
	logger.Info("💥 Врата %s разрушены (%s)", id, reason)
	b.publish(ctx, eventbus.EventGateDestroyed, p, reason)
	return nil
}

// BlockBroken сообщает о разрушении блока. Если блок был частью рамки
// или управляющим элементом врат, врата разрушаются.
func (b *Builder) BlockBroken(ctx context.Context, pos vec.Vec3) (*Portal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	role, p, found := b.index.Lookup(pos, gate.RoleFrame, gate.RoleControl)
	if !found {
		return nil, false
	}
	reason := fmt.Sprintf("%s block broken at %s", role, pos)
	if err := b.destroyLocked(ctx, p.ID, reason); err != nil {
		return nil, false
	}
	return p, true
}

// Restore заново сопоставляет сохранённые врата. Записи, которые больше
// не совпадают с миром или форматом, удаляются из хранилища.
func (b *Builder) Restore(ctx context.Context) (int, error) {
	if b.store == nil {
		return 0, nil
	}
	records, err := b.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stored portals: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	restored := 0
	for _, rec := range records {
		p, err := b.restoreOne(rec)
		if err != nil {
			logger.Warn("⚠️ Врата %s не восстановлены: %v", rec.ID, err)
			if errors.Is(err, ErrStale) {
				if derr := b.store.Delete(ctx, rec.ID); derr != nil {
					logger.Error("❌ Не удалось удалить запись врат %s: %v", rec.ID, derr)
				}
			}
			continue
		}
		restored++
		logger.Debug("♻️ Врата %s восстановлены: %s", p.ID, p.Instance)
	}
	logger.Info("♻️ Восстановлено врат: %d из %d", restored, len(records))
	return restored, nil
}

func (b *Builder) restoreOne(rec Record) (*Portal, error) {
	if _, exists := b.portals[rec.ID]; exists {
		return nil, fmt.Errorf("portal %s already registered", rec.ID)
	}
	f, ok := b.catalog.Get(rec.Format)
	if !ok {
		return nil, fmt.Errorf("%w: format %q is not loaded", ErrStale, rec.Format)
	}

	t := gate.NewTransform(rec.Facing, rec.Mirrored)
	anchor := rec.Origin.Add(t.ToWorld(rec.anchorCell(f)))
	res := b.matcher.Match(anchor, rec.Facing, []*gate.Format{f}, b.world, b.index, gate.MatchOptions{AlwaysOn: b.alwaysOn})
	switch res.Outcome {
	case gate.Matched:
	case gate.Conflicted:
		return nil, res.Err()
	default:
		return nil, fmt.Errorf("%w: %v", ErrStale, res.Err())
	}

	in := res.Instance
	if in.Origin() != rec.Origin || in.Mirrored() != rec.Mirrored {
		return nil, fmt.Errorf("%w: matched at %s instead of %s", ErrStale, in.Origin(), rec.Origin)
	}

	p := &Portal{ID: rec.ID, Instance: in, CreatedAt: rec.CreatedAt}
	if err := b.register(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get возвращает врата по ID
func (b *Builder) Get(id string) (*Portal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, exists := b.portals[id]
	return p, exists
}

// Portals возвращает все врата в порядке создания
func (b *Builder) Portals() []*Portal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Portal, 0, len(b.portals))
	for _, p := range b.portals {
		out = append(out, p)
	}
	sortPortals(out)
	return out
}

// Len возвращает количество зарегистрированных врат
func (b *Builder) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.portals)
}

// Lookup ищет врата, занимающие позицию под одной из ролей
func (b *Builder) Lookup(pos vec.Vec3, roles ...gate.Role) (*Portal, gate.Role, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	role, p, found := b.index.Lookup(pos, roles...)
	return p, role, found
}

// Adjacent возвращает врата, клетки роли которых примыкают к позиции по горизонтали
func (b *Builder) Adjacent(pos vec.Vec3, role gate.Role) []*Portal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.AdjacentOwners(pos, role)
}

// Snapshot возвращает копию состояния врат, снятую под блокировкой.
// Читателям из других горутин (отладочный API) нужен именно он, а не Get:
// Open и Close меняют Instance под записывающей блокировкой.
func (b *Builder) Snapshot(id string) (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, exists := b.portals[id]
	if !exists {
		return Snapshot{}, false
	}
	return p.snapshot(), true
}

// Snapshots копии всех врат в порядке создания
func (b *Builder) Snapshots() []Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ps := make([]*Portal, 0, len(b.portals))
	for _, p := range b.portals {
		ps = append(ps, p)
	}
	sortPortals(ps)
	return snapshotAll(ps)
}

// LookupSnapshot как Lookup, но возвращает копию
func (b *Builder) LookupSnapshot(pos vec.Vec3, roles ...gate.Role) (Snapshot, gate.Role, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	role, p, found := b.index.Lookup(pos, roles...)
	if !found {
		return Snapshot{}, role, false
	}
	return p.snapshot(), role, true
}

// AdjacentSnapshots как Adjacent, но возвращает копии
func (b *Builder) AdjacentSnapshots(pos vec.Vec3, role gate.Role) []Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return snapshotAll(b.index.AdjacentOwners(pos, role))
}

func snapshotAll(ps []*Portal) []Snapshot {
	out := make([]Snapshot, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.snapshot())
	}
	return out
}

// IndexSize возвращает размер индекса по ролям
func (b *Builder) IndexSize() map[gate.Role]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[gate.Role]int, len(gate.Roles))
	for _, role := range gate.Roles {
		out[role] = b.index.Len(role)
	}
	return out
}

func (b *Builder) updateGauges() {
	if b.metrics == nil {
		return
	}
	b.metrics.Gates.Set(float64(len(b.portals)))
	for _, role := range gate.Roles {
		b.metrics.SetIndexSize(role.String(), b.index.Len(role))
	}
}

// persist сохраняет запись. Ошибка хранилища не откатывает состояние мира.
func (b *Builder) persist(ctx context.Context, p *Portal) {
	if b.store == nil {
		return
	}
	if err := b.store.Save(ctx, p.Record()); err != nil {
		logger.Error("❌ Не удалось сохранить врата %s: %v", p.ID, err)
	}
}

func (b *Builder) publish(ctx context.Context, eventType string, p *Portal, reason string) {
	in := p.Instance
	ev, err := eventbus.NewEnvelope(eventType, EventSource, 5, eventbus.GateEvent{
		GateID:   p.ID,
		Format:   in.Format().Name(),
		Origin:   in.Origin(),
		Facing:   in.Facing().String(),
		Mirrored: in.Mirrored(),
		Open:     in.IsOpen(),
		Reason:   reason,
	})
	if err != nil {
		logger.Error("❌ Событие %s не создано: %v", eventType, err)
		return
	}

	if b.bus != nil {
		err = b.bus.Publish(ctx, ev)
	} else {
		err = eventbus.Publish(ctx, ev)
	}
	if err != nil {
		logger.Warn("⚠️ Событие %s для врат %s не опубликовано: %v", eventType, p.ID, err)
	}
}
