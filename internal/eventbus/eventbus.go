package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed шина уже закрыта
var ErrClosed = errors.New("event bus closed")

// Envelope описывает универсальный контейнер события.
// Все поля фиксированы для версионирования и трассировки.
type Envelope struct {
	ID            string            `json:"id"`             // Глобально уникальный идентификатор (UUID)
	Timestamp     time.Time         `json:"timestamp"`      // Время создания события (UTC)
	Source        string            `json:"source"`         // Имя сервиса-источника
	EventType     string            `json:"event_type"`     // Тип события (gate.built, gate.opened…)
	Version       int               `json:"version"`        // Схема полезной нагрузки
	CorrelationID string            `json:"correlation_id"` // Для связывания цепочек
	Priority      int               `json:"priority"`       // 0=Low … 9=Critical (для backpressure)
	Payload       []byte            `json:"payload"`        // JSON полезной нагрузки
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope создаёт конверт с новым ID и JSON-полезной нагрузкой
func NewEnvelope(eventType, source string, priority int, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// Decode разбирает полезную нагрузку в v
func (ev *Envelope) Decode(v any) error {
	return json.Unmarshal(ev.Payload, v)
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Если пусто: все типы
	Sources []string // Если пусто: все источники
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus абстракция шины событий (in-memory, JetStream).
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

//================ In-Memory implementation =================//

// MemoryBus шина внутри процесса. Обработчики вызываются в отдельных
// горутинах, порядок доставки разным подписчикам не гарантируется.
type MemoryBus struct {
	mu          sync.RWMutex // Подписчики
	subscribers map[int]subscriber
	nextID      int

	statsMu sync.Mutex
	stats   Stats

	closeMu  sync.RWMutex // Отправка в buffer против закрытия
	closed   bool
	buffer   chan *Envelope
	handlers sync.WaitGroup
	done     chan struct{}
}

type subscriber struct {
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMemoryBus создаёт in-memory шину с указанным буфером.
func NewMemoryBus(capacity int) *MemoryBus {
	if capacity <= 0 {
		capacity = 1
	}
	mb := &MemoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, capacity),
		done:        make(chan struct{}),
	}
	go mb.dispatchLoop()
	return mb
}

func (mb *MemoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.closeMu.RLock()
	defer mb.closeMu.RUnlock()
	if mb.closed {
		return ErrClosed
	}

	select {
	case mb.buffer <- ev:
		mb.countPublished()
		return nil
	default:
		// Буфер заполнен: отбрасываем низкий приоритет (<5)
		if ev.Priority < 5 {
			mb.countDropped()
			return nil
		}
		// Для высокого приоритета ждём места или отмены контекста
		select {
		case mb.buffer <- ev:
			mb.countPublished()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (mb *MemoryBus) countPublished() {
	mb.statsMu.Lock()
	mb.stats.Published++
	mb.statsMu.Unlock()
}

func (mb *MemoryBus) countDropped() {
	mb.statsMu.Lock()
	mb.stats.Dropped++
	mb.statsMu.Unlock()
}

func (mb *MemoryBus) countConsumed() {
	mb.statsMu.Lock()
	mb.stats.Consumed++
	mb.statsMu.Unlock()
}

func (mb *MemoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	mb.closeMu.RLock()
	closed := mb.closed
	mb.closeMu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	mb.subscribers[id] = subscriber{filter: f, handler: h, ctx: cctx, cancel: cancel}
	return &memSub{bus: mb, id: id}, nil
}

func (mb *MemoryBus) Metrics() Stats {
	mb.statsMu.Lock()
	s := mb.stats
	mb.statsMu.Unlock()
	s.InFlight = len(mb.buffer)
	return s
}

// Close прекращает приём событий, доставляет оставшиеся и ждёт обработчиков
func (mb *MemoryBus) Close() error {
	mb.closeMu.Lock()
	if mb.closed {
		mb.closeMu.Unlock()
		return nil
	}
	mb.closed = true
	close(mb.buffer)
	mb.closeMu.Unlock()

	<-mb.done
	mb.handlers.Wait()
	return nil
}

// dispatchLoop рассылает события подписчикам.
func (mb *MemoryBus) dispatchLoop() {
	defer close(mb.done)
	for ev := range mb.buffer {
		ev := ev
		mb.mu.RLock()
		subs := make([]subscriber, 0, len(mb.subscribers))
		for _, sub := range mb.subscribers {
			subs = append(subs, sub)
		}
		mb.mu.RUnlock()

		for _, sub := range subs {
			if !matchFilter(ev, sub.filter) {
				continue
			}
			mb.handlers.Add(1)
			go func(s subscriber) {
				defer mb.handlers.Done()
				select {
				case <-s.ctx.Done():
					return
				default:
					s.handler(s.ctx, ev)
					mb.countConsumed()
				}
			}(sub)
		}
	}
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}

type memSub struct {
	bus *MemoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		sub.cancel()
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
}
