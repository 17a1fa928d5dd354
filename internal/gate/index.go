package gate

import (
	"fmt"

	"github.com/annel0/mmo-gates/internal/vec"
)

// Entry пара (роль, мировая позиция) в индексе
type Entry struct {
	Role Role
	Pos  vec.Vec3
}

// Index отображает (роль, мировая позиция) во владельца структуры.
// Одна позиция под одной ролью принадлежит не более чем одному владельцу.
// Индекс не синхронизирован: изменять его можно только из горутины
// симуляции, которая им владеет.
type Index[O comparable] struct {
	frame   map[vec.Vec3]O
	iris    map[vec.Vec3]O
	control map[vec.Vec3]O
	owned   map[O]map[Entry]struct{}
}

// NewIndex создаёт пустой индекс
func NewIndex[O comparable]() *Index[O] {
	return &Index[O]{
		frame:   make(map[vec.Vec3]O),
		iris:    make(map[vec.Vec3]O),
		control: make(map[vec.Vec3]O),
		owned:   make(map[O]map[Entry]struct{}),
	}
}

func (ix *Index[O]) bucket(role Role) map[vec.Vec3]O {
	switch role {
	case RoleFrame:
		return ix.frame
	case RoleIris:
		return ix.iris
	case RoleControl:
		return ix.control
	default:
		panic(fmt.Sprintf("gate: unknown role %d", uint8(role)))
	}
}

// Register связывает позицию с владельцем. Повторная регистрация тем же
// владельцем ничего не меняет; чужая позиция даёт *ConflictError.
func (ix *Index[O]) Register(role Role, pos vec.Vec3, owner O) error {
	if err := ix.check(role, pos, owner); err != nil {
		return err
	}
	ix.link(Entry{Role: role, Pos: pos}, owner)
	return nil
}

// RegisterAll регистрирует все записи владельца или ни одной
func (ix *Index[O]) RegisterAll(owner O, entries []Entry) error {
	for _, e := range entries {
		if err := ix.check(e.Role, e.Pos, owner); err != nil {
			return err
		}
	}
	for _, e := range entries {
		ix.link(e, owner)
	}
	return nil
}

func (ix *Index[O]) check(role Role, pos vec.Vec3, owner O) error {
	if existing, exists := ix.bucket(role)[pos]; exists && existing != owner {
		return &ConflictError{Role: role, Pos: pos, Owner: existing}
	}
	return nil
}

func (ix *Index[O]) link(e Entry, owner O) {
	ix.bucket(e.Role)[e.Pos] = owner
	entries, exists := ix.owned[owner]
	if !exists {
		entries = make(map[Entry]struct{})
		ix.owned[owner] = entries
	}
	entries[e] = struct{}{}
}

// Unregister удаляет запись. Отсутствующая запись не является ошибкой.
func (ix *Index[O]) Unregister(role Role, pos vec.Vec3) {
	b := ix.bucket(role)
	owner, exists := b[pos]
	if !exists {
		return
	}
	delete(b, pos)

	if entries, ok := ix.owned[owner]; ok {
		delete(entries, Entry{Role: role, Pos: pos})
		if len(entries) == 0 {
			delete(ix.owned, owner)
		}
	}
}

// UnregisterOwner удаляет все записи владельца и возвращает их количество
func (ix *Index[O]) UnregisterOwner(owner O) int {
	entries := ix.owned[owner]
	for e := range entries {
		delete(ix.bucket(e.Role), e.Pos)
	}
	delete(ix.owned, owner)
	return len(entries)
}

// Get возвращает владельца позиции под указанной ролью
func (ix *Index[O]) Get(role Role, pos vec.Vec3) (O, bool) {
	owner, exists := ix.bucket(role)[pos]
	return owner, exists
}

// Lookup ищет позицию по ролям в указанном порядке и возвращает первую
// найденную. Пустой список означает все роли.
func (ix *Index[O]) Lookup(pos vec.Vec3, roles ...Role) (Role, O, bool) {
	if len(roles) == 0 {
		roles = Roles[:]
	}
	for _, role := range roles {
		if owner, exists := ix.bucket(role)[pos]; exists {
			return role, owner, true
		}
	}
	var zero O
	return 0, zero, false
}

// OccupiedBy реализует Occupancy
func (ix *Index[O]) OccupiedBy(pos vec.Vec3, roles ...Role) (Role, bool) {
	role, _, found := ix.Lookup(pos, roles...)
	return role, found
}

// IsAdjacent проверяет четырёх горизонтальных соседей позиции.
// Сама позиция и клетки сверху и снизу не учитываются.
func (ix *Index[O]) IsAdjacent(pos vec.Vec3, role Role) bool {
	b := ix.bucket(role)
	for _, n := range pos.HorizontalNeighbors() {
		if _, exists := b[n]; exists {
			return true
		}
	}
	return false
}

// AdjacentOwners возвращает владельцев структур, примыкающих к позиции
// по горизонтали, без повторов.
func (ix *Index[O]) AdjacentOwners(pos vec.Vec3, role Role) []O {
	b := ix.bucket(role)
	var out []O
	for _, n := range pos.HorizontalNeighbors() {
		owner, exists := b[n]
		if !exists {
			continue
		}
		dup := false
		for _, o := range out {
			if o == owner {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, owner)
		}
	}
	return out
}

// Entries возвращает записи владельца
func (ix *Index[O]) Entries(owner O) []Entry {
	entries := ix.owned[owner]
	out := make([]Entry, 0, len(entries))
	for e := range entries {
		out = append(out, e)
	}
	return out
}

// Len возвращает количество позиций под ролью
func (ix *Index[O]) Len(role Role) int {
	return len(ix.bucket(role))
}

// OwnerCount возвращает количество владельцев с хотя бы одной записью
func (ix *Index[O]) OwnerCount() int {
	return len(ix.owned)
}
