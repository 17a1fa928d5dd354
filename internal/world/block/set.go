package block

import "sort"

// Set неизменяемое после построения множество материалов
type Set map[BlockID]struct{}

// NewSet создаёт множество из перечисленных материалов
func NewSet(ids ...BlockID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains проверяет принадлежность материала множеству
func (s Set) Contains(id BlockID) bool {
	_, ok := s[id]
	return ok
}

// Union возвращает новое множество-объединение
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Sorted возвращает материалы по возрастанию ID
func (s Set) Sorted() []BlockID {
	ids := make([]BlockID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// First возвращает материал с наименьшим ID. Для пустого множества ok=false.
func (s Set) First() (BlockID, bool) {
	ids := s.Sorted()
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// Equal сравнивает два множества
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}
