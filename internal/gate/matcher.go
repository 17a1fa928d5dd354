package gate

import (
	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world/block"
)

// Outcome итог сопоставления
type Outcome uint8

const (
	NoMatch    Outcome = iota // Ни один формат не подошёл
	Matched                   // Найден экземпляр
	Conflicted                // Найдена структура, пересекающаяся с существующей
)

// String возвращает имя исхода
func (o Outcome) String() string {
	switch o {
	case NoMatch:
		return "no_match"
	case Matched:
		return "matched"
	case Conflicted:
		return "conflict"
	default:
		return "unknown"
	}
}

// Result результат Matcher.Match. Instance заполнен при Matched,
// Conflict: при Conflicted.
type Result struct {
	Outcome  Outcome
	Instance *Instance
	Conflict *ConflictError
}

// Err превращает результат в ошибку: nil, ErrNoMatch или *ConflictError
func (r Result) Err() error {
	switch r.Outcome {
	case Matched:
		return nil
	case Conflicted:
		return r.Conflict
	default:
		return ErrNoMatch
	}
}

// MatchOptions параметры одного сопоставления
type MatchOptions struct {
	// AlwaysOn врата постоянно активны, кнопка не нужна
	AlwaysOn bool
}

// Matcher ищет формат, совпадающий с физической постройкой.
// Не хранит изменяемого состояния и может использоваться повторно.
type Matcher struct {
	signs   block.Set
	buttons block.Set
}

// NewMatcher создаёт сопоставитель с материалами табличек и кнопок
func NewMatcher(signs, buttons block.Set) *Matcher {
	return &Matcher{signs: signs, buttons: buttons}
}

// attemptOutcome исход одной попытки (формат, отражение)
type attemptOutcome uint8

const (
	attemptFailed attemptOutcome = iota
	attemptMatched
	attemptConflict
)

// Match перебирает форматы в переданном порядке. Для каждого формата
// сначала пробуется неотражённое преобразование, затем отражённое.
// Первое совпадение без конфликтов побеждает; конфликт прерывает весь
// перебор.
func (m *Matcher) Match(anchor vec.Vec3, facing Facing, formats []*Format, world WorldQuery, index Occupancy, opts MatchOptions) Result {
	for _, f := range formats {
		for _, mirrored := range [2]bool{false, true} {
			t := NewTransform(facing, mirrored)
			inst, conflict, outcome := m.attempt(anchor, f, t, world, index, opts)
			switch outcome {
			case attemptMatched:
				return Result{Outcome: Matched, Instance: inst}
			case attemptConflict:
				return Result{Outcome: Conflicted, Conflict: conflict}
			}
		}
	}
	return Result{Outcome: NoMatch}
}

// attempt проверяет один формат при одном преобразовании, предполагая по
// очереди, что якорь совпадает с каждой управляющей клеткой.
func (m *Matcher) attempt(anchor vec.Vec3, f *Format, t Transform, world WorldQuery, index Occupancy, opts MatchOptions) (*Instance, *ConflictError, attemptOutcome) {
	for _, anchorCell := range f.control {
		origin := anchor.Sub(t.ToWorld(anchorCell))
		if !m.validate(f, origin, t, world) {
			continue
		}

		if conflict := m.overlap(f, origin, t, index); conflict != nil {
			return nil, conflict, attemptConflict
		}

		controls, ok := m.assignControls(f, origin, t, world, anchorCell, opts)
		if !ok {
			continue
		}
		for _, cell := range f.control {
			if controls[cell] == ControlUnassigned {
				continue
			}
			pos := origin.Add(t.ToWorld(f.ControlPlacement(cell)))
			if found, taken := index.OccupiedBy(pos); taken {
				return nil, &ConflictError{Role: found, Pos: pos}, attemptConflict
			}
		}

		return newInstance(f, origin, t, controls, m.isOpen(f, origin, t, world)), nil, attemptMatched
	}
	return nil, nil, attemptFailed
}

// validate проверяет материал и границы каждой клетки формата
func (m *Matcher) validate(f *Format, origin vec.Vec3, t Transform, world WorldQuery) bool {
	for _, cell := range f.Cells() {
		pos := origin.Add(t.ToWorld(cell.Vec))
		if !world.IsWithinUsableBounds(pos) {
			return false
		}
		if !f.Allows(cell.Role, cell.Vec, world.MaterialAt(pos)) {
			return false
		}
	}
	return true
}

// overlap ищет клетку формата, уже занятую другой структурой
func (m *Matcher) overlap(f *Format, origin vec.Vec3, t Transform, index Occupancy) *ConflictError {
	for _, cell := range f.Cells() {
		pos := origin.Add(t.ToWorld(cell.Vec))
		if role, taken := index.OccupiedBy(pos); taken {
			return &ConflictError{Role: role, Pos: pos}
		}
	}
	return nil
}

// assignControls назначает табличку и кнопку. Уже стоящие таблички и кнопки
// сохраняют роль; табличкой становится клетка якоря, кнопкой становится первая
// свободная клетка, если врата не постоянно активны.
func (m *Matcher) assignControls(f *Format, origin vec.Vec3, t Transform, world WorldQuery, anchorCell vec.Vec3, opts MatchOptions) (map[vec.Vec3]ControlRole, bool) {
	controls := make(map[vec.Vec3]ControlRole, len(f.control))
	haveSign, haveButton := false, false

	for _, c := range f.control {
		mat := world.MaterialAt(origin.Add(t.ToWorld(f.ControlPlacement(c))))
		switch {
		case m.signs.Contains(mat):
			controls[c] = ControlSign
			haveSign = true
		case m.buttons.Contains(mat):
			controls[c] = ControlButton
			haveButton = true
		default:
			controls[c] = ControlUnassigned
		}
	}

	if !haveSign {
		cell, ok := anchorCell, controls[anchorCell] == ControlUnassigned
		if !ok {
			cell, ok = firstUnassigned(f.control, controls)
		}
		if !ok {
			return nil, false
		}
		controls[cell] = ControlSign
	}

	if !haveButton && !opts.AlwaysOn {
		cell, ok := firstUnassigned(f.control, controls)
		if !ok {
			return nil, false
		}
		controls[cell] = ControlButton
	}
	return controls, true
}

// firstUnassigned возвращает первую свободную клетку в порядке формата
func firstUnassigned(cells []vec.Vec3, controls map[vec.Vec3]ControlRole) (vec.Vec3, bool) {
	for _, c := range cells {
		if controls[c] == ControlUnassigned {
			return c, true
		}
	}
	return vec.Vec3{}, false
}

// isOpen определяет состояние по материалу клетки выхода
func (m *Matcher) isOpen(f *Format, origin vec.Vec3, t Transform, world WorldQuery) bool {
	mat := world.MaterialAt(origin.Add(t.ToWorld(f.exit)))
	return f.open.materials.Contains(mat) && !f.closed.materials.Contains(mat)
}
