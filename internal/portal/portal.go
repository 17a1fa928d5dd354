// Package portal управляет жизненным циклом распознанных врат: постройкой,
// открытием, закрытием, разрушением и восстановлением после перезапуска.
package portal

import (
	"errors"
	"sort"
	"time"

	"github.com/annel0/mmo-gates/internal/gate"
	"github.com/annel0/mmo-gates/internal/vec"
)

var (
	// ErrNotFound врата с таким ID не зарегистрированы
	ErrNotFound = errors.New("portal not found")
	// ErrStale сохранённая запись больше не совпадает с миром
	ErrStale = errors.New("stored portal no longer matches the world")
)

// Portal зарегистрированные врата: экземпляр формата и его идентификатор
type Portal struct {
	ID        string
	Instance  *gate.Instance
	CreatedAt time.Time
}

// ControlRecord сохранённое назначение управляющей клетки
type ControlRecord struct {
	Cell vec.Vec3         `json:"cell"`
	Role gate.ControlRole `json:"role"`
}

// Record сохраняемое представление врат. Достаточно, чтобы заново
// сопоставить постройку при запуске.
type Record struct {
	ID        string          `json:"id"`
	Format    string          `json:"format"`
	Origin    vec.Vec3        `json:"origin"`
	Facing    gate.Facing     `json:"facing"`
	Mirrored  bool            `json:"mirrored"`
	Open      bool            `json:"open"`
	Controls  []ControlRecord `json:"controls"`
	CreatedAt time.Time       `json:"created_at"`
}

// Record возвращает сохраняемое представление врат
func (p *Portal) Record() Record {
	in := p.Instance
	rec := Record{
		ID:        p.ID,
		Format:    in.Format().Name(),
		Origin:    in.Origin(),
		Facing:    in.Facing(),
		Mirrored:  in.Mirrored(),
		Open:      in.IsOpen(),
		CreatedAt: p.CreatedAt,
	}
	for _, cell := range in.Format().ControlCells() {
		if role := in.ControlRole(cell); role != gate.ControlUnassigned {
			rec.Controls = append(rec.Controls, ControlRecord{Cell: cell, Role: role})
		}
	}
	return rec
}

// anchorCell клетка формата, с которой начинать повторное сопоставление:
// блок за табличкой, если он известен.
func (r Record) anchorCell(f *gate.Format) vec.Vec3 {
	for _, c := range r.Controls {
		if c.Role == gate.ControlSign {
			return c.Cell
		}
	}
	return f.ControlCells()[0]
}

func sortPortals(ps []*Portal) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

// Snapshot копия состояния врат на момент чтения. Не ссылается на
// изменяемые поля Instance, поэтому её можно читать без блокировки Builder.
type Snapshot struct {
	ID        string
	Format    string
	Origin    vec.Vec3
	Facing    gate.Facing
	Mirrored  bool
	Open      bool
	Exit      vec.Vec3
	Sign      *vec.Vec3
	Button    *vec.Vec3
	CreatedAt time.Time
	Cells     map[gate.Role]int
}

// snapshot вызывается только под блокировкой Builder
func (p *Portal) snapshot() Snapshot {
	in := p.Instance
	s := Snapshot{
		ID:        p.ID,
		Format:    in.Format().Name(),
		Origin:    in.Origin(),
		Facing:    in.Facing(),
		Mirrored:  in.Mirrored(),
		Open:      in.IsOpen(),
		Exit:      in.Exit(),
		CreatedAt: p.CreatedAt,
		Cells:     make(map[gate.Role]int, len(gate.Roles)),
	}
	if loc, ok := in.SignLocation(); ok {
		s.Sign = &loc
	}
	if loc, ok := in.ButtonLocation(); ok {
		s.Button = &loc
	}
	for _, role := range gate.Roles {
		s.Cells[role] = len(in.Locations(role))
	}
	return s
}
