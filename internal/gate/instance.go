package gate

import (
	"fmt"

	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world/block"
)

// Instance формат, привязанный к мировой точке, повороту и отражению.
// Создаётся только сопоставителем. Изменяется (Open/Close) из горутины
// симуляции.
type Instance struct {
	format    *Format
	origin    vec.Vec3
	transform Transform
	open      bool
	controls  map[vec.Vec3]ControlRole // Управляющая клетка формата -> назначение
}

func newInstance(f *Format, origin vec.Vec3, t Transform, controls map[vec.Vec3]ControlRole, open bool) *Instance {
	return &Instance{
		format:    f,
		origin:    origin,
		transform: t,
		open:      open,
		controls:  controls,
	}
}

// Format возвращает общий неизменяемый формат
func (in *Instance) Format() *Format {
	return in.format
}

// Origin мировая позиция нулевой точки формата
func (in *Instance) Origin() vec.Vec3 {
	return in.origin
}

// Transform возвращает преобразование экземпляра
func (in *Instance) Transform() Transform {
	return in.transform
}

// Facing направление лицевой стороны
func (in *Instance) Facing() Facing {
	return in.transform.Facing()
}

// Mirrored сообщает, отражён ли формат
func (in *Instance) Mirrored() bool {
	return in.transform.Mirrored()
}

// ToWorld переводит вектор формата в мировую позицию
func (in *Instance) ToWorld(rel vec.Vec3) vec.Vec3 {
	return in.origin.Add(in.transform.ToWorld(rel))
}

// RelativeVector переводит мировую позицию в вектор формата
func (in *Instance) RelativeVector(world vec.Vec3) vec.Vec3 {
	return in.transform.ToFormat(world.Sub(in.origin))
}

// Exit мировая позиция клетки выхода
func (in *Instance) Exit() vec.Vec3 {
	return in.ToWorld(in.format.exit)
}

// IsOpen сообщает, открыта ли поверхность
func (in *Instance) IsOpen() bool {
	return in.open
}

// ControlRole возвращает назначение управляющей клетки формата
func (in *Instance) ControlRole(cell vec.Vec3) ControlRole {
	return in.controls[cell]
}

// ControlAssignments возвращает копию назначений управляющих клеток
func (in *Instance) ControlAssignments() map[vec.Vec3]ControlRole {
	out := make(map[vec.Vec3]ControlRole, len(in.controls))
	for k, v := range in.controls {
		out[k] = v
	}
	return out
}

// SignLocation мировая позиция таблички
func (in *Instance) SignLocation() (vec.Vec3, bool) {
	return in.placementOf(ControlSign)
}

// ButtonLocation мировая позиция кнопки
func (in *Instance) ButtonLocation() (vec.Vec3, bool) {
	return in.placementOf(ControlButton)
}

func (in *Instance) placementOf(role ControlRole) (vec.Vec3, bool) {
	for _, c := range in.format.control {
		if in.controls[c] == role {
			return in.ToWorld(in.format.ControlPlacement(c)), true
		}
	}
	return vec.Vec3{}, false
}

// Locations возвращает мировые позиции клеток роли.
// Рамка включает управляющие блоки, управление только занятые точки
// установки табличек и кнопок.
func (in *Instance) Locations(role Role) []vec.Vec3 {
	f := in.format
	switch role {
	case RoleFrame:
		out := make([]vec.Vec3, 0, len(f.frameOrder)+len(f.control))
		for _, c := range f.frameOrder {
			out = append(out, in.ToWorld(c))
		}
		for _, c := range f.control {
			out = append(out, in.ToWorld(c))
		}
		return out
	case RoleIris:
		out := make([]vec.Vec3, 0, len(f.iris))
		for _, c := range f.iris {
			out = append(out, in.ToWorld(c))
		}
		return out
	case RoleControl:
		out := make([]vec.Vec3, 0, 2)
		for _, c := range f.control {
			if in.controls[c] != ControlUnassigned {
				out = append(out, in.ToWorld(f.ControlPlacement(c)))
			}
		}
		return out
	default:
		panic(fmt.Sprintf("gate: unknown role %d", uint8(role)))
	}
}

// Entries возвращает все записи экземпляра для регистрации в индексе
func (in *Instance) Entries() []Entry {
	var entries []Entry
	for _, role := range Roles {
		for _, pos := range in.Locations(role) {
			entries = append(entries, Entry{Role: role, Pos: pos})
		}
	}
	return entries
}

// Open заполняет поверхность материалом открытого состояния
func (in *Instance) Open(w BlockSetter) error {
	if err := in.fillIris(w, in.format.DefaultOpen()); err != nil {
		return fmt.Errorf("open gate at %s: %w", in.origin, err)
	}
	in.open = true
	return nil
}

// Close заполняет поверхность материалом закрытого состояния
func (in *Instance) Close(w BlockSetter) error {
	if err := in.fillIris(w, in.format.DefaultClosed()); err != nil {
		return fmt.Errorf("close gate at %s: %w", in.origin, err)
	}
	in.open = false
	return nil
}

func (in *Instance) fillIris(w BlockSetter, id block.BlockID) error {
	for _, c := range in.format.iris {
		if err := w.SetBlock(in.ToWorld(c), id); err != nil {
			return err
		}
	}
	return nil
}

// String для логов
func (in *Instance) String() string {
	return fmt.Sprintf("%s@%s[%s]", in.format.name, in.origin, in.transform)
}
