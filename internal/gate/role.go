package gate

import "fmt"

// Role структурная роль клетки врат. Набор ролей закрыт: каждая функция,
// выбирающая поведение по роли, перечисляет все варианты и паникует на
// неизвестном значении.
type Role uint8

const (
	RoleFrame   Role = iota // Рамка
	RoleIris                // Поверхность портала
	RoleControl             // Табличка или кнопка
)

// Roles все роли в порядке приоритета поиска
var Roles = [...]Role{RoleFrame, RoleIris, RoleControl}

// String возвращает имя роли
func (r Role) String() string {
	switch r {
	case RoleFrame:
		return "frame"
	case RoleIris:
		return "iris"
	case RoleControl:
		return "control"
	default:
		panic(fmt.Sprintf("gate: unknown role %d", uint8(r)))
	}
}

// ParseRole разбирает имя роли
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// ControlRole назначение управляющей клетки
type ControlRole uint8

const (
	ControlUnassigned ControlRole = iota
	ControlSign
	ControlButton
)

// String возвращает имя назначения
func (c ControlRole) String() string {
	switch c {
	case ControlUnassigned:
		return "unassigned"
	case ControlSign:
		return "sign"
	case ControlButton:
		return "button"
	default:
		panic(fmt.Sprintf("gate: unknown control role %d", uint8(c)))
	}
}

// MarshalText реализует encoding.TextMarshaler
func (c ControlRole) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (c *ControlRole) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unassigned", "":
		*c = ControlUnassigned
	case "sign":
		*c = ControlSign
	case "button":
		*c = ControlButton
	default:
		return fmt.Errorf("unknown control role %q", text)
	}
	return nil
}
