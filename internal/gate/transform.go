package gate

import (
	"fmt"
	"strings"

	"github.com/annel0/mmo-gates/internal/vec"
)

// Facing направление, в которое смотрит лицевая сторона врат
type Facing uint8

const (
	North Facing = iota // -Z
	East                // +X
	South               // +Z
	West                // -X
)

// Facings все четыре направления по часовой стрелке начиная с севера
var Facings = [4]Facing{North, East, South, West}

// String возвращает имя направления
func (f Facing) String() string {
	switch f {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return fmt.Sprintf("facing(%d)", uint8(f))
	}
}

// ParseFacing разбирает имя направления без учёта регистра
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n":
		return North, nil
	case "east", "e":
		return East, nil
	case "south", "s":
		return South, nil
	case "west", "w":
		return West, nil
	}
	return 0, fmt.Errorf("unknown facing %q", s)
}

// Valid проверяет, что значение одно из четырёх направлений
func (f Facing) Valid() bool {
	return f <= West
}

// Opposite возвращает противоположное направление
func (f Facing) Opposite() Facing {
	return Facings[(int(f)+2)%4]
}

// Forward единичный мировой вектор направления
func (f Facing) Forward() vec.Vec3 {
	return rotationFor(f).apply(vec.Vec3{X: 1})
}

// MarshalText реализует encoding.TextMarshaler
func (f Facing) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid facing %d", uint8(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (f *Facing) UnmarshalText(text []byte) error {
	parsed, err := ParseFacing(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// matrix целочисленная матрица 3x3. Коэффициенты только -1, 0, 1,
// поэтому преобразования точно обратимы.
type matrix [3][3]int

func (m matrix) apply(v vec.Vec3) vec.Vec3 {
	return vec.Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

func (m matrix) mul(o matrix) matrix {
	var r matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				r[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return r
}

func (m matrix) transpose() matrix {
	var r matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

// Таблица поворотов вокруг вертикальной оси. Пространство формата:
// X глубина (наружу от лицевой стороны), Y вверх, Z вдоль врат (колонки сетки).
var rotations = map[Facing]matrix{
	East:  {{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	South: {{0, 0, -1}, {0, 1, 0}, {1, 0, 0}},
	West:  {{-1, 0, 0}, {0, 1, 0}, {0, 0, -1}},
	North: {{0, 0, 1}, {0, 1, 0}, {-1, 0, 0}},
}

// mirrorZ отражение оси Z пространства формата
var mirrorZ = matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, -1}}

func rotationFor(f Facing) matrix {
	m, ok := rotations[f]
	if !ok {
		panic(fmt.Sprintf("gate: invalid facing %d", uint8(f)))
	}
	return m
}

// Transform переводит векторы между пространством формата и мировым
// пространством. Значение неизменяемо и безопасно для использования из
// любых горутин.
type Transform struct {
	facing   Facing
	mirrored bool
	toWorld  matrix
	toFormat matrix
}

// NewTransform строит преобразование для направления и признака отражения.
// При отражении ось Z формата после поворота отражается в мировом
// пространстве; обратное преобразование снимает отражение до обратного
// поворота.
func NewTransform(facing Facing, mirrored bool) Transform {
	rot := rotationFor(facing)
	toWorld := rot
	toFormat := rot.transpose()
	if mirrored {
		// R·M·R^T отражает в мире ту ось, в которую поворачивается Z формата
		worldMirror := rot.mul(mirrorZ).mul(rot.transpose())
		toWorld = worldMirror.mul(rot)
		toFormat = rot.transpose().mul(worldMirror)
	}
	return Transform{
		facing:   facing,
		mirrored: mirrored,
		toWorld:  toWorld,
		toFormat: toFormat,
	}
}

// Facing возвращает направление преобразования
func (t Transform) Facing() Facing {
	return t.facing
}

// Mirrored сообщает, включено ли отражение
func (t Transform) Mirrored() bool {
	return t.mirrored
}

// ToWorld переводит вектор формата в мировое смещение
func (t Transform) ToWorld(v vec.Vec3) vec.Vec3 {
	return t.toWorld.apply(v)
}

// ToFormat переводит мировое смещение в вектор формата
func (t Transform) ToFormat(v vec.Vec3) vec.Vec3 {
	return t.toFormat.apply(v)
}

// String для логов
func (t Transform) String() string {
	if t.mirrored {
		return t.facing.String() + "/mirrored"
	}
	return t.facing.String()
}
