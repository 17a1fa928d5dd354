package vec

import "fmt"

// Vec3 представляет трехмерный вектор с целочисленными координатами.
// Ось Y направлена вверх, X и Z лежат в горизонтальной плоскости.
type Vec3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Zero нулевой вектор
var Zero = Vec3{}

// New создаёт вектор из трёх координат
func New(x, y, z int) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Neg возвращает противоположный вектор
func (v Vec3) Neg() Vec3 {
	return Vec3{X: -v.X, Y: -v.Y, Z: -v.Z}
}

// Up возвращает соседа сверху
func (v Vec3) Up() Vec3 {
	return Vec3{X: v.X, Y: v.Y + 1, Z: v.Z}
}

// Down возвращает соседа снизу
func (v Vec3) Down() Vec3 {
	return Vec3{X: v.X, Y: v.Y - 1, Z: v.Z}
}

// HorizontalNeighbors возвращает четырёх соседей в плоскости XZ.
// Вертикальные соседи сюда не входят.
func (v Vec3) HorizontalNeighbors() [4]Vec3 {
	return [4]Vec3{
		{X: v.X + 1, Y: v.Y, Z: v.Z},
		{X: v.X - 1, Y: v.Y, Z: v.Z},
		{X: v.X, Y: v.Y, Z: v.Z + 1},
		{X: v.X, Y: v.Y, Z: v.Z - 1},
	}
}

// String форматирует вектор как (x,y,z)
func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}
