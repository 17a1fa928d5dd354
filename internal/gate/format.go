package gate

import (
	"fmt"
	"sort"

	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world/block"
)

// Символы сетки с фиксированным смыслом
const (
	SymbolBlank   = ' '
	SymbolIris    = '.'
	SymbolExit    = '*'
	SymbolControl = '-'
)

// Зарезервированные ключи заголовка
const (
	KeyPortalOpen   = "portal-open"
	KeyPortalClosed = "portal-closed"
)

// Материалы поверхности по умолчанию
const (
	DefaultOpenSpec   = "portal"
	DefaultClosedSpec = "air"
)

// placementOffset смещение точки установки таблички/кнопки от управляющего
// блока: на одну клетку вперёд от лицевой стороны.
var placementOffset = vec.Vec3{X: 1}

// Cell клетка формата с её структурной ролью
type Cell struct {
	Vec  vec.Vec3
	Role Role
}

// MetaEntry нераспознанная пара ключ=значение заголовка
type MetaEntry struct {
	Key   string
	Value string
}

// materialSpec разобранная спецификация набора материалов
type materialSpec struct {
	text      string        // Нормализованный исходный текст
	materials block.Set     // Итоговое множество
	first     block.BlockID // Первый перечисленный материал
}

// Format неизменяемое описание формы врат. Создаётся парсером; после
// создания не меняется и может разделяться любым числом экземпляров и горутин.
type Format struct {
	name string

	frame       map[vec.Vec3]rune // Клетка рамки -> символ
	frameOrder  []vec.Vec3
	symbols     map[rune]materialSpec
	iris        []vec.Vec3
	exit        vec.Vec3
	control     []vec.Vec3
	controlSpec materialSpec

	open   materialSpec
	closed materialSpec

	metadata []MetaEntry
	roles    map[vec.Vec3]Role
	sealable bool
}

// Name возвращает имя формата
func (f *Format) Name() string {
	return f.name
}

// FrameCells возвращает клетки рамки в порядке чтения сетки
func (f *Format) FrameCells() []vec.Vec3 {
	return cloneVecs(f.frameOrder)
}

// FrameMaterials возвращает допустимые материалы клетки рамки
func (f *Format) FrameMaterials(cell vec.Vec3) (block.Set, bool) {
	sym, ok := f.frame[cell]
	if !ok {
		return nil, false
	}
	return f.symbols[sym].materials, true
}

// IrisCells возвращает клетки поверхности портала
func (f *Format) IrisCells() []vec.Vec3 {
	return cloneVecs(f.iris)
}

// ExitCell возвращает клетку выхода
func (f *Format) ExitCell() vec.Vec3 {
	return f.exit
}

// ControlCells возвращает управляющие клетки в порядке чтения сетки
func (f *Format) ControlCells() []vec.Vec3 {
	return cloneVecs(f.control)
}

// ControlPlacement возвращает клетку перед управляющим блоком, где стоит
// табличка или кнопка.
func (f *Format) ControlPlacement(cell vec.Vec3) vec.Vec3 {
	return cell.Add(placementOffset)
}

// ControlMaterials возвращает допустимые материалы управляющих блоков
func (f *Format) ControlMaterials() block.Set {
	return f.controlSpec.materials
}

// OpenMaterials материалы открытой поверхности
func (f *Format) OpenMaterials() block.Set {
	return f.open.materials
}

// ClosedMaterials материалы закрытой поверхности
func (f *Format) ClosedMaterials() block.Set {
	return f.closed.materials
}

// DefaultOpen материал, которым заполняется поверхность при открытии
func (f *Format) DefaultOpen() block.BlockID {
	return f.open.first
}

// DefaultClosed материал, которым заполняется поверхность при закрытии
func (f *Format) DefaultClosed() block.BlockID {
	return f.closed.first
}

// SealableBySingleBlocker истинно, если поверхность состоит ровно из двух
// клеток одна над другой.
func (f *Format) SealableBySingleBlocker() bool {
	return f.sealable
}

// Metadata возвращает нераспознанные ключи заголовка в исходном порядке
func (f *Format) Metadata() []MetaEntry {
	out := make([]MetaEntry, len(f.metadata))
	copy(out, f.metadata)
	return out
}

// Option возвращает значение нераспознанного ключа заголовка
func (f *Format) Option(key string) (string, bool) {
	for i := len(f.metadata) - 1; i >= 0; i-- {
		if f.metadata[i].Key == key {
			return f.metadata[i].Value, true
		}
	}
	return "", false
}

// RoleAt возвращает роль клетки формата
func (f *Format) RoleAt(cell vec.Vec3) (Role, bool) {
	r, ok := f.roles[cell]
	return r, ok
}

// Cells возвращает все клетки: рамку, затем управляющие, затем поверхность
func (f *Format) Cells() []Cell {
	cells := make([]Cell, 0, len(f.frameOrder)+len(f.control)+len(f.iris))
	for _, v := range f.frameOrder {
		cells = append(cells, Cell{Vec: v, Role: RoleFrame})
	}
	for _, v := range f.control {
		cells = append(cells, Cell{Vec: v, Role: RoleControl})
	}
	for _, v := range f.iris {
		cells = append(cells, Cell{Vec: v, Role: RoleIris})
	}
	return cells
}

// Allows проверяет, может ли материал стоять в клетке с указанной ролью
func (f *Format) Allows(role Role, cell vec.Vec3, id block.BlockID) bool {
	switch role {
	case RoleFrame:
		sym, ok := f.frame[cell]
		if !ok {
			return false
		}
		return f.symbols[sym].materials.Contains(id)
	case RoleIris:
		return f.open.materials.Contains(id) || f.closed.materials.Contains(id)
	case RoleControl:
		return f.controlSpec.materials.Contains(id)
	default:
		panic(fmt.Sprintf("gate: unknown role %d", uint8(role)))
	}
}

// Size возвращает количество клеток всех ролей
func (f *Format) Size() int {
	return len(f.frameOrder) + len(f.control) + len(f.iris)
}

// Bounds возвращает минимальный и максимальный углы формата
func (f *Format) Bounds() (min, max vec.Vec3) {
	first := true
	for cell := range f.roles {
		if first {
			min, max = cell, cell
			first = false
			continue
		}
		min = vec.Vec3{X: minInt(min.X, cell.X), Y: minInt(min.Y, cell.Y), Z: minInt(min.Z, cell.Z)}
		max = vec.Vec3{X: maxInt(max.X, cell.X), Y: maxInt(max.Y, cell.Y), Z: maxInt(max.Z, cell.Z)}
	}
	return min, max
}

// symbolsSorted возвращает объявленные символы рамки по возрастанию
func (f *Format) symbolsSorted() []rune {
	syms := make([]rune, 0, len(f.symbols))
	for s := range f.symbols {
		syms = append(syms, s)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	return syms
}

func isSealable(iris []vec.Vec3) bool {
	if len(iris) != 2 {
		return false
	}
	a, b := iris[0], iris[1]
	if a.X != b.X || a.Z != b.Z {
		return false
	}
	dy := a.Y - b.Y
	return dy == 1 || dy == -1
}

func cloneVecs(in []vec.Vec3) []vec.Vec3 {
	out := make([]vec.Vec3, len(in))
	copy(out, in)
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
