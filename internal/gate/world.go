package gate

import (
	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world/block"
)

// MaterialResolver переводит текстовые обозначения материалов в ID.
// Нужен парсеру форматов.
type MaterialResolver interface {
	// LookupMaterial ищет материал по имени (без учёта регистра) или по
	// устаревшему числовому ID.
	LookupMaterial(name string) (block.BlockID, bool)

	// ExpandMaterialTag раскрывает тег класса материалов (без префикса '#').
	ExpandMaterialTag(tag string) ([]block.BlockID, bool)
}

// WorldQuery доступ к миру, который нужен сопоставителю
type WorldQuery interface {
	// MaterialAt возвращает материал блока в мировой позиции.
	MaterialAt(pos vec.Vec3) block.BlockID

	// IsWithinUsableBounds сообщает, можно ли использовать позицию.
	IsWithinUsableBounds(pos vec.Vec3) bool

	// ExpandMaterialTag раскрывает тег класса материалов.
	ExpandMaterialTag(tag string) ([]block.BlockID, bool)
}

// BlockSetter изменяет блоки мира при открытии и закрытии врат
type BlockSetter interface {
	SetBlock(pos vec.Vec3, id block.BlockID) error
}

// Occupancy отвечает, занята ли мировая позиция какой-либо структурой.
// Реализуется Index.
type Occupancy interface {
	// OccupiedBy возвращает первую роль из списка, под которой позиция
	// зарегистрирована. Пустой список означает все роли.
	OccupiedBy(pos vec.Vec3, roles ...Role) (Role, bool)
}
