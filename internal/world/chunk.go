package world

import (
	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world/block"
)

// ChunkSize размер чанка по горизонтали
const ChunkSize = 16

// ChunkCoord координаты чанка в плоскости XZ
type ChunkCoord struct {
	X, Z int
}

// ChunkCoordOf возвращает координаты чанка, содержащего мировую позицию
func ChunkCoordOf(pos vec.Vec3) ChunkCoord {
	return ChunkCoord{X: pos.X >> 4, Z: pos.Z >> 4} // Деление на 16
}

// localInChunk возвращает локальные координаты внутри чанка (Y не меняется)
func localInChunk(pos vec.Vec3) vec.Vec3 {
	return vec.Vec3{X: pos.X & 0xF, Y: pos.Y, Z: pos.Z & 0xF} // Модуль 16
}

// Chunk представляет столб мира 16x16 блоков по горизонтали.
// Хранятся только непустые блоки; отсутствие записи означает воздух.
type Chunk struct {
	Coords ChunkCoord
	blocks map[vec.Vec3]block.BlockID
}

// NewChunk создаёт пустой чанк
func NewChunk(coords ChunkCoord) *Chunk {
	return &Chunk{
		Coords: coords,
		blocks: make(map[vec.Vec3]block.BlockID),
	}
}

// GetBlock возвращает блок по локальным координатам
func (c *Chunk) GetBlock(local vec.Vec3) block.BlockID {
	id, exists := c.blocks[local]
	if !exists {
		return block.AirBlockID
	}
	return id
}

// SetBlock устанавливает блок по локальным координатам
func (c *Chunk) SetBlock(local vec.Vec3, id block.BlockID) {
	if id == block.AirBlockID {
		delete(c.blocks, local)
	} else {
		c.blocks[local] = id
	}
}

// BlockCount возвращает количество непустых блоков
func (c *Chunk) BlockCount() int {
	return len(c.blocks)
}
