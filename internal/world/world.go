package world

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world/block"
)

// Границы высоты мира по умолчанию
const (
	DefaultMinY = -64
	DefaultMaxY = 319
)

// ErrOutOfBounds позиция вне допустимых границ мира
var ErrOutOfBounds = errors.New("position out of world bounds")

// World хранит блоки в разреженных чанках и отвечает на запросы о материалах.
// Реализует интерфейсы gate.WorldQuery и gate.BlockSetter.
type World struct {
	mu        sync.RWMutex
	chunks    map[ChunkCoord]*Chunk
	materials *block.Registry
	minY      int
	maxY      int
}

// New создаёт пустой мир с указанными границами высоты
func New(materials *block.Registry, minY, maxY int) *World {
	if materials == nil {
		materials = block.NewDefaultRegistry()
	}
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return &World{
		chunks:    make(map[ChunkCoord]*Chunk),
		materials: materials,
		minY:      minY,
		maxY:      maxY,
	}
}

// Materials возвращает регистр материалов мира
func (w *World) Materials() *block.Registry {
	return w.materials
}

// MaterialAt возвращает материал блока в мировой позиции
func (w *World) MaterialAt(pos vec.Vec3) block.BlockID {
	w.mu.RLock()
	defer w.mu.RUnlock()

	chunk, exists := w.chunks[ChunkCoordOf(pos)]
	if !exists {
		return block.AirBlockID
	}
	return chunk.GetBlock(localInChunk(pos))
}

// IsWithinUsableBounds проверяет, что позиция лежит в пределах высоты мира
func (w *World) IsWithinUsableBounds(pos vec.Vec3) bool {
	return pos.Y >= w.minY && pos.Y <= w.maxY
}

// ExpandMaterialTag раскрывает тег класса материалов
func (w *World) ExpandMaterialTag(tag string) ([]block.BlockID, bool) {
	return w.materials.ExpandTag(tag)
}

// LookupMaterial ищет материал по имени или устаревшему числовому ID
func (w *World) LookupMaterial(name string) (block.BlockID, bool) {
	return w.materials.Lookup(name)
}

// SetBlock устанавливает блок в мировой позиции
func (w *World) SetBlock(pos vec.Vec3, id block.BlockID) error {
	if !w.IsWithinUsableBounds(pos) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	coords := ChunkCoordOf(pos)
	chunk, exists := w.chunks[coords]
	if !exists {
		if id == block.AirBlockID {
			return nil
		}
		chunk = NewChunk(coords)
		w.chunks[coords] = chunk
	}
	chunk.SetBlock(localInChunk(pos), id)
	return nil
}

// Fill заполняет прямоугольный объём между двумя углами включительно
func (w *World) Fill(from, to vec.Vec3, id block.BlockID) error {
	minX, maxX := order(from.X, to.X)
	minY, maxY := order(from.Y, to.Y)
	minZ, maxZ := order(from.Z, to.Z)

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				if err := w.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, id); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ChunkCount возвращает количество загруженных чанков
func (w *World) ChunkCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

func order(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
