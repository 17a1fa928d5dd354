package world

import (
	"errors"
	"testing"

	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndReadBlocks(t *testing.T) {
	w := New(block.NewDefaultRegistry(), DefaultMinY, DefaultMaxY)

	positions := []vec.Vec3{
		vec.New(0, 0, 0),
		vec.New(-1, 64, -1),
		vec.New(17, -64, -33),
		vec.New(15, 319, 16),
	}
	for _, pos := range positions {
		require.NoError(t, w.SetBlock(pos, block.ObsidianBlockID))
	}
	for _, pos := range positions {
		if got := w.MaterialAt(pos); got != block.ObsidianBlockID {
			t.Errorf("блок в %s: ожидался обсидиан, получено %d", pos, got)
		}
	}
	assert.Equal(t, block.AirBlockID, w.MaterialAt(vec.New(100, 10, 100)))

	// Замена на воздух удаляет блок
	require.NoError(t, w.SetBlock(positions[0], block.AirBlockID))
	assert.Equal(t, block.AirBlockID, w.MaterialAt(positions[0]))
}

func TestWorldBounds(t *testing.T) {
	w := New(nil, 0, 15)
	assert.True(t, w.IsWithinUsableBounds(vec.New(1000, 0, -1000)))
	assert.True(t, w.IsWithinUsableBounds(vec.New(0, 15, 0)))
	assert.False(t, w.IsWithinUsableBounds(vec.New(0, 16, 0)))
	assert.False(t, w.IsWithinUsableBounds(vec.New(0, -1, 0)))

	err := w.SetBlock(vec.New(0, 16, 0), block.StoneBlockID)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestFill(t *testing.T) {
	w := New(nil, DefaultMinY, DefaultMaxY)
	require.NoError(t, w.Fill(vec.New(2, 2, 2), vec.New(0, 0, 0), block.StoneBlockID))

	assert.Equal(t, block.StoneBlockID, w.MaterialAt(vec.New(1, 1, 1)))
	assert.Equal(t, block.AirBlockID, w.MaterialAt(vec.New(3, 1, 1)))
	assert.Equal(t, 1, w.ChunkCount())
}

func TestMaterialResolution(t *testing.T) {
	w := New(nil, DefaultMinY, DefaultMaxY)
	id, ok := w.LookupMaterial("Glowstone")
	require.True(t, ok)
	assert.Equal(t, block.GlowstoneBlockID, id)

	liquids, ok := w.ExpandMaterialTag("liquids")
	require.True(t, ok)
	assert.ElementsMatch(t, []block.BlockID{block.WaterBlockID, block.LavaBlockID}, liquids)
}
