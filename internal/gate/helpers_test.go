package gate

import (
	"testing"

	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world"
	"github.com/annel0/mmo-gates/internal/world/block"
	"github.com/stretchr/testify/require"
)

// Классические врата 4x5 с двумя управляющими блоками
const squareGate = `X=obsidian
-=obsidian
portal-open=portal
portal-closed=air

XXXX
X..X
-..-
X*.X
XXXX
`

// Несимметричные врата: левая колонка из обсидиана, правая из камня
const lopsidedGate = `X=obsidian
Y=stone
-=obsidian

XXXY
X..Y
-..-
X*.Y
XXXY
`

func mustParse(t *testing.T, name, text string) *Format {
	t.Helper()
	f, err := ParseString(name, text, block.NewDefaultRegistry())
	require.NoError(t, err)
	return f
}

func newTestWorld() *world.World {
	return world.New(block.NewDefaultRegistry(), world.DefaultMinY, world.DefaultMaxY)
}

// buildGate ставит блоки формата в мир так, как их поставил бы игрок
func buildGate(t *testing.T, w *world.World, f *Format, origin vec.Vec3, tr Transform) {
	t.Helper()
	for _, cell := range f.Cells() {
		pos := origin.Add(tr.ToWorld(cell.Vec))
		var id block.BlockID
		switch cell.Role {
		case RoleFrame:
			set, ok := f.FrameMaterials(cell.Vec)
			require.True(t, ok)
			id, _ = set.First()
		case RoleControl:
			id, _ = f.ControlMaterials().First()
		case RoleIris:
			id = f.DefaultClosed()
		}
		require.NoError(t, w.SetBlock(pos, id))
	}
}

func defaultMatcher() *Matcher {
	return NewMatcher(
		block.NewSet(block.SignBlockID),
		block.NewSet(block.StoneButtonBlockID, block.WoodButtonBlockID),
	)
}
