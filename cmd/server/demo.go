package main

import (
	"context"
	"errors"

	"github.com/annel0/mmo-gates/internal/gate"
	"github.com/annel0/mmo-gates/internal/logging"
	"github.com/annel0/mmo-gates/internal/portal"
	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world"
	"github.com/annel0/mmo-gates/internal/world/block"
)

// Шаг между демо-вратами вдоль оси Z
const demoSpacing = 32

type demoAnchor struct {
	format string
	anchor vec.Vec3
}

// seedDemoWorld ставит по одной постройке каждого формата (лицом на восток)
// и возвращает позиции блоков за табличкой.
func seedDemoWorld(w *world.World, formats []*gate.Format) []demoAnchor {
	tr := gate.NewTransform(gate.East, false)
	anchors := make([]demoAnchor, 0, len(formats))

	for i, f := range formats {
		origin := vec.New(0, 80, i*demoSpacing)
		if err := prepareDemoSite(w, f, origin, tr); err != nil {
			logging.Warn("⚠️ Площадка для демо-врат %s не подготовлена: %v", f.Name(), err)
			continue
		}
		ok := true
		for _, c := range f.Cells() {
			id, found := demoMaterial(f, c)
			if !found {
				ok = false
				break
			}
			if err := w.SetBlock(origin.Add(tr.ToWorld(c.Vec)), id); err != nil {
				logging.Warn("⚠️ Демо-врата %s не помещаются в мир: %v", f.Name(), err)
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		anchors = append(anchors, demoAnchor{format: f.Name(), anchor: origin.Add(tr.ToWorld(f.ControlCells()[0]))})
	}
	return anchors
}

// prepareDemoSite расчищает объём постройки вместе с клетками табличек и
// кладёт под ним каменный пол на клетку шире.
func prepareDemoSite(w *world.World, f *gate.Format, origin vec.Vec3, tr gate.Transform) error {
	lo, hi := origin, origin
	for _, c := range f.Cells() {
		for _, v := range []vec.Vec3{c.Vec, f.ControlPlacement(c.Vec)} {
			p := origin.Add(tr.ToWorld(v))
			lo = vec.New(min(lo.X, p.X), min(lo.Y, p.Y), min(lo.Z, p.Z))
			hi = vec.New(max(hi.X, p.X), max(hi.Y, p.Y), max(hi.Z, p.Z))
		}
	}
	if err := w.Fill(lo, hi, block.AirBlockID); err != nil {
		return err
	}
	return w.Fill(vec.New(lo.X-1, lo.Y-1, lo.Z-1), vec.New(hi.X+1, lo.Y-1, hi.Z+1), block.StoneBlockID)
}

// demoMaterial выбирает материал клетки, который формат примет
func demoMaterial(f *gate.Format, c gate.Cell) (block.BlockID, bool) {
	switch c.Role {
	case gate.RoleIris:
		return f.DefaultClosed(), true
	case gate.RoleControl:
		return f.ControlMaterials().First()
	default:
		set, ok := f.FrameMaterials(c.Vec)
		if !ok {
			return 0, false
		}
		return set.First()
	}
}

// buildDemoGates распознаёт демо-постройки, которые не были восстановлены
// из хранилища.
func buildDemoGates(ctx context.Context, b *portal.Builder, anchors []demoAnchor) {
	for _, a := range anchors {
		if _, _, taken := b.Lookup(a.anchor); taken {
			continue
		}
		p, err := b.Build(ctx, a.anchor, gate.East)
		var conflict *gate.ConflictError
		switch {
		case err == nil:
			logging.Info("🌀 Демо-врата %s построены: %s", a.format, p.ID)
		case errors.As(err, &conflict):
			logging.Warn("⚠️ Демо-врата %s пересекаются с другими: %v", a.format, err)
		default:
			logging.Warn("⚠️ Демо-врата %s не распознаны: %v", a.format, err)
		}
	}
}
