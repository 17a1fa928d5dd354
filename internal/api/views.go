package api

import (
	"time"

	"github.com/annel0/mmo-gates/internal/gate"
	"github.com/annel0/mmo-gates/internal/portal"
	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world/block"
)

// FormatView формат в ответах API
type FormatView struct {
	Name             string            `json:"name"`
	FrameCells       int               `json:"frame_cells"`
	IrisCells        int               `json:"iris_cells"`
	ControlCells     int               `json:"control_cells"`
	Exit             vec.Vec3          `json:"exit"`
	Sealable         bool              `json:"sealable"`
	ControlMaterials []string          `json:"control_materials"`
	OpenMaterials    []string          `json:"open_materials"`
	ClosedMaterials  []string          `json:"closed_materials"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Text             string            `json:"text,omitempty"` // только для /api/formats/:name
}

// GateView зарегистрированные врата в ответах API
type GateView struct {
	ID        string         `json:"id"`
	Format    string         `json:"format"`
	Origin    vec.Vec3       `json:"origin"`
	Facing    gate.Facing    `json:"facing"`
	Mirrored  bool           `json:"mirrored"`
	Open      bool           `json:"open"`
	Exit      vec.Vec3       `json:"exit"`
	Sign      *vec.Vec3      `json:"sign,omitempty"`
	Button    *vec.Vec3      `json:"button,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Cells     map[string]int `json:"cells"`
}

// LookupView ответ на запрос занятости позиции
type LookupView struct {
	Pos  vec.Vec3 `json:"pos"`
	Role string   `json:"role"`
	Gate GateView `json:"gate"`
}

func (rs *RestServer) materialNames(set block.Set) []string {
	ids := set.Sorted()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, rs.materials.NameOrID(id))
	}
	return out
}

func (rs *RestServer) formatView(f *gate.Format, withText bool) FormatView {
	view := FormatView{
		Name:             f.Name(),
		FrameCells:       len(f.FrameCells()),
		IrisCells:        len(f.IrisCells()),
		ControlCells:     len(f.ControlCells()),
		Exit:             f.ExitCell(),
		Sealable:         f.SealableBySingleBlocker(),
		ControlMaterials: rs.materialNames(f.ControlMaterials()),
		OpenMaterials:    rs.materialNames(f.OpenMaterials()),
		ClosedMaterials:  rs.materialNames(f.ClosedMaterials()),
	}
	if meta := f.Metadata(); len(meta) > 0 {
		view.Metadata = make(map[string]string, len(meta))
		for _, m := range meta {
			view.Metadata[m.Key] = m.Value
		}
	}
	if withText {
		if text, err := f.MarshalText(); err == nil {
			view.Text = string(text)
		}
	}
	return view
}

func gateView(s portal.Snapshot) GateView {
	view := GateView{
		ID:        s.ID,
		Format:    s.Format,
		Origin:    s.Origin,
		Facing:    s.Facing,
		Mirrored:  s.Mirrored,
		Open:      s.Open,
		Exit:      s.Exit,
		Sign:      s.Sign,
		Button:    s.Button,
		CreatedAt: s.CreatedAt,
		Cells:     make(map[string]int, len(s.Cells)),
	}
	for role, n := range s.Cells {
		view.Cells[role.String()] = n
	}
	return view
}

func gateViews(snaps []portal.Snapshot) []GateView {
	out := make([]GateView, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, gateView(s))
	}
	return out
}
