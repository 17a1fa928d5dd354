package gate

import (
	"fmt"
	"strings"

	"github.com/annel0/mmo-gates/internal/vec"
)

// MarshalText сериализует формат обратно в текстовое описание.
// Повторный разбор результата даёт эквивалентный набор клеток и материалов.
func (f *Format) MarshalText() ([]byte, error) {
	var b strings.Builder

	for _, sym := range f.symbolsSorted() {
		b.WriteRune(sym)
		b.WriteByte('=')
		b.WriteString(f.symbols[sym].text)
		b.WriteByte('\n')
	}
	b.WriteRune(SymbolControl)
	b.WriteByte('=')
	b.WriteString(f.controlSpec.text)
	b.WriteByte('\n')
	b.WriteString(KeyPortalOpen + "=" + f.open.text + "\n")
	b.WriteString(KeyPortalClosed + "=" + f.closed.text + "\n")
	for _, m := range f.metadata {
		b.WriteString(m.Key + "=" + m.Value + "\n")
	}
	b.WriteByte('\n')

	for _, row := range f.gridRows() {
		b.WriteString(row)
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

// gridRows восстанавливает строки сетки из клеток формата
func (f *Format) gridRows() []string {
	min, max := f.Bounds()
	// Сетка всегда начинается с Y = 0 и Z = 0
	rows := make([]string, 0, -min.Y+1)
	for y := 0; y >= min.Y; y-- {
		line := make([]rune, 0, max.Z+1)
		for z := 0; z <= max.Z; z++ {
			line = append(line, f.symbolAt(vec.Vec3{Y: y, Z: z}))
		}
		rows = append(rows, strings.TrimRight(string(line), " "))
	}
	return rows
}

func (f *Format) symbolAt(cell vec.Vec3) rune {
	role, ok := f.roles[cell]
	if !ok {
		return SymbolBlank
	}
	switch role {
	case RoleFrame:
		return f.frame[cell]
	case RoleIris:
		if cell == f.exit {
			return SymbolExit
		}
		return SymbolIris
	case RoleControl:
		return SymbolControl
	default:
		panic(fmt.Sprintf("gate: unknown role %d", uint8(role)))
	}
}
