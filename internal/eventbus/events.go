package eventbus

import "github.com/annel0/mmo-gates/internal/vec"

// Типы событий жизненного цикла врат
const (
	EventGateBuilt     = "gate.built"
	EventGateOpened    = "gate.opened"
	EventGateClosed    = "gate.closed"
	EventGateDestroyed = "gate.destroyed"
)

// GateEventTypes все типы событий врат
var GateEventTypes = []string{EventGateBuilt, EventGateOpened, EventGateClosed, EventGateDestroyed}

// GateEvent полезная нагрузка событий врат
type GateEvent struct {
	GateID   string   `json:"gate_id"`
	Format   string   `json:"format"`
	Origin   vec.Vec3 `json:"origin"`
	Facing   string   `json:"facing"`
	Mirrored bool     `json:"mirrored"`
	Open     bool     `json:"open"`
	Reason   string   `json:"reason,omitempty"` // Причина разрушения
}
