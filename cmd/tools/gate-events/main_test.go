package main

import (
	"bytes"
	"testing"

	"github.com/annel0/mmo-gates/internal/eventbus"
	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringList(t *testing.T) {
	assert.Nil(t, parseStringList(""))
	assert.Equal(t, []string{"gate.built", "gate.opened"}, parseStringList(" gate.built, ,gate.opened "))
}

func TestValidateTypes(t *testing.T) {
	assert.NoError(t, validateTypes([]string{eventbus.EventGateBuilt, eventbus.EventGateDestroyed}))
	assert.Error(t, validateTypes([]string{"player.join"}))
}

func TestPrintEvent(t *testing.T) {
	ev, err := eventbus.NewEnvelope(eventbus.EventGateDestroyed, "portal", 5, eventbus.GateEvent{
		GateID: "g-1",
		Format: "nether",
		Origin: vec.New(1, 2, 3),
		Facing: "east",
		Reason: "frame_broken",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	printEvent(&buf, ev)
	out := buf.String()
	assert.Contains(t, out, "portal/gate.destroyed [high]")
	assert.Contains(t, out, "Gate: g-1 Format: nether")
	assert.Contains(t, out, "Reason: frame_broken")
}

func TestShowTypes(t *testing.T) {
	var buf bytes.Buffer
	showTypes(&buf)
	assert.Contains(t, buf.String(), "gate.built (subject events.gate.built)")
}
