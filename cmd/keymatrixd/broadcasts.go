package main

import (
	"time"

	"keymatrix/matrix"
)

// StateBroadcast is a state change emitted by the daemon loop for websocket
// clients. The broadcaster converts each into a typed outbound event.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastAxisChanged reports a new axis value
type BroadcastAxisChanged struct {
	Axis  string
	Value uint32
	At    time.Time
}

// BroadcastButton reports a consumed event of a button not bound to an axis
type BroadcastButton struct {
	Button     string
	Kind       matrix.EventKind
	Multiplier int16
	At         time.Time
}

func (BroadcastAxisChanged) broadcastMarker() {}
func (BroadcastButton) broadcastMarker()      {}

// ButtonView is one button in a StateSnapshot
type ButtonView struct {
	Name string `json:"name"`
	matrix.ButtonState
}

// AxisView is one axis in a StateSnapshot
type AxisView struct {
	Name  string `json:"name"`
	Value uint32 `json:"value"`
	Min   uint32 `json:"min"`
	Max   uint32 `json:"max"`
}

// StateSnapshot is the daemon state sent on websocket connect and returned
// by the get_state command
type StateSnapshot struct {
	Configured bool         `json:"configured"`
	Buttons    []ButtonView `json:"buttons"`
	Axes       []AxisView   `json:"axes"`
}
