package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// IPC Commands
// ============================================================================
// Commands are sent by IPC clients and executed by the daemon loop, which
// owns the engine consumer side and the axis values.
// ============================================================================

// Command is a request executed by the daemon loop
type Command interface {
	commandMarker()
}

// SimPress closes the switch of a button on the simulated matrix
type SimPress struct {
	Button string `json:"button"`
}

// SimRelease opens the switch of a button on the simulated matrix
type SimRelease struct {
	Button string `json:"button"`
}

// SetRepeat enables or disables auto-repeat for a button
type SetRepeat struct {
	Button  string `json:"button"`
	Enabled bool   `json:"enabled"`
}

// SetAxis overwrites the value of an axis
type SetAxis struct {
	Axis  string `json:"axis"`
	Value uint32 `json:"value"`
}

// GetState requests a StateSnapshot
type GetState struct{}

func (SimPress) commandMarker()   {}
func (SimRelease) commandMarker() {}
func (SetRepeat) commandMarker()  {}
func (SetAxis) commandMarker()    {}
func (GetState) commandMarker()   {}

// CommandEnvelope wraps a command with a type discriminator for JSON marshaling
type CommandEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalCommand deserializes a JSON command envelope into a concrete Command
func UnmarshalCommand(data []byte) (Command, error) {
	var env CommandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "sim_press":
		var c SimPress
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal SimPress: %w", err)
		}
		return c, nil

	case "sim_release":
		var c SimRelease
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal SimRelease: %w", err)
		}
		return c, nil

	case "set_repeat":
		var c SetRepeat
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal SetRepeat: %w", err)
		}
		return c, nil

	case "set_axis":
		var c SetAxis
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal SetAxis: %w", err)
		}
		return c, nil

	case "get_state":
		return GetState{}, nil

	default:
		return nil, fmt.Errorf("unknown command type: %q", env.Type)
	}
}

// MarshalCommand serializes a Command into a JSON envelope with type discriminator
func MarshalCommand(c Command) ([]byte, error) {
	var env CommandEnvelope

	switch c := c.(type) {
	case SimPress:
		env.Type = "sim_press"
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal SimPress: %w", err)
		}
		env.Data = data

	case SimRelease:
		env.Type = "sim_release"
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal SimRelease: %w", err)
		}
		env.Data = data

	case SetRepeat:
		env.Type = "set_repeat"
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal SetRepeat: %w", err)
		}
		env.Data = data

	case SetAxis:
		env.Type = "set_axis"
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal SetAxis: %w", err)
		}
		env.Data = data

	case GetState:
		env.Type = "get_state"

	default:
		return nil, fmt.Errorf("unsupported command type: %T", c)
	}

	return json.Marshal(env)
}
