package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandEnvelope(t *testing.T) {
	cmds := []Command{
		SimPress{Button: "up"},
		SimRelease{Button: "up"},
		SetRepeat{Button: "down", Enabled: true},
		SetAxis{Axis: "value", Value: 1234},
		GetState{},
	}
	for _, c := range cmds {
		b, err := MarshalCommand(c)
		require.NoError(t, err)
		got, err := UnmarshalCommand(b)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestUnmarshalCommand_Wire(t *testing.T) {
	c, err := UnmarshalCommand([]byte(`{"type":"set_axis","data":{"axis":"value","value":7}}`))
	require.NoError(t, err)
	assert.Equal(t, SetAxis{Axis: "value", Value: 7}, c)

	_, err = UnmarshalCommand([]byte(`{"type":"sim_press","data":"up"}`))
	assert.Error(t, err)
	_, err = UnmarshalCommand([]byte(`{"type":"nope"}`))
	assert.Error(t, err)
	_, err = UnmarshalCommand([]byte(`not json`))
	assert.Error(t, err)
}
