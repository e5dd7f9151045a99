package pins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestParsePull(t *testing.T) {
	tests := []struct {
		in      string
		want    gpio.Pull
		wantErr bool
	}{
		{"down", gpio.PullDown, false},
		{"UP", gpio.PullUp, false},
		{"float", gpio.Float, false},
		{"", gpio.Float, false},
		{"sideways", gpio.PullNoChange, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePull(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPins_DriveAndRead(t *testing.T) {
	row := &gpiotest.Pin{N: "GPIO5", Num: 5}
	col := &gpiotest.Pin{N: "GPIO6", Num: 6}
	p := newPins(map[int]gpio.PinIO{5: row, 6: col}, gpio.PullDown)

	require.NoError(t, p.SetupOutput(5))
	assert.Equal(t, gpio.Low, row.L)
	require.NoError(t, p.SetupInput(6))
	assert.Equal(t, gpio.PullDown, col.P)
	assert.False(t, p.Read(6))

	require.NoError(t, p.Drive(5, true))
	assert.Equal(t, gpio.High, row.L)
	require.NoError(t, p.Drive(5, false))
	assert.Equal(t, gpio.Low, row.L)

	col.L = gpio.High
	assert.True(t, p.Read(6))
	require.NoError(t, p.Halt())
}

func TestPins_UnknownPin(t *testing.T) {
	p := newPins(map[int]gpio.PinIO{}, gpio.Float)
	assert.Error(t, p.SetupOutput(1))
	assert.Error(t, p.SetupInput(1))
	assert.Error(t, p.Drive(1, true))
	assert.False(t, p.Read(1))
}
