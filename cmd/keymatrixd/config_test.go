package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keymatrix/matrix"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	mc := cfg.ToMatrixConfig()
	assert.Equal(t, len(cfg.Buttons), mc.ButtonCount)
	assert.Equal(t, matrix.DefaultDebounce, mc.Debounce)
	assert.Equal(t, matrix.Mapping{ID: 1, Row: 0, Col: 1}, mc.Map[1])

	assert.Equal(t, matrix.DefaultRepeatProfile(), cfg.ToRepeatProfile())
}

func TestParseConfig_OverridesDefaults(t *testing.T) {
	cfg, err := parseConfig([]byte(`
matrix:
  backend: gpio
  row_pins: [17, 27, 22]
  col_pins: [23, 24]
  pull: up
  invert: true
  debounce_ms: 20
buttons:
  - {name: left, row: 0, col: 0, repeat: true}
  - {name: right, row: 0, col: 1, repeat: true}
  - {name: ok, row: 2, col: 1}
repeat:
  initial_delay_ms: 400
  thresholds: [5, 10, 20]
  steps: [1, 2, 5, 10]
  delays_ms: [100, 90, 80, 70]
axes:
  - {name: channel, min: 1, max: 99, initial: 1, dec: left, inc: right, wrap_on_press: true}
poll_hz: 100
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, backendGPIO, cfg.Matrix.Backend)
	assert.Equal(t, defaultScanPeriodMS, cfg.Matrix.ScanPeriodMS, "unset fields keep defaults")
	assert.Equal(t, 100, cfg.PollHz)

	mc := cfg.ToMatrixConfig()
	assert.True(t, mc.InvertLogic)
	assert.Equal(t, 20*time.Millisecond, mc.Debounce)
	assert.Equal(t, matrix.Mapping{ID: 2, Row: 2, Col: 1}, mc.Map[2])

	p := cfg.ToRepeatProfile()
	assert.Equal(t, [3]uint16{5, 10, 20}, p.Thresholds)
	assert.Equal(t, 70*time.Millisecond, p.Delays[3])

	axes := cfg.ToAxes()
	require.Len(t, axes, 1)
	assert.Equal(t, matrix.Axis{Min: 1, Max: 99, Dec: 0, Inc: 1, WrapOnPress: true}, axes[0].Axis)
	assert.Equal(t, uint32(1), axes[0].Initial)
}

func TestParseConfig_ButtonsWithoutAxesDropDefaultAxes(t *testing.T) {
	cfg, err := parseConfig([]byte(`
buttons:
  - {name: a, row: 0, col: 0}
`))
	require.NoError(t, err)
	assert.Empty(t, cfg.Axes)
	require.NoError(t, cfg.Validate())
}

func TestParseConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "matrix:\n  rows: 3\n"},
		{"trailing document", "poll_hz: 10\n---\npoll_hz: 20\n"},
		{"trailing document with unknown key", "poll_hz: 20\n---\nbogus: 1\n"},
		{"trailing scalar document", "poll_hz: 20\n---\nhello\n"},
		{"wrong array length", "repeat:\n  thresholds: [1, 2]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseConfig_TrailingComment(t *testing.T) {
	cfg, err := parseConfig([]byte("poll_hz: 20\n# end of file\n"))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.PollHz)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keymatrixd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll_hz: 25\nlogging:\n  level: debug\n"), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.PollHz)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfigFile("")
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"backend", func(c *Config) { c.Matrix.Backend = "usb" }},
		{"gpio pull", func(c *Config) { c.Matrix.Backend = backendGPIO; c.Matrix.Pull = "sideways" }},
		{"no rows", func(c *Config) { c.Matrix.RowPins = nil }},
		{"too many cols", func(c *Config) { c.Matrix.ColPins = []int{1, 2, 3, 4, 7, 8, 9, 10, 11} }},
		{"pin reused", func(c *Config) { c.Matrix.ColPins = []int{5, 19} }},
		{"negative debounce", func(c *Config) { c.Matrix.DebounceMS = -1 }},
		{"scan period", func(c *Config) { c.Matrix.ScanPeriodMS = 0 }},
		{"no buttons", func(c *Config) { c.Buttons = nil; c.Axes = nil }},
		{"duplicate name", func(c *Config) { c.Buttons[1].Name = "down" }},
		{"button off matrix", func(c *Config) { c.Buttons[0].Row = 2 }},
		{"decreasing thresholds", func(c *Config) { c.Repeat.Thresholds = [3]uint16{30, 12, 70} }},
		{"zero delay", func(c *Config) { c.Repeat.DelaysMS[2] = 0 }},
		{"axis min > max", func(c *Config) { c.Axes[0].Min = 10; c.Axes[0].Max = 5 }},
		{"axis initial", func(c *Config) { c.Axes[0].Initial = 10000 }},
		{"axis button", func(c *Config) { c.Axes[0].Inc = "nope" }},
		{"axis same button", func(c *Config) { c.Axes[0].Inc = c.Axes[0].Dec }},
		{"poll hz", func(c *Config) { c.PollHz = 0 }},
		{"socket", func(c *Config) { c.IPC.SocketPath = "" }},
		{"http port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	backend := backendGPIO
	pollHz := 0
	level := "debug"

	FlagOverrides{Backend: &backend, PollHz: &pollHz, LogLevel: &level}.Apply(&cfg)

	assert.Equal(t, backendGPIO, cfg.Matrix.Backend)
	assert.Equal(t, 0, cfg.PollHz, "zero values are applied")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, defaultSocketPath, cfg.IPC.SocketPath, "nil overrides are ignored")

	FlagOverrides{}.Apply(nil)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/etc/x.yaml", ExpandPath("/etc/x.yaml"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "k.yaml"), ExpandPath("~/k.yaml"))
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := parseLogLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	_, err = parseLogLevel("trace")
	assert.Error(t, err)
}
