package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"keymatrix/matrix"
	"keymatrix/pins"
)

// Config is the top-level YAML configuration for the keymatrixd daemon.
//
// Defaults, file and flag overrides are layered in that order, then
// Validate is called once so the rest of the daemon can assume a
// well-formed config.
type Config struct {
	// Physical matrix and scan timing
	Matrix MatrixConfig `yaml:"matrix"`

	// Buttons in id order; the position in the list is the engine button id.
	Buttons []ButtonConfig `yaml:"buttons"`

	// Auto-repeat acceleration curve
	Repeat RepeatConfig `yaml:"repeat"`

	// Bounded values driven by button pairs
	Axes []AxisConfig `yaml:"axes"`

	// Consumer loop frequency
	PollHz int `yaml:"poll_hz"`

	IPC     IPCConfig     `yaml:"ipc"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

type MatrixConfig struct {
	Backend       string `yaml:"backend"` // "gpio" or "sim"
	RowPins       []int  `yaml:"row_pins"`
	ColPins       []int  `yaml:"col_pins"`
	Pull          string `yaml:"pull"` // column input pull: up|down|float (gpio only)
	Invert        bool   `yaml:"invert"`
	DebounceMS    int    `yaml:"debounce_ms"`
	SettleUS      int    `yaml:"settle_us"`
	BetweenRowsUS int    `yaml:"between_rows_us"`
	ScanPeriodMS  int    `yaml:"scan_period_ms"`
}

type ButtonConfig struct {
	Name   string `yaml:"name"`
	Row    int    `yaml:"row"`
	Col    int    `yaml:"col"`
	Repeat bool   `yaml:"repeat"`
}

type RepeatConfig struct {
	InitialDelayMS int       `yaml:"initial_delay_ms"`
	Thresholds     [3]uint16 `yaml:"thresholds,flow"`
	Steps          [4]int16  `yaml:"steps,flow"`
	DelaysMS       [4]int    `yaml:"delays_ms,flow"`
}

type AxisConfig struct {
	Name         string `yaml:"name"`
	Min          uint32 `yaml:"min"`
	Max          uint32 `yaml:"max"`
	Initial      uint32 `yaml:"initial"`
	Dec          string `yaml:"dec"` // button name
	Inc          string `yaml:"inc"` // button name
	WrapOnPress  bool   `yaml:"wrap_on_press"`
	SnapOnRepeat bool   `yaml:"snap_on_repeat"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	// Port for the websocket state stream. Zero disables the HTTP server.
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config: a simulated 2x2 matrix
// with a down/up pair driving one accelerated axis.
func DefaultConfig() Config {
	profile := matrix.DefaultRepeatProfile()
	var delays [4]int
	for i, d := range profile.Delays {
		delays[i] = int(d / time.Millisecond)
	}

	return Config{
		Matrix: MatrixConfig{
			Backend:       defaultBackend,
			RowPins:       []int{5, 6},
			ColPins:       []int{13, 19},
			Pull:          defaultPull,
			DebounceMS:    int(matrix.DefaultDebounce / time.Millisecond),
			SettleUS:      int(matrix.DefaultSettle / time.Microsecond),
			BetweenRowsUS: int(matrix.DefaultBetweenRows / time.Microsecond),
			ScanPeriodMS:  defaultScanPeriodMS,
		},
		Buttons: []ButtonConfig{
			{Name: "down", Row: 0, Col: 0, Repeat: true},
			{Name: "up", Row: 0, Col: 1, Repeat: true},
			{Name: "select", Row: 1, Col: 0},
			{Name: "back", Row: 1, Col: 1},
		},
		Repeat: RepeatConfig{
			InitialDelayMS: int(matrix.DefaultRepeatInitialDelay / time.Millisecond),
			Thresholds:     profile.Thresholds,
			Steps:          profile.Steps,
			DelaysMS:       delays,
		},
		Axes: []AxisConfig{
			{Name: "value", Min: 0, Max: 9999, Dec: "down", Inc: "up", SnapOnRepeat: true},
		},
		PollHz: defaultPollHz,
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		HTTP: HTTPConfig{
			Port: defaultHTTPPort,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// layoutProbe detects whether a config file declares its own button layout.
type layoutProbe struct {
	Buttons []ButtonConfig `yaml:"buttons"`
	Axes    []AxisConfig   `yaml:"axes"`
}

// LoadConfigFile reads and parses a YAML config file.
//
// Notes:
//   - Unknown fields are rejected (helps catch typos) via KnownFields(true).
//   - A file that declares buttons but no axes drops the default axes, which
//     name default buttons.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	var probe layoutProbe
	if err := yaml.Unmarshal(b, &probe); err == nil && probe.Buttons != nil && probe.Axes == nil {
		cfg.Axes = nil
	}

	return cfg, nil
}

// FlagOverrides are applied on top of a loaded config. Each override is
// only applied if its pointer is non-nil.
type FlagOverrides struct {
	Backend      *string
	Invert       *bool
	DebounceMS   *int
	ScanPeriodMS *int

	PollHz        *int
	IPCSocketPath *string
	HTTPPort      *int

	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
// If the pointer is non-nil, the value is applied (even if it is a "zero value").
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Backend != nil {
		cfg.Matrix.Backend = *o.Backend
	}
	if o.Invert != nil {
		cfg.Matrix.Invert = *o.Invert
	}
	if o.DebounceMS != nil {
		cfg.Matrix.DebounceMS = *o.DebounceMS
	}
	if o.ScanPeriodMS != nil {
		cfg.Matrix.ScanPeriodMS = *o.ScanPeriodMS
	}
	if o.PollHz != nil {
		cfg.PollHz = *o.PollHz
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Matrix
	switch c.Matrix.Backend {
	case backendGPIO:
		if _, err := pins.ParsePull(c.Matrix.Pull); err != nil {
			return fmt.Errorf("matrix.pull: %w", err)
		}
	case backendSim:
	default:
		return fmt.Errorf("matrix.backend must be %q or %q", backendGPIO, backendSim)
	}
	if n := len(c.Matrix.RowPins); n == 0 || n > matrix.MaxRows {
		return fmt.Errorf("matrix.row_pins must list 1..%d pins", matrix.MaxRows)
	}
	if n := len(c.Matrix.ColPins); n == 0 || n > matrix.MaxCols {
		return fmt.Errorf("matrix.col_pins must list 1..%d pins", matrix.MaxCols)
	}
	used := make(map[int]bool)
	for _, p := range append(append([]int(nil), c.Matrix.RowPins...), c.Matrix.ColPins...) {
		if p < 0 {
			return fmt.Errorf("matrix pin %d must be >= 0", p)
		}
		if used[p] {
			return fmt.Errorf("matrix pin %d is used twice", p)
		}
		used[p] = true
	}
	if c.Matrix.DebounceMS < 0 {
		return errors.New("matrix.debounce_ms must be >= 0")
	}
	if c.Matrix.SettleUS < 0 || c.Matrix.BetweenRowsUS < 0 {
		return errors.New("matrix.settle_us and matrix.between_rows_us must be >= 0")
	}
	if c.Matrix.ScanPeriodMS <= 0 || c.Matrix.ScanPeriodMS > 1000 {
		return errors.New("matrix.scan_period_ms must be between 1 and 1000")
	}

	// Buttons
	if n := len(c.Buttons); n == 0 || n > matrix.MaxButtons {
		return fmt.Errorf("buttons must list 1..%d buttons", matrix.MaxButtons)
	}
	names := make(map[string]bool, len(c.Buttons))
	for i, b := range c.Buttons {
		if b.Name == "" {
			return fmt.Errorf("buttons[%d].name is empty", i)
		}
		if names[b.Name] {
			return fmt.Errorf("buttons[%d].name %q is not unique", i, b.Name)
		}
		names[b.Name] = true
		if b.Row < 0 || b.Row >= len(c.Matrix.RowPins) {
			return fmt.Errorf("buttons[%d].row %d is outside the matrix", i, b.Row)
		}
		if b.Col < 0 || b.Col >= len(c.Matrix.ColPins) {
			return fmt.Errorf("buttons[%d].col %d is outside the matrix", i, b.Col)
		}
	}

	// Repeat
	if c.Repeat.InitialDelayMS < 0 {
		return errors.New("repeat.initial_delay_ms must be >= 0")
	}
	for i, d := range c.Repeat.DelaysMS {
		if d <= 0 {
			return fmt.Errorf("repeat.delays_ms[%d] must be > 0", i)
		}
	}
	if err := c.ToRepeatProfile().Validate(); err != nil {
		return fmt.Errorf("repeat.thresholds: %w", err)
	}

	// Axes
	axisNames := make(map[string]bool, len(c.Axes))
	for i, a := range c.Axes {
		if a.Name == "" {
			return fmt.Errorf("axes[%d].name is empty", i)
		}
		if axisNames[a.Name] {
			return fmt.Errorf("axes[%d].name %q is not unique", i, a.Name)
		}
		axisNames[a.Name] = true
		if a.Min > a.Max {
			return fmt.Errorf("axes[%d] (%s): min must be <= max", i, a.Name)
		}
		if a.Initial < a.Min || a.Initial > a.Max {
			return fmt.Errorf("axes[%d] (%s): initial must be within [min, max]", i, a.Name)
		}
		if !names[a.Dec] {
			return fmt.Errorf("axes[%d] (%s): unknown dec button %q", i, a.Name, a.Dec)
		}
		if !names[a.Inc] {
			return fmt.Errorf("axes[%d] (%s): unknown inc button %q", i, a.Name, a.Inc)
		}
		if a.Dec == a.Inc {
			return fmt.Errorf("axes[%d] (%s): dec and inc must be different buttons", i, a.Name)
		}
	}

	if c.PollHz <= 0 || c.PollHz > 1000 {
		return errors.New("poll_hz must be between 1 and 1000")
	}
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// buttonIDs maps button names to engine ids.
func (c *Config) buttonIDs() map[string]int {
	ids := make(map[string]int, len(c.Buttons))
	for i, b := range c.Buttons {
		ids[b.Name] = i
	}
	return ids
}

// ToMatrixConfig converts the file config into the engine configuration.
func (c *Config) ToMatrixConfig() matrix.Config {
	m := make([]matrix.Mapping, len(c.Buttons))
	for i, b := range c.Buttons {
		m[i] = matrix.Mapping{ID: i, Row: b.Row, Col: b.Col}
	}
	return matrix.Config{
		RowPins:     append([]int(nil), c.Matrix.RowPins...),
		ColPins:     append([]int(nil), c.Matrix.ColPins...),
		Map:         m,
		ButtonCount: len(c.Buttons),
		InvertLogic: c.Matrix.Invert,
		Debounce:    time.Duration(c.Matrix.DebounceMS) * time.Millisecond,
	}
}

// ToRepeatProfile converts the repeat section into an engine profile.
func (c *Config) ToRepeatProfile() matrix.RepeatProfile {
	p := matrix.RepeatProfile{
		Thresholds: c.Repeat.Thresholds,
		Steps:      c.Repeat.Steps,
	}
	for i, ms := range c.Repeat.DelaysMS {
		p.Delays[i] = time.Duration(ms) * time.Millisecond
	}
	return p
}

// axisBinding is a configured axis resolved to engine button ids.
type axisBinding struct {
	Name    string
	Axis    matrix.Axis
	Initial uint32
}

// ToAxes resolves axis button names. Call after Validate.
func (c *Config) ToAxes() []axisBinding {
	ids := c.buttonIDs()
	out := make([]axisBinding, 0, len(c.Axes))
	for _, a := range c.Axes {
		out = append(out, axisBinding{
			Name: a.Name,
			Axis: matrix.Axis{
				Min:          a.Min,
				Max:          a.Max,
				Dec:          ids[a.Dec],
				Inc:          ids[a.Inc],
				WrapOnPress:  a.WrapOnPress,
				SnapOnRepeat: a.SnapOnRepeat,
			},
			Initial: a.Initial,
		})
	}
	return out
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
