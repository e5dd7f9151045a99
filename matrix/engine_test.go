package matrix

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLines is an in-memory matrix: a read of a column pin is high when a
// row pin driven high has a closed switch to it.
type fakeLines struct {
	mu        sync.Mutex
	high      map[int]bool
	closed    map[[2]int]bool
	outputs   []int
	inputs    []int
	failDrive error
	failSetup error
	reads     int
}

func newFakeLines() *fakeLines {
	return &fakeLines{
		high:   make(map[int]bool),
		closed: make(map[[2]int]bool),
	}
}

func (f *fakeLines) SetupOutput(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetup != nil {
		return f.failSetup
	}
	f.outputs = append(f.outputs, pin)
	return nil
}

func (f *fakeLines) SetupInput(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, pin)
	return nil
}

func (f *fakeLines) Drive(pin int, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDrive != nil && high {
		return f.failDrive
	}
	f.high[pin] = high
	return nil
}

func (f *fakeLines) Read(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	for sw, on := range f.closed {
		if on && sw[1] == pin && f.high[sw[0]] {
			return true
		}
	}
	return false
}

func (f *fakeLines) set(rowPin, colPin int, on bool) {
	f.mu.Lock()
	f.closed[[2]int{rowPin, colPin}] = on
	f.mu.Unlock()
}

func (f *fakeLines) anyHigh() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.high {
		if h {
			return true
		}
	}
	return false
}

func noDelay(time.Duration) {}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakeLines) {
	t.Helper()
	lines := newFakeLines()
	e := NewEngine(EngineOptions{Lines: lines, Clock: NewManualClock(0), Delay: noDelay})
	require.NoError(t, e.Configure(cfg))
	return e, lines
}

// oneButton is a 1x1 matrix with no debounce window.
func oneButton() Config {
	return Config{
		RowPins:     []int{10},
		ColPins:     []int{20},
		Map:         []Mapping{{ID: 0, Row: 0, Col: 0}},
		ButtonCount: 1,
	}
}

// twoButtons maps button 0 to (0,0) and button 1 to (0,1).
func twoButtons() Config {
	return Config{
		RowPins:     []int{10},
		ColPins:     []int{20, 21},
		Map:         []Mapping{{ID: 0, Row: 0, Col: 0}, {ID: 1, Row: 0, Col: 1}},
		ButtonCount: 2,
	}
}

func grid(cells ...[2]int) *Grid {
	var g Grid
	for _, c := range cells {
		g[c[0]][c[1]] = true
	}
	return &g
}

func TestConfigure_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		lines bool
	}{
		{"no lines", func(*Config) {}, false},
		{"zero rows", func(c *Config) { c.RowPins = nil }, true},
		{"too many rows", func(c *Config) { c.RowPins = make([]int, MaxRows+1) }, true},
		{"zero cols", func(c *Config) { c.ColPins = nil }, true},
		{"too many cols", func(c *Config) { c.ColPins = make([]int, MaxCols+1) }, true},
		{"zero buttons", func(c *Config) { c.ButtonCount = 0 }, true},
		{"too many buttons", func(c *Config) { c.ButtonCount = MaxButtons + 1 }, true},
		{"empty map", func(c *Config) { c.Map = nil }, true},
		{"map longer than buttons", func(c *Config) {
			c.Map = []Mapping{{0, 0, 0}, {1, 0, 1}, {0, 0, 1}}
		}, true},
		{"duplicate id", func(c *Config) {
			c.Map = []Mapping{{0, 0, 0}, {0, 0, 1}}
		}, true},
		{"negative debounce", func(c *Config) { c.Debounce = -time.Millisecond }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := twoButtons()
			tt.mod(&cfg)
			var lines Lines
			if tt.lines {
				lines = newFakeLines()
			}
			e := NewEngine(EngineOptions{Lines: lines, Delay: noDelay})
			err := e.Configure(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.False(t, e.Configured())
			assert.Zero(t, e.ButtonCount())
		})
	}
}

func TestConfigure_OutOfRangeEntriesIgnored(t *testing.T) {
	cfg := Config{
		RowPins:     []int{10},
		ColPins:     []int{20, 21},
		Map:         []Mapping{{ID: 0, Row: 0, Col: 0}, {ID: 1, Row: 3, Col: 0}, {ID: 7, Row: 0, Col: 1}},
		ButtonCount: 3,
	}
	e, _ := newTestEngine(t, cfg)

	e.Process(grid([2]int{0, 0}, [2]int{0, 1}), 0)
	assert.True(t, e.IsDown(0))
	assert.False(t, e.IsDown(1), "unmapped button stays released")
	assert.False(t, e.IsDown(2))
	assert.Equal(t, 1, e.EventCount())
}

func TestConfigure_FailureSilencesEngine(t *testing.T) {
	e, lines := newTestEngine(t, oneButton())
	lines.set(10, 20, true)
	require.NoError(t, e.Update())
	require.True(t, e.IsDown(0))

	bad := oneButton()
	bad.ButtonCount = 0
	require.ErrorIs(t, e.Configure(bad), ErrInvalidConfig)

	lines.set(10, 20, false)
	require.NoError(t, e.Update())
	lines.set(10, 20, true)
	require.NoError(t, e.Update())
	assert.Zero(t, e.EventCount())
	assert.False(t, e.TryConsumePress(0))
	assert.False(t, e.TryConsumeRelease(0))

	require.NoError(t, e.Configure(oneButton()))
	require.NoError(t, e.Update())
	assert.Equal(t, 1, e.EventCount())
	assert.True(t, e.TryConsumePress(0))
}

func TestConfigure_LineSetupFailure(t *testing.T) {
	lines := newFakeLines()
	lines.failSetup = errors.New("pin busy")
	e := NewEngine(EngineOptions{Lines: lines, Delay: noDelay})

	err := e.Configure(oneButton())
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "pin busy")
	assert.False(t, e.Configured())
}

func TestConfigure_ResetsState(t *testing.T) {
	e, _ := newTestEngine(t, oneButton())
	require.True(t, e.SetRepeatEnabled(0, true))
	e.Process(grid([2]int{0, 0}), 0)
	require.True(t, e.IsDown(0))

	require.NoError(t, e.Configure(oneButton()))
	assert.False(t, e.IsDown(0))
	assert.False(t, e.TryConsumePress(0))
	assert.False(t, e.Snapshot().Buttons[0].RepeatEnabled)
}

func TestUpdate_ScansRowsAndReleasesThem(t *testing.T) {
	cfg := Config{
		RowPins:     []int{10, 11},
		ColPins:     []int{20, 21},
		Map:         []Mapping{{0, 0, 0}, {1, 0, 1}, {2, 1, 0}, {3, 1, 1}},
		ButtonCount: 4,
	}
	e, lines := newTestEngine(t, cfg)
	assert.ElementsMatch(t, []int{10, 11}, lines.outputs)
	assert.ElementsMatch(t, []int{20, 21}, lines.inputs)

	lines.set(11, 20, true)
	require.NoError(t, e.Update())

	assert.False(t, lines.anyHigh(), "rows must be low after a scan")
	assert.Equal(t, []bool{false, false, true, false},
		[]bool{e.IsDown(0), e.IsDown(1), e.IsDown(2), e.IsDown(3)})
}

func TestUpdate_InvertLogic(t *testing.T) {
	cfg := oneButton()
	cfg.InvertLogic = true
	e, lines := newTestEngine(t, cfg)

	require.NoError(t, e.Update())
	assert.True(t, e.IsDown(0), "low column reads as pressed when inverted")

	lines.set(10, 20, true)
	require.NoError(t, e.Update())
	assert.False(t, e.IsDown(0))
}

func TestUpdate_ScanErrorKeepsState(t *testing.T) {
	e, lines := newTestEngine(t, oneButton())
	lines.set(10, 20, true)
	lines.failDrive = errors.New("bus error")

	err := e.Update()
	require.Error(t, err)
	assert.ErrorContains(t, err, "bus error")
	assert.False(t, e.IsDown(0))
	assert.Zero(t, e.EventCount())
}

func TestUpdate_UsesClock(t *testing.T) {
	lines := newFakeLines()
	clock := NewManualClock(1000)
	e := NewEngine(EngineOptions{Lines: lines, Clock: clock, Delay: noDelay})
	require.NoError(t, e.Configure(oneButton()))

	lines.set(10, 20, true)
	require.NoError(t, e.Update())
	clock.Advance(250 * time.Millisecond)
	lines.set(10, 20, false)
	require.NoError(t, e.Update())

	ev, ok := e.Event(0)
	require.True(t, ok)
	assert.Equal(t, EventRelease, ev.Kind)
	assert.Equal(t, 250*time.Millisecond, ev.Held)
}

func TestUnconfiguredEngine(t *testing.T) {
	e := NewEngine(EngineOptions{Lines: newFakeLines(), Delay: noDelay})
	require.NoError(t, e.Update())
	e.Process(grid([2]int{0, 0}), 10)

	assert.Zero(t, e.EventCount())
	assert.False(t, e.IsDown(0))
	assert.False(t, e.SetRepeatEnabled(0, true))
	_, ok := e.PopRepeat(0)
	assert.False(t, ok)
	assert.Empty(t, e.Snapshot().Buttons)
}

func TestEventLog(t *testing.T) {
	e, _ := newTestEngine(t, twoButtons())
	e.Process(grid([2]int{0, 0}, [2]int{0, 1}), 5)

	assert.Equal(t, 2, e.EventCount())
	assert.Equal(t, []Event{
		{Button: 0, Kind: EventPress},
		{Button: 1, Kind: EventPress},
	}, e.Events(nil))

	_, ok := e.Event(2)
	assert.False(t, ok)
	_, ok = e.Event(-1)
	assert.False(t, ok)

	// Reading the log does not consume the latch.
	assert.True(t, e.TryConsumePress(0))
	assert.True(t, e.TryConsumePress(1))

	e.Process(grid([2]int{0, 0}, [2]int{0, 1}), 6)
	assert.Zero(t, e.EventCount(), "log only holds the latest cycle")
}

func TestSnapshot(t *testing.T) {
	e, _ := newTestEngine(t, twoButtons())
	require.True(t, e.SetRepeatEnabled(1, true))
	e.SetRepeatInitialDelay(0)

	e.Process(grid([2]int{0, 1}), 0)
	e.Process(grid([2]int{0, 1}), 1)

	s := e.Snapshot()
	require.True(t, s.Configured)
	require.Len(t, s.Buttons, 2)
	assert.Equal(t, ButtonState{ID: 0}, s.Buttons[0])
	assert.Equal(t, ButtonState{
		ID:             1,
		Down:           true,
		RepeatEnabled:  true,
		PendingPresses: 1,
		QueuedRepeats:  1,
	}, s.Buttons[1])

	// Snapshot is read-only.
	assert.True(t, e.TryConsumePress(1))
}

func TestAccessors_OutOfRange(t *testing.T) {
	e, _ := newTestEngine(t, oneButton())
	for _, id := range []int{-1, 1, MaxButtons} {
		assert.False(t, e.IsDown(id))
		assert.False(t, e.TryConsumePress(id))
		assert.False(t, e.TryConsumeRelease(id))
		assert.False(t, e.SetRepeatEnabled(id, true))
		_, ok := e.PopRepeat(id)
		assert.False(t, ok)
	}
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "press", EventPress.String())
	assert.Equal(t, "release", EventRelease.String())
	assert.Equal(t, "repeat", EventRepeat.String())
	assert.Equal(t, "EventKind(9)", EventKind(9).String())
}
