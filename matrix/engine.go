// Package matrix debounces a row/column key matrix and turns it into
// latched press, release and auto-repeat events.
//
// One Engine owns one physical matrix. A scan cycle (Update, or Process
// for an externally sampled grid) runs debounce, button aggregation,
// edge and repeat generation and latching under a single critical
// section. Consumers read the latch with TryConsumePress,
// TryConsumeRelease, PopRepeat and ApplyAxis from any goroutine.
package matrix

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Config describes the physical matrix and its button mapping.
type Config struct {
	RowPins []int
	ColPins []int

	// Map binds button ids to cells. Entries with an id, row or col out of
	// range are ignored; duplicate ids are rejected.
	Map         []Mapping
	ButtonCount int

	// InvertLogic treats a low column read as a closed switch.
	InvertLogic bool
	Debounce    time.Duration
}

// EngineOptions are the collaborators of an Engine. Zero fields get
// defaults: MonotonicClock, a *sync.Mutex, a discarding logger and Delay.
type EngineOptions struct {
	Lines  Lines
	Clock  Clock
	Locker sync.Locker
	Logger *slog.Logger
	Delay  func(time.Duration)
}

// Engine is the scan and event state of one key matrix.
type Engine struct {
	lock   sync.Locker
	clock  Clock
	logger *slog.Logger

	configured  bool
	rows, cols  int
	buttonCount int
	debounce    uint32
	mapping     [MaxButtons]Mapping
	mapLen      int
	rowPins     [MaxRows]int
	colPins     [MaxCols]int

	scan   scanner
	raw    Grid
	deb    debouncer
	btns   [MaxButtons]button
	timing repeatTiming
	events eventLog
	latch  latch

	task taskState
}

// NewEngine returns an unconfigured engine. Update is a no-op until
// Configure succeeds.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Clock == nil {
		opts.Clock = MonotonicClock{}
	}
	if opts.Locker == nil {
		opts.Locker = &sync.Mutex{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Delay == nil {
		opts.Delay = Delay
	}

	e := &Engine{
		lock:   opts.Locker,
		clock:  opts.Clock,
		logger: opts.Logger,
		timing: compileProfile(DefaultRepeatProfile(), DefaultRepeatInitialDelay),
	}
	e.scan = scanner{
		lines:       opts.Lines,
		settle:      DefaultSettle,
		betweenRows: DefaultBetweenRows,
		delay:       opts.Delay,
	}
	e.task.period.Store(int64(DefaultTaskPeriod))
	return e
}

func (e *Engine) validate(cfg Config) error {
	if e.scan.lines == nil {
		return fmt.Errorf("%w: no GPIO lines", ErrInvalidConfig)
	}
	if n := len(cfg.RowPins); n == 0 || n > MaxRows {
		return fmt.Errorf("%w: %d rows (want 1..%d)", ErrInvalidConfig, n, MaxRows)
	}
	if n := len(cfg.ColPins); n == 0 || n > MaxCols {
		return fmt.Errorf("%w: %d cols (want 1..%d)", ErrInvalidConfig, n, MaxCols)
	}
	if cfg.ButtonCount <= 0 || cfg.ButtonCount > MaxButtons {
		return fmt.Errorf("%w: button count %d (want 1..%d)", ErrInvalidConfig, cfg.ButtonCount, MaxButtons)
	}
	if n := len(cfg.Map); n == 0 || n > cfg.ButtonCount {
		return fmt.Errorf("%w: map length %d (want 1..%d)", ErrInvalidConfig, n, cfg.ButtonCount)
	}
	if cfg.Debounce < 0 {
		return fmt.Errorf("%w: negative debounce %v", ErrInvalidConfig, cfg.Debounce)
	}

	var seen [MaxButtons]bool
	for i, m := range cfg.Map {
		if !m.valid(len(cfg.RowPins), len(cfg.ColPins), cfg.ButtonCount) {
			continue
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: map[%d] duplicates button id %d", ErrInvalidConfig, i, m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// Configure stops a running scan task, validates cfg and resets all scan,
// button and latch state. On error the engine is left unconfigured: scan
// cycles do nothing until a later Configure succeeds. The repeat profile
// and scan delays survive reconfiguration; per-button repeat enables do
// not.
func (e *Engine) Configure(cfg Config) error {
	e.StopTask()

	e.lock.Lock()
	defer e.lock.Unlock()

	e.configured = false
	e.buttonCount = 0
	e.resetState()

	if err := e.validate(cfg); err != nil {
		e.logger.Warn("matrix configuration rejected", "error", err)
		return err
	}

	e.rows, e.cols = len(cfg.RowPins), len(cfg.ColPins)
	copy(e.rowPins[:], cfg.RowPins)
	copy(e.colPins[:], cfg.ColPins)
	e.mapLen = copy(e.mapping[:], cfg.Map)
	e.buttonCount = cfg.ButtonCount
	e.debounce = toMillis(cfg.Debounce)

	e.scan.rowPins = e.rowPins[:e.rows]
	e.scan.colPins = e.colPins[:e.cols]
	e.scan.invert = cfg.InvertLogic
	if err := e.scan.setup(); err != nil {
		e.buttonCount = 0
		err = fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		e.logger.Warn("matrix line setup failed", "error", err)
		return err
	}

	e.configured = true
	e.logger.Debug("matrix configured",
		"rows", e.rows, "cols", e.cols,
		"buttons", e.buttonCount, "mapped", e.mapLen,
		"invert", cfg.InvertLogic, "debounce_ms", e.debounce)
	return nil
}

func (e *Engine) resetState() {
	e.raw = Grid{}
	e.deb.reset()
	e.btns = [MaxButtons]button{}
	e.events.reset()
	e.latch.reset()
}

// Configured reports whether the last Configure succeeded.
func (e *Engine) Configured() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.configured
}

// SetScanDelays sets the row settle time and the pause between rows.
func (e *Engine) SetScanDelays(settle, betweenRows time.Duration) {
	e.lock.Lock()
	e.scan.settle = settle
	e.scan.betweenRows = betweenRows
	e.lock.Unlock()
}

// SetRepeatEnabled turns auto-repeat on or off for one button. It returns
// false for an id outside the configured range.
func (e *Engine) SetRepeatEnabled(id int, enabled bool) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.validID(id) {
		return false
	}
	e.btns[id].repeatEnabled = enabled
	return true
}

// SetRepeatInitialDelay sets how long a button must be held before its
// first repeat.
func (e *Engine) SetRepeatInitialDelay(d time.Duration) {
	e.lock.Lock()
	e.timing.initialDelay = toMillis(d)
	e.lock.Unlock()
}

// SetRepeatProfile replaces the acceleration curve. It takes effect on the
// next scheduled repeat of every held button.
func (e *Engine) SetRepeatProfile(p RepeatProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.lock.Lock()
	initial := e.timing.initialDelay
	e.timing = compileProfile(p, 0)
	e.timing.initialDelay = initial
	e.lock.Unlock()
	return nil
}

// RepeatProfile returns the active acceleration curve.
func (e *Engine) RepeatProfile() RepeatProfile {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.timing.profile()
}

// Update runs one scan cycle: sample the matrix, then Process the sample
// at the current clock time. It does nothing when unconfigured. A failed
// sample leaves every piece of state untouched.
func (e *Engine) Update() error {
	return e.updateWhile(context.Background())
}

// Process runs debounce, aggregation, edge and repeat generation and
// latching for a grid sampled at now. Only the configured rows and
// columns of raw are read.
func (e *Engine) Process(raw *Grid, now uint32) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.configured {
		return
	}
	e.process(raw, now)
}

func (e *Engine) process(raw *Grid, now uint32) {
	e.deb.update(raw, e.rows, e.cols, now, e.debounce)

	btns := e.btns[:e.buttonCount]
	aggregate(btns, &e.deb, e.mapping[:e.mapLen], e.rows, e.cols)

	e.events.reset()
	emitEdgesAndRepeats(btns, &e.timing, now, &e.events)

	for _, ev := range e.events.events() {
		e.latch.record(ev)
	}
}

func (e *Engine) validID(id int) bool {
	return id >= 0 && id < e.buttonCount
}
