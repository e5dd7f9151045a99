package matrix

// ButtonCount returns the configured number of buttons, or zero when the
// engine is unconfigured.
func (e *Engine) ButtonCount() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.buttonCount
}

// IsDown reports the debounced state of a button as of the last cycle.
// Ids outside the configured range report false.
func (e *Engine) IsDown(id int) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.validID(id) && e.btns[id].stable
}

// TryConsumePress takes one pending press of button id. It returns false
// when none is pending or id is out of range.
func (e *Engine) TryConsumePress(id int) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.validID(id) && takeOne(&e.latch.press[id])
}

// TryConsumeRelease takes one pending release of button id.
func (e *Engine) TryConsumeRelease(id int) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.validID(id) && takeOne(&e.latch.release[id])
}

// PopRepeat takes the oldest queued repeat multiplier of button id.
func (e *Engine) PopRepeat(id int) (int16, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.validID(id) {
		return 0, false
	}
	return e.latch.repeats[id].pop()
}

// EventCount returns how many events the last cycle produced.
func (e *Engine) EventCount() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.events.n
}

// Event returns event i of the last cycle. The per-cycle log is a
// diagnostic view; reading it does not consume anything.
func (e *Engine) Event(i int) (Event, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if i < 0 || i >= e.events.n {
		return Event{}, false
	}
	return e.events.buf[i], true
}

// Events appends the last cycle's events to dst.
func (e *Engine) Events(dst []Event) []Event {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append(dst, e.events.events()...)
}

// ButtonState is a read-only view of one button and its latch.
type ButtonState struct {
	ID              int  `json:"id"`
	Down            bool `json:"down"`
	RepeatEnabled   bool `json:"repeat_enabled"`
	PendingPresses  int  `json:"pending_presses"`
	PendingReleases int  `json:"pending_releases"`
	QueuedRepeats   int  `json:"queued_repeats"`
}

// Snapshot is a coherent copy of every configured button.
type Snapshot struct {
	Configured bool          `json:"configured"`
	Buttons    []ButtonState `json:"buttons"`
}

// Snapshot copies the button table without consuming anything.
func (e *Engine) Snapshot() Snapshot {
	e.lock.Lock()
	defer e.lock.Unlock()

	s := Snapshot{
		Configured: e.configured,
		Buttons:    make([]ButtonState, e.buttonCount),
	}
	for id := range s.Buttons {
		b := &e.btns[id]
		s.Buttons[id] = ButtonState{
			ID:              id,
			Down:            b.stable,
			RepeatEnabled:   b.repeatEnabled,
			PendingPresses:  int(e.latch.press[id]),
			PendingReleases: int(e.latch.release[id]),
			QueuedRepeats:   e.latch.repeats[id].len(),
		}
	}
	return s
}
