package matrix

import "time"

// Fixed capacities. Storage for cells, buttons and latches is preallocated
// to these sizes so the scan path never allocates.
const (
	MaxRows          = 8
	MaxCols          = 8
	MaxButtons       = 32
	MaxEvents        = 40
	RepeatQueueDepth = 8
)

// Saturation limit of the press/release counters.
const maxPending = 255

// Defaults applied by NewEngine and by a fresh RepeatProfile.
const (
	DefaultDebounce           = 35 * time.Millisecond
	DefaultSettle             = 120 * time.Microsecond
	DefaultBetweenRows        = 40 * time.Microsecond
	DefaultRepeatInitialDelay = 350 * time.Millisecond
	DefaultTaskPeriod         = 5 * time.Millisecond

	// StopTimeout bounds how long StopTask waits for the scan goroutine
	// to acknowledge before abandoning it.
	StopTimeout = 200 * time.Millisecond
)
