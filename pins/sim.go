package pins

import (
	"fmt"
	"sync"

	"keymatrix/matrix"
)

// Sim is a simulated key matrix. Switches close a row line onto a column
// line; a column reads high while some driven-high row has a closed
// switch to it.
type Sim struct {
	mu sync.Mutex

	rowPins []int
	colPins []int
	rowOf   map[int]int
	colOf   map[int]int

	outputs map[int]bool
	inputs  map[int]bool
	driven  map[int]bool
	closed  [matrix.MaxRows][matrix.MaxCols]bool
}

var _ matrix.Lines = (*Sim)(nil)

func NewSim(rowPins, colPins []int) *Sim {
	s := &Sim{
		rowPins: append([]int(nil), rowPins...),
		colPins: append([]int(nil), colPins...),
		rowOf:   make(map[int]int, len(rowPins)),
		colOf:   make(map[int]int, len(colPins)),
		outputs: make(map[int]bool),
		inputs:  make(map[int]bool),
		driven:  make(map[int]bool),
	}
	for i, p := range rowPins {
		s.rowOf[p] = i
	}
	for i, p := range colPins {
		s.colOf[p] = i
	}
	return s
}

// Set opens or closes the switch at (row, col).
func (s *Sim) Set(row, col int, closed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 0 || row >= len(s.rowPins) || col < 0 || col >= len(s.colPins) {
		return fmt.Errorf("sim: no switch at row %d col %d", row, col)
	}
	s.closed[row][col] = closed
	return nil
}

func (s *Sim) Press(row, col int) error   { return s.Set(row, col, true) }
func (s *Sim) Release(row, col int) error { return s.Set(row, col, false) }

// Closed reports the switch state at (row, col).
func (s *Sim) Closed(row, col int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 0 || row >= len(s.rowPins) || col < 0 || col >= len(s.colPins) {
		return false
	}
	return s.closed[row][col]
}

func (s *Sim) SetupOutput(pin int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rowOf[pin]; !ok {
		return fmt.Errorf("sim: pin %d is not a row", pin)
	}
	s.outputs[pin] = true
	return nil
}

func (s *Sim) SetupInput(pin int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.colOf[pin]; !ok {
		return fmt.Errorf("sim: pin %d is not a column", pin)
	}
	s.inputs[pin] = true
	return nil
}

func (s *Sim) Drive(pin int, high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.outputs[pin] {
		return fmt.Errorf("sim: pin %d is not an output", pin)
	}
	s.driven[pin] = high
	return nil
}

func (s *Sim) Read(pin int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.colOf[pin]
	if !ok || !s.inputs[pin] {
		return false
	}
	for rp, r := range s.rowOf {
		if s.driven[rp] && s.closed[r][c] {
			return true
		}
	}
	return false
}
