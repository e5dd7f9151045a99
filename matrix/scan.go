package matrix

import (
	"fmt"
	"time"
)

// Lines is the GPIO capability used by the row scanner. Pins are opaque
// numbers understood by the implementation.
type Lines interface {
	SetupOutput(pin int) error
	SetupInput(pin int) error
	Drive(pin int, high bool) error
	Read(pin int) bool
}

// scanner samples the matrix by energising one row at a time and reading
// every column.
type scanner struct {
	lines   Lines
	rowPins []int
	colPins []int
	invert  bool

	settle      time.Duration
	betweenRows time.Duration
	delay       func(time.Duration)
}

func (s *scanner) setup() error {
	for _, p := range s.rowPins {
		if err := s.lines.SetupOutput(p); err != nil {
			return fmt.Errorf("setup row pin %d: %w", p, err)
		}
		if err := s.lines.Drive(p, false); err != nil {
			return fmt.Errorf("drive row pin %d low: %w", p, err)
		}
	}
	for _, p := range s.colPins {
		if err := s.lines.SetupInput(p); err != nil {
			return fmt.Errorf("setup col pin %d: %w", p, err)
		}
	}
	return nil
}

func (s *scanner) readCol(pin int) bool {
	v := s.lines.Read(pin)
	if s.invert {
		return !v
	}
	return v
}

// scan fills raw. All rows are left low on return, also on error.
func (s *scanner) scan(raw *Grid) (err error) {
	defer func() {
		for _, p := range s.rowPins {
			if derr := s.lines.Drive(p, false); derr != nil && err == nil {
				err = fmt.Errorf("release row pin %d: %w", p, derr)
			}
		}
	}()

	for r := range s.rowPins {
		for rr, p := range s.rowPins {
			if err := s.lines.Drive(p, rr == r); err != nil {
				return fmt.Errorf("drive row %d: %w", rr, err)
			}
		}
		if s.settle > 0 {
			s.delay(s.settle)
		}
		for c, p := range s.colPins {
			raw[r][c] = s.readCol(p)
		}
		if s.betweenRows > 0 {
			s.delay(s.betweenRows)
		}
	}
	return nil
}
