// Package pins provides matrix.Lines implementations: hardware GPIO
// through periph.io and an in-memory simulated matrix.
package pins

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"keymatrix/matrix"
)

// Pins drives host GPIO lines addressed by their number.
type Pins struct {
	mu   sync.Mutex
	pins map[int]gpio.PinIO
	pull gpio.Pull
}

var _ matrix.Lines = (*Pins)(nil)

// Open initialises the host drivers and resolves every pin number through
// the periph registry. Inputs are configured with pull.
func Open(pull gpio.Pull, numbers ...int) (*Pins, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}
	byNum := make(map[int]gpio.PinIO, len(numbers))
	for _, n := range numbers {
		p := gpioreg.ByName(strconv.Itoa(n))
		if p == nil {
			return nil, fmt.Errorf("gpio %d: no such pin", n)
		}
		byNum[n] = p
	}
	return newPins(byNum, pull), nil
}

func newPins(byNum map[int]gpio.PinIO, pull gpio.Pull) *Pins {
	return &Pins{pins: byNum, pull: pull}
}

// ParsePull maps "up", "down" and "float" to a periph pull setting.
func ParsePull(s string) (gpio.Pull, error) {
	switch strings.ToLower(s) {
	case "down", "pulldown":
		return gpio.PullDown, nil
	case "up", "pullup":
		return gpio.PullUp, nil
	case "float", "none", "":
		return gpio.Float, nil
	default:
		return gpio.PullNoChange, fmt.Errorf("invalid pull: %s (must be up, down or float)", s)
	}
}

func (p *Pins) pin(n int) (gpio.PinIO, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pin, ok := p.pins[n]
	if !ok {
		return nil, fmt.Errorf("gpio %d: not opened", n)
	}
	return pin, nil
}

func (p *Pins) SetupOutput(n int) error {
	pin, err := p.pin(n)
	if err != nil {
		return err
	}
	return pin.Out(gpio.Low)
}

func (p *Pins) SetupInput(n int) error {
	pin, err := p.pin(n)
	if err != nil {
		return err
	}
	return pin.In(p.pull, gpio.NoEdge)
}

func (p *Pins) Drive(n int, high bool) error {
	pin, err := p.pin(n)
	if err != nil {
		return err
	}
	return pin.Out(gpio.Level(high))
}

// Read returns false for pins that were never opened.
func (p *Pins) Read(n int) bool {
	pin, err := p.pin(n)
	if err != nil {
		return false
	}
	return pin.Read() == gpio.High
}

// Halt stops any pin activity started by the drivers.
func (p *Pins) Halt() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for n, pin := range p.pins {
		if err := pin.Halt(); err != nil {
			return fmt.Errorf("halt gpio %d: %w", n, err)
		}
	}
	return nil
}
