package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"keymatrix/matrix"
	"keymatrix/pins"
)

// ============================================================================
// Daemon Loop - engine consumer
// ============================================================================
//
// The scan task produces latched events on its own goroutine. This loop is
// the single consumer:
//   - Applies every configured axis on a fixed cadence
//   - Consumes events of buttons not bound to an axis and broadcasts them
//   - Executes IPC / websocket requests (the only writer of axis values)
//
// ============================================================================

// daemonReply is the result of a request executed by the daemon loop
type daemonReply struct {
	Data any
	Err  error
}

// daemonRequest carries a command into the daemon loop. Reply must be
// buffered; the loop never blocks on it.
type daemonRequest struct {
	Cmd   Command
	Reply chan daemonReply
}

var errSimOnly = errors.New("command requires the sim backend")

type daemon struct {
	eng *matrix.Engine
	sim *pins.Sim // nil unless matrix.backend is "sim"

	buttons   []ButtonConfig
	buttonIDs map[string]int
	axes      []axisBinding
	axisIDs   map[string]int
	values    []uint32
	bound     [matrix.MaxButtons]bool

	broadcasts chan<- StateBroadcast
	logger     *slog.Logger
	now        func() time.Time
}

func newDaemon(cfg *Config, eng *matrix.Engine, sim *pins.Sim, broadcasts chan<- StateBroadcast, logger *slog.Logger) *daemon {
	d := &daemon{
		eng:        eng,
		sim:        sim,
		buttons:    append([]ButtonConfig(nil), cfg.Buttons...),
		buttonIDs:  cfg.buttonIDs(),
		axes:       cfg.ToAxes(),
		axisIDs:    make(map[string]int, len(cfg.Axes)),
		broadcasts: broadcasts,
		logger:     logger,
		now:        time.Now,
	}
	d.values = make([]uint32, len(d.axes))
	for i, a := range d.axes {
		d.axisIDs[a.Name] = i
		d.values[i] = a.Initial
		d.bound[a.Axis.Dec] = true
		d.bound[a.Axis.Inc] = true
	}
	return d
}

// emit queues a broadcast without blocking the loop.
func (d *daemon) emit(b StateBroadcast) {
	if d.broadcasts == nil {
		return
	}
	select {
	case d.broadcasts <- b:
	default:
		d.logger.Warn("broadcast queue full, dropping state change", "broadcast", fmt.Sprintf("%T", b))
	}
}

// poll drains the engine latches once.
func (d *daemon) poll() {
	now := d.now()

	for i := range d.axes {
		v, changed := d.eng.ApplyAxis(d.values[i], d.axes[i].Axis)
		if !changed {
			continue
		}
		d.values[i] = v
		d.logger.Debug("axis changed", "axis", d.axes[i].Name, "value", v)
		d.emit(BroadcastAxisChanged{Axis: d.axes[i].Name, Value: v, At: now})
	}

	for id, b := range d.buttons {
		if d.bound[id] {
			// Axis buttons only feed ApplyAxis; their releases are not reported.
			for d.eng.TryConsumeRelease(id) {
			}
			continue
		}
		for d.eng.TryConsumePress(id) {
			d.emit(BroadcastButton{Button: b.Name, Kind: matrix.EventPress, Multiplier: 1, At: now})
		}
		for {
			mult, ok := d.eng.PopRepeat(id)
			if !ok {
				break
			}
			d.emit(BroadcastButton{Button: b.Name, Kind: matrix.EventRepeat, Multiplier: mult, At: now})
		}
		for d.eng.TryConsumeRelease(id) {
			d.emit(BroadcastButton{Button: b.Name, Kind: matrix.EventRelease, At: now})
		}
	}
}

// handle executes one command.
func (d *daemon) handle(cmd Command) (any, error) {
	switch c := cmd.(type) {
	case SimPress:
		return nil, d.simSet(c.Button, true)

	case SimRelease:
		return nil, d.simSet(c.Button, false)

	case SetRepeat:
		id, ok := d.buttonIDs[c.Button]
		if !ok {
			return nil, fmt.Errorf("unknown button %q", c.Button)
		}
		if !d.eng.SetRepeatEnabled(id, c.Enabled) {
			return nil, fmt.Errorf("button %q is not configured", c.Button)
		}
		d.logger.Info("repeat updated", "button", c.Button, "enabled", c.Enabled)
		return nil, nil

	case SetAxis:
		i, ok := d.axisIDs[c.Axis]
		if !ok {
			return nil, fmt.Errorf("unknown axis %q", c.Axis)
		}
		a := d.axes[i].Axis
		if c.Value < a.Min || c.Value > a.Max {
			return nil, fmt.Errorf("axis %q: value %d outside [%d, %d]", c.Axis, c.Value, a.Min, a.Max)
		}
		if d.values[i] != c.Value {
			d.values[i] = c.Value
			d.emit(BroadcastAxisChanged{Axis: c.Axis, Value: c.Value, At: d.now()})
		}
		return nil, nil

	case GetState:
		return d.snapshot(), nil

	default:
		return nil, fmt.Errorf("unsupported command: %T", cmd)
	}
}

func (d *daemon) simSet(name string, closed bool) error {
	if d.sim == nil {
		return errSimOnly
	}
	id, ok := d.buttonIDs[name]
	if !ok {
		return fmt.Errorf("unknown button %q", name)
	}
	b := d.buttons[id]
	return d.sim.Set(b.Row, b.Col, closed)
}

func (d *daemon) snapshot() StateSnapshot {
	es := d.eng.Snapshot()
	s := StateSnapshot{
		Configured: es.Configured,
		Buttons:    make([]ButtonView, 0, len(es.Buttons)),
		Axes:       make([]AxisView, len(d.axes)),
	}
	for _, bs := range es.Buttons {
		name := ""
		if bs.ID < len(d.buttons) {
			name = d.buttons[bs.ID].Name
		}
		s.Buttons = append(s.Buttons, ButtonView{Name: name, ButtonState: bs})
	}
	for i, a := range d.axes {
		s.Axes[i] = AxisView{Name: a.Name, Value: d.values[i], Min: a.Axis.Min, Max: a.Axis.Max}
	}
	return s
}

// runDaemon polls the engine at pollHz and serves requests until ctx is
// canceled or requests is closed.
func runDaemon(ctx context.Context, d *daemon, requests <-chan daemonRequest, pollHz int) {
	ticker := time.NewTicker(time.Second / time.Duration(pollHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping (context canceled)")
			return

		case req, ok := <-requests:
			if !ok {
				d.logger.Info("daemon stopping (requests channel closed)")
				return
			}
			data, err := d.handle(req.Cmd)
			if err != nil {
				d.logger.Debug("command failed", "command", fmt.Sprintf("%T", req.Cmd), "error", err)
			}
			if req.Reply != nil {
				select {
				case req.Reply <- daemonReply{Data: data, Err: err}:
				default:
				}
			}

		case <-ticker.C:
			d.poll()
		}
	}
}

// request sends cmd to the daemon loop and waits for its reply.
func request(ctx context.Context, requests chan<- daemonRequest, cmd Command) (any, error) {
	reply := make(chan daemonReply, 1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case requests <- daemonRequest{Cmd: cmd, Reply: reply}:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-reply:
		return r.Data, r.Err
	}
}
