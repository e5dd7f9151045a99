package matrix

import (
	"fmt"
	"time"
)

// RepeatProfile is the four-tier auto-repeat acceleration curve.
//
// The first repeat after the initial delay always uses Steps[0] and
// Delays[0]. After that the repeat count selects the highest tier whose
// threshold it has reached: Thresholds[2] selects tier 4, Thresholds[1]
// tier 3, Thresholds[0] tier 2, otherwise tier 1.
type RepeatProfile struct {
	Thresholds [3]uint16
	Steps      [4]int16
	Delays     [4]time.Duration
}

// DefaultRepeatProfile returns the 1/10/100/1000 curve accelerating at 12,
// 30 and 70 repeats.
func DefaultRepeatProfile() RepeatProfile {
	return RepeatProfile{
		Thresholds: [3]uint16{12, 30, 70},
		Steps:      [4]int16{1, 10, 100, 1000},
		Delays: [4]time.Duration{
			110 * time.Millisecond,
			95 * time.Millisecond,
			80 * time.Millisecond,
			65 * time.Millisecond,
		},
	}
}

// Validate checks that thresholds are non-decreasing.
func (p RepeatProfile) Validate() error {
	t := p.Thresholds
	if t[0] > t[1] || t[1] > t[2] {
		return fmt.Errorf("%w: thresholds %d/%d/%d are not non-decreasing", ErrInvalidProfile, t[0], t[1], t[2])
	}
	return nil
}

// repeatTiming is the compiled, millisecond form of the profile used in
// the scan path.
type repeatTiming struct {
	thresholds   [3]uint16
	steps        [4]int16
	delays       [4]uint32
	initialDelay uint32
}

func compileProfile(p RepeatProfile, initialDelay time.Duration) repeatTiming {
	rt := repeatTiming{
		thresholds:   p.Thresholds,
		steps:        p.Steps,
		initialDelay: toMillis(initialDelay),
	}
	for i, d := range p.Delays {
		rt.delays[i] = toMillis(d)
	}
	return rt
}

func (rt *repeatTiming) profile() RepeatProfile {
	p := RepeatProfile{Thresholds: rt.thresholds, Steps: rt.steps}
	for i, d := range rt.delays {
		p.Delays[i] = time.Duration(d) * time.Millisecond
	}
	return p
}

// tier picks the step and delay for a repeat count, checking the highest
// threshold first.
func (rt *repeatTiming) tier(count uint16) (int16, uint32) {
	switch {
	case count >= rt.thresholds[2]:
		return rt.steps[3], rt.delays[3]
	case count >= rt.thresholds[1]:
		return rt.steps[2], rt.delays[2]
	case count >= rt.thresholds[0]:
		return rt.steps[1], rt.delays[1]
	default:
		return rt.steps[0], rt.delays[0]
	}
}

func millisDuration(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// emitEdgesAndRepeats compares every button against its previous state and
// appends Press, Release and Repeat events to out. A button produces at
// most one event per cycle: an edge suppresses the repeat check.
//
// The result depends only on the button table, the timing and now.
func emitEdgesAndRepeats(btns []button, rt *repeatTiming, now uint32, out *eventLog) {
	for id := range btns {
		b := &btns[id]
		cur, prev := b.stable, b.prev

		switch {
		case cur && !prev:
			b.pressStart = now
			b.repeatCount = 0
			b.nextRepeatAt = now + rt.initialDelay
			out.push(Event{Button: id, Kind: EventPress})

		case !cur && prev:
			out.push(Event{
				Button: id,
				Kind:   EventRelease,
				Held:   millisDuration(elapsed(now, b.pressStart)),
			})
			b.repeatCount = 0
			b.nextRepeatAt = 0

		case cur && b.repeatEnabled && reached(now, b.nextRepeatAt):
			var step int16
			var delay uint32
			if b.repeatCount == 0 {
				b.repeatCount = 1
				step, delay = rt.steps[0], rt.delays[0]
			} else {
				if b.repeatCount < ^uint16(0) {
					b.repeatCount++
				}
				step, delay = rt.tier(b.repeatCount)
			}
			b.nextRepeatAt = now + delay
			out.push(Event{
				Button:     id,
				Kind:       EventRepeat,
				Multiplier: step,
				Held:       millisDuration(elapsed(now, b.pressStart)),
			})
		}

		b.prev = cur
	}
}
