package matrix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timedEvent struct {
	at uint32
	ev Event
}

// hold presses button 0 at t=0, keeps it down until releaseAt and records
// every event, scanning once per millisecond.
func hold(t *testing.T, e *Engine, releaseAt uint32) []timedEvent {
	t.Helper()
	var out []timedEvent
	down := grid([2]int{0, 0})
	var up Grid
	for now := uint32(0); now <= releaseAt; now++ {
		g := down
		if now == releaseAt {
			g = &up
		}
		e.Process(g, now)
		for _, ev := range e.Events(nil) {
			out = append(out, timedEvent{at: now, ev: ev})
		}
	}
	return out
}

func TestEdges_PressReleaseWithoutRepeat(t *testing.T) {
	e, _ := newTestEngine(t, oneButton())
	got := hold(t, e, 2000)

	require.Len(t, got, 2)
	assert.Equal(t, timedEvent{0, Event{Button: 0, Kind: EventPress}}, got[0])
	assert.Equal(t, timedEvent{2000, Event{Button: 0, Kind: EventRelease, Held: 2 * time.Second}}, got[1])
}

func TestRepeat_TierSchedule(t *testing.T) {
	e, _ := newTestEngine(t, oneButton())
	require.True(t, e.SetRepeatEnabled(0, true))
	e.SetRepeatInitialDelay(350 * time.Millisecond)
	require.NoError(t, e.SetRepeatProfile(DefaultRepeatProfile()))

	releaseAt := uint32(350 + 109*110)
	got := hold(t, e, releaseAt)

	require.Equal(t, EventPress, got[0].ev.Kind)
	require.Equal(t, EventRelease, got[len(got)-1].ev.Kind)
	repeats := got[1 : len(got)-1]

	first := repeats[0]
	assert.Equal(t, uint32(350), first.at)
	assert.Equal(t, int16(1), first.ev.Multiplier)
	assert.Equal(t, 350*time.Millisecond, first.ev.Held)

	wantStep := func(count int) (int16, uint32) {
		switch {
		case count >= 70:
			return 1000, 65
		case count >= 30:
			return 100, 80
		case count >= 12:
			return 10, 95
		default:
			return 1, 110
		}
	}

	for i, r := range repeats {
		count := i + 1
		step, _ := wantStep(count)
		require.Equal(t, EventRepeat, r.ev.Kind)
		assert.Equal(t, step, r.ev.Multiplier, "repeat #%d", count)
		if i > 0 {
			_, delay := wantStep(count - 1)
			assert.Equal(t, delay, r.at-repeats[i-1].at, "gap before repeat #%d", count)
		}
	}

	assert.Equal(t, uint32(1560), repeats[11].at, "tier 2 starts at the 12th repeat")
	assert.Equal(t, int16(1), repeats[10].ev.Multiplier)
	assert.Equal(t, int16(10), repeats[11].ev.Multiplier)
	assert.Equal(t, uint32(3270), repeats[29].at)
	assert.Equal(t, uint32(6470), repeats[69].at)
	assert.Len(t, repeats, 160)
}

func TestRepeat_DisabledNeverRepeats(t *testing.T) {
	e, _ := newTestEngine(t, oneButton())
	e.SetRepeatInitialDelay(0)
	got := hold(t, e, 500)
	require.Len(t, got, 2)
	_, ok := e.PopRepeat(0)
	assert.False(t, ok)
}

func TestRepeat_NoRepeatOnPressCycle(t *testing.T) {
	e, _ := newTestEngine(t, oneButton())
	require.True(t, e.SetRepeatEnabled(0, true))
	e.SetRepeatInitialDelay(0)

	e.Process(grid([2]int{0, 0}), 0)
	assert.Equal(t, []Event{{Button: 0, Kind: EventPress}}, e.Events(nil))

	e.Process(grid([2]int{0, 0}), 1)
	assert.Equal(t, []Event{{Button: 0, Kind: EventRepeat, Multiplier: 1, Held: time.Millisecond}}, e.Events(nil))
}

func TestRepeat_RestartsAfterRelease(t *testing.T) {
	e, _ := newTestEngine(t, oneButton())
	require.True(t, e.SetRepeatEnabled(0, true))
	e.SetRepeatInitialDelay(100 * time.Millisecond)
	require.NoError(t, e.SetRepeatProfile(RepeatProfile{
		Thresholds: [3]uint16{2, 3, 4},
		Steps:      [4]int16{1, 2, 3, 4},
		Delays:     [4]time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond},
	}))

	down := grid([2]int{0, 0})
	var up Grid
	for now := uint32(0); now <= 140; now += 10 {
		e.Process(down, now)
	}
	e.Process(&up, 150)
	e.Process(down, 160)
	e.Process(down, 260)
	ev, ok := e.Event(0)
	require.True(t, ok)
	assert.Equal(t, Event{Button: 0, Kind: EventRepeat, Multiplier: 1, Held: 100 * time.Millisecond}, ev,
		"a new press starts again from the first tier")
}

func TestRepeat_Deterministic(t *testing.T) {
	run := func() []timedEvent {
		e, _ := newTestEngine(t, oneButton())
		require.True(t, e.SetRepeatEnabled(0, true))
		return hold(t, e, 3000)
	}
	assert.Equal(t, run(), run())
}

func TestRepeat_WraparoundDeadline(t *testing.T) {
	e, _ := newTestEngine(t, oneButton())
	require.True(t, e.SetRepeatEnabled(0, true))
	e.SetRepeatInitialDelay(100 * time.Millisecond)

	start := ^uint32(0) - 50
	e.Process(grid([2]int{0, 0}), start)
	e.Process(grid([2]int{0, 0}), start+60) // wrapped, 40ms before the deadline
	assert.Zero(t, e.EventCount())
	e.Process(grid([2]int{0, 0}), start+100)
	require.Equal(t, 1, e.EventCount())
	ev, _ := e.Event(0)
	assert.Equal(t, EventRepeat, ev.Kind)
	assert.Equal(t, 100*time.Millisecond, ev.Held)
}

func TestRepeatProfile(t *testing.T) {
	e, _ := newTestEngine(t, oneButton())
	assert.Equal(t, DefaultRepeatProfile(), e.RepeatProfile())

	bad := DefaultRepeatProfile()
	bad.Thresholds = [3]uint16{30, 12, 70}
	assert.ErrorIs(t, e.SetRepeatProfile(bad), ErrInvalidProfile)
	assert.Equal(t, DefaultRepeatProfile(), e.RepeatProfile(), "rejected profile is not applied")

	p := RepeatProfile{
		Thresholds: [3]uint16{5, 5, 9},
		Steps:      [4]int16{2, 4, 8, 16},
		Delays:     [4]time.Duration{40 * time.Millisecond, 30 * time.Millisecond, 20 * time.Millisecond, 10 * time.Millisecond},
	}
	require.NoError(t, e.SetRepeatProfile(p))
	assert.Equal(t, p, e.RepeatProfile())
}

func TestRepeatTiming_TierTieBreak(t *testing.T) {
	rt := compileProfile(RepeatProfile{
		Thresholds: [3]uint16{5, 5, 5},
		Steps:      [4]int16{1, 2, 3, 4},
		Delays:     [4]time.Duration{4 * time.Millisecond, 3 * time.Millisecond, 2 * time.Millisecond, time.Millisecond},
	}, 0)

	step, delay := rt.tier(4)
	assert.Equal(t, int16(1), step)
	assert.Equal(t, uint32(4), delay)

	step, delay = rt.tier(5)
	assert.Equal(t, int16(4), step, "highest met threshold wins")
	assert.Equal(t, uint32(1), delay)
}
