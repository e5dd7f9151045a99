package matrix

// Axis describes a bounded value adjusted by a decrement/increment button
// pair.
//
// Discrete presses move the value by one and, with WrapOnPress, wrap from
// one bound to the other. Repeats move it by their multiplier and never
// wrap. With SnapOnRepeat the value is first aligned down to a multiple of
// the multiplier so accelerated steps stay on a round grid.
type Axis struct {
	Min, Max     uint32
	Dec, Inc     int
	WrapOnPress  bool
	SnapOnRepeat bool
}

// axisInput is everything drained from the latch for one ApplyAxis call.
type axisInput struct {
	decPress, incPress uint8

	decRepeats [RepeatQueueDepth]int16
	decN       int
	incRepeats [RepeatQueueDepth]int16
	incN       int
}

// ApplyAxis consumes all pending presses and repeats of the axis buttons
// and returns the adjusted value. changed is false when nothing moved the
// value, including when the axis is invalid (Min > Max, Dec == Inc or an
// id outside the configured button range); in that case nothing is
// consumed.
//
// Decrements are fully applied before increments, so a cycle in which both
// buttons latched events has a reproducible net effect.
func (e *Engine) ApplyAxis(value uint32, ax Axis) (uint32, bool) {
	if ax.Min > ax.Max || ax.Dec == ax.Inc {
		return value, false
	}

	var in axisInput
	e.lock.Lock()
	if !e.validID(ax.Dec) || !e.validID(ax.Inc) {
		e.lock.Unlock()
		return value, false
	}
	in.decPress = takeAll(&e.latch.press[ax.Dec])
	in.incPress = takeAll(&e.latch.press[ax.Inc])
	in.decN = e.latch.repeats[ax.Dec].drain(&in.decRepeats)
	in.incN = e.latch.repeats[ax.Inc].drain(&in.incRepeats)
	e.lock.Unlock()

	return applyAxis(value, ax, &in)
}

// applyAxis is the lock-free part of ApplyAxis.
func applyAxis(v uint32, ax Axis, in *axisInput) (uint32, bool) {
	changed := false
	canWrap := ax.WrapOnPress && ax.Min < ax.Max

	for i := uint8(0); i < in.decPress; i++ {
		switch {
		case v > ax.Min:
			v--
			changed = true
		case canWrap:
			v = ax.Max
			changed = true
		}
	}

	for i := uint8(0); i < in.incPress; i++ {
		switch {
		case v < ax.Max:
			v++
			changed = true
		case canWrap:
			v = ax.Min
			changed = true
		}
	}

	for _, mult := range in.decRepeats[:in.decN] {
		nv, ok := repeatDown(v, ax, mult)
		if ok {
			v = nv
			changed = true
		}
	}

	for _, mult := range in.incRepeats[:in.incN] {
		nv, ok := repeatUp(v, ax, mult)
		if ok {
			v = nv
			changed = true
		}
	}

	return v, changed
}

func repeatStep(mult int16) uint32 {
	if mult <= 0 {
		return 1
	}
	return uint32(mult)
}

func snap(v, step uint32) uint32 { return v / step * step }

// repeatDown applies one decrement repeat. Repeats at or below Min are
// ignored.
func repeatDown(v uint32, ax Axis, mult int16) (uint32, bool) {
	if v <= ax.Min {
		return v, false
	}
	step := repeatStep(mult)
	base := v
	if ax.SnapOnRepeat {
		base = snap(v, step)
	}
	var nv uint32
	if base >= step {
		nv = base - step
	}
	if nv < ax.Min {
		nv = ax.Min
	}
	return nv, nv != v
}

// repeatUp applies one increment repeat. Repeats at or above Max are
// ignored.
func repeatUp(v uint32, ax Axis, mult int16) (uint32, bool) {
	if v >= ax.Max {
		return v, false
	}
	step := repeatStep(mult)
	base := v
	if ax.SnapOnRepeat {
		base = snap(v, step)
	}
	nv := ax.Max
	if ax.Max >= step && base <= ax.Max-step {
		nv = base + step
	}
	return nv, nv != v
}
