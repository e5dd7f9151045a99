package matrix

// repeatQueue is a fixed ring of repeat multipliers. When full, a push
// discards the oldest entry so the queue always holds the most recent
// RepeatQueueDepth multipliers in emission order.
type repeatQueue struct {
	buf  [RepeatQueueDepth]int16
	head uint8
	n    uint8
}

func (q *repeatQueue) push(mult int16) {
	if q.n >= RepeatQueueDepth {
		q.head = (q.head + 1) % RepeatQueueDepth
		q.n--
	}
	tail := (q.head + q.n) % RepeatQueueDepth
	q.buf[tail] = mult
	q.n++
}

func (q *repeatQueue) pop() (int16, bool) {
	if q.n == 0 {
		return 0, false
	}
	mult := q.buf[q.head]
	q.head = (q.head + 1) % RepeatQueueDepth
	q.n--
	return mult, true
}

func (q *repeatQueue) len() int { return int(q.n) }

// drain moves every queued multiplier into dst, oldest first, and returns
// how many were copied.
func (q *repeatQueue) drain(dst *[RepeatQueueDepth]int16) int {
	n := 0
	for {
		mult, ok := q.pop()
		if !ok {
			return n
		}
		dst[n] = mult
		n++
	}
}

// latch is the durable per-button record of events not yet consumed.
type latch struct {
	press   [MaxButtons]uint8
	release [MaxButtons]uint8
	repeats [MaxButtons]repeatQueue
}

func (l *latch) reset() { *l = latch{} }

func saturatingInc(c *uint8) {
	if *c < maxPending {
		*c++
	}
}

// record latches one event. Events for ids outside the table are ignored.
func (l *latch) record(ev Event) {
	if ev.Button < 0 || ev.Button >= MaxButtons {
		return
	}
	switch ev.Kind {
	case EventPress:
		saturatingInc(&l.press[ev.Button])
	case EventRelease:
		saturatingInc(&l.release[ev.Button])
	case EventRepeat:
		l.repeats[ev.Button].push(ev.Multiplier)
	}
}

func takeOne(c *uint8) bool {
	if *c == 0 {
		return false
	}
	*c--
	return true
}

// takeAll zeroes the counter and returns its previous value.
func takeAll(c *uint8) uint8 {
	n := *c
	*c = 0
	return n
}
