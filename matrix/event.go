package matrix

import (
	"fmt"
	"time"
)

// EventKind identifies what happened to a button during a scan cycle.
type EventKind uint8

const (
	EventPress EventKind = iota + 1
	EventRelease
	EventRepeat
)

func (k EventKind) String() string {
	switch k {
	case EventPress:
		return "press"
	case EventRelease:
		return "release"
	case EventRepeat:
		return "repeat"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is one edge or auto-repeat produced by a scan cycle.
//
// Multiplier is only meaningful for EventRepeat. Held is the time since the
// press for EventRelease and EventRepeat.
type Event struct {
	Button     int
	Kind       EventKind
	Multiplier int16
	Held       time.Duration
}

// eventLog holds the events of the most recent cycle.
type eventLog struct {
	buf [MaxEvents]Event
	n   int
}

func (l *eventLog) reset() { l.n = 0 }

// push appends ev, dropping it when the log is already full.
func (l *eventLog) push(ev Event) bool {
	if l.n >= MaxEvents {
		return false
	}
	l.buf[l.n] = ev
	l.n++
	return true
}

func (l *eventLog) events() []Event { return l.buf[:l.n] }
