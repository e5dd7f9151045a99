//go:build linux

package matrix

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// NowMillis reads CLOCK_MONOTONIC, falling back to the runtime clock if
// the syscall fails.
func (MonotonicClock) NowMillis() uint32 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return goMillis()
	}
	return uint32(ts.Nano() / int64(time.Millisecond))
}

// Delay blocks for d using nanosleep, resuming after signal interruptions.
// It backs the settle and between-row waits of the row scanner.
func Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	req := unix.NsecToTimespec(d.Nanoseconds())
	for {
		var rem unix.Timespec
		err := unix.Nanosleep(&req, &rem)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return
		}
		req = rem
	}
}
