//go:build !linux

package matrix

import "time"

func (MonotonicClock) NowMillis() uint32 { return goMillis() }

// Delay blocks for d. Off Linux the runtime timer is the only option.
func Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}
