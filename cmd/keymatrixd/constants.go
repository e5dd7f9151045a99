package main

import "time"

// Daemon defaults
const (
	defaultPollHz       = 50 // Consumer loop frequency (Hz)
	defaultSocketPath   = "/tmp/keymatrixd.sock"
	defaultHTTPPort     = 3002
	defaultBackend      = backendSim
	defaultPull         = "down"
	defaultScanPeriodMS = 5

	stateWSPath = "/ws/state"
)

// Matrix backends
const (
	backendGPIO = "gpio"
	backendSim  = "sim"
)

// snapshotTimeout bounds how long a websocket or IPC handler waits for the
// daemon loop to answer a request.
const snapshotTimeout = 1 * time.Second

// wsAxisCoalesceWindow is the maximum time window during which bursty axis
// updates are coalesced (latest-wins per axis) before broadcasting.
const wsAxisCoalesceWindow = 50 * time.Millisecond
