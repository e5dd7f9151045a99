package matrix

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// taskState is the handle of the periodic scan goroutine.
type taskState struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	period atomic.Int64
}

// StartTask runs Update every period on a dedicated goroutine until
// StopTask is called or ctx is canceled. Calling it while the task is
// already running only updates the period. It fails with ErrNoConcurrency
// when the engine uses NopLocker.
func (e *Engine) StartTask(ctx context.Context, period time.Duration) error {
	if isNop(e.lock) {
		return ErrNoConcurrency
	}
	e.SetTaskPeriod(period)

	e.task.mu.Lock()
	defer e.task.mu.Unlock()
	if e.task.done != nil {
		if e.task.ctx.Err() == nil {
			return nil
		}
		// The previous task is exiting on parent cancellation and has not
		// cleared its handle yet. It runs no further cycles.
		e.task.clear()
	}

	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.task.ctx = taskCtx
	e.task.cancel = cancel
	e.task.done = done
	go e.runTask(taskCtx, done)

	e.logger.Info("matrix scan task started", "period", e.TaskPeriod())
	return nil
}

// StopTask asks the scan goroutine to exit and waits up to StopTimeout for
// it. A goroutine that does not acknowledge in time is abandoned; it will
// not run another scan cycle. The handle is cleared either way.
func (e *Engine) StopTask() {
	e.task.mu.Lock()
	defer e.task.mu.Unlock()
	if e.task.done == nil {
		return
	}

	e.task.cancel()
	select {
	case <-e.task.done:
		e.logger.Info("matrix scan task stopped")
	case <-time.After(StopTimeout):
		e.logger.Warn("matrix scan task did not stop in time, abandoning it", "timeout", StopTimeout)
	}
	e.task.clear()
}

// clear drops the handle. Callers hold mu.
func (t *taskState) clear() {
	t.cancel()
	t.ctx = nil
	t.cancel = nil
	t.done = nil
}

// TaskRunning reports whether a scan goroutine handle is held.
func (e *Engine) TaskRunning() bool {
	e.task.mu.Lock()
	defer e.task.mu.Unlock()
	return e.task.done != nil
}

// SetTaskPeriod changes the scan period, effective after the current
// wait. Non-positive periods select DefaultTaskPeriod.
func (e *Engine) SetTaskPeriod(period time.Duration) {
	if period <= 0 {
		period = DefaultTaskPeriod
	}
	e.task.period.Store(int64(period))
}

func (e *Engine) TaskPeriod() time.Duration {
	return time.Duration(e.task.period.Load())
}

func (e *Engine) runTask(ctx context.Context, done chan struct{}) {
	defer func() {
		close(done)
		e.task.mu.Lock()
		if e.task.done == done {
			// Exited on parent cancellation rather than StopTask.
			e.task.clear()
		}
		e.task.mu.Unlock()
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := e.updateWhile(ctx); err != nil {
			e.logger.Warn("matrix scan failed", "error", err)
		}
		timer.Reset(e.TaskPeriod())
	}
}

// updateWhile is Update, skipped once ctx is done. The check happens
// inside the critical section so an abandoned task cannot slip in a
// cycle after StopTask returned.
func (e *Engine) updateWhile(ctx context.Context) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if ctx.Err() != nil || !e.configured {
		return nil
	}
	if err := e.scan.scan(&e.raw); err != nil {
		return fmt.Errorf("scan matrix: %w", err)
	}
	e.process(&e.raw, e.clock.NowMillis())
	return nil
}
