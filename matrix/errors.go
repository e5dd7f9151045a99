package matrix

import "errors"

var (
	// ErrInvalidConfig is wrapped by every Configure failure.
	ErrInvalidConfig = errors.New("invalid matrix configuration")

	// ErrNoConcurrency is returned by StartTask when the engine was built
	// with NopLocker and cannot be shared with a scan goroutine.
	ErrNoConcurrency = errors.New("periodic task requires a real locker")

	// ErrInvalidProfile is returned by SetRepeatProfile for thresholds
	// that are not non-decreasing.
	ErrInvalidProfile = errors.New("invalid repeat profile")
)
