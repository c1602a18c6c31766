package performance

import "errors"

// ErrPoolStopped is returned when work is submitted to a stopped pool.
var ErrPoolStopped = errors.New("worker pool is stopped")
