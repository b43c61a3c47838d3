package lifecycle

import "codeberg.org/mutker/mperf/internal/errors"

const (
	ErrLifecycleSequenceFailure = errors.ErrLifecycleSequenceFailure
	ErrCommandFailed            = errors.ErrCommandFailed
)
