package engine

import "codeberg.org/mutker/mperf/internal/errors"

const (
	ErrCommandTimeout         = errors.ErrCommandTimeout
	ErrCommandFailed          = errors.ErrCommandFailed
	ErrParseFailure           = errors.ErrParseFailure
	ErrAllStrategiesExhausted = errors.ErrAllStrategiesExhausted
)
