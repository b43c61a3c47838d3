package store

import "codeberg.org/mutker/mperf/internal/errors"

const (
	ErrStoreClosed  = errors.ErrStoreClosed
	ErrPersistStore = errors.ErrPersistStore
)
