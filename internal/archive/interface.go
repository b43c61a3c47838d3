// Package archive persists collected samples to a local sqlite database
// so runs can be inspected after the process exits. Archiving is optional;
// a disabled config yields a no-op archiver.
package archive

import (
	"context"
	"time"
)

// Record is one archived sample row.
type Record struct {
	Timestamp time.Time
	DeviceID  string
	Entity    string
	Metric    string
	Value     float64
	Strategy  string
	Degraded  bool
	Estimated bool
}

// Archiver accepts batches of records for durable storage.
type Archiver interface {
	Record(ctx context.Context, records []Record) error
	Close() error
}

// Repository is the storage backend behind the archiver service.
type Repository interface {
	Store(records []Record) error
	Close() error
}
