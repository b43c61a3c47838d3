package archive_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/mperf/internal/archive"
	"codeberg.org/mutker/mperf/internal/errors"
	"codeberg.org/mutker/mperf/internal/logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}

func TestConfigValidate(t *testing.T) {
	disabled := archive.Config{}
	assert.NoError(t, disabled.Validate(), "A disabled archive needs no path")

	enabled := archive.DefaultConfig()
	enabled.Enabled = true
	assert.Error(t, enabled.Validate(), "An enabled archive requires a database path")

	enabled.DBPath = "/tmp/mperf.db"
	assert.NoError(t, enabled.Validate())

	enabled.BatchSize = -1
	err := enabled.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, archive.ErrInvalidConfig))
}

func TestDisabledServiceIsNoop(t *testing.T) {
	arch, err := archive.NewService(archive.Config{Enabled: false})
	require.NoError(t, err)

	records := []archive.Record{{
		Timestamp: time.Now(),
		DeviceID:  "emulator-5554",
		Entity:    "com.example.app",
		Metric:    "cpu",
		Value:     12.5,
	}}
	assert.NoError(t, arch.Record(context.Background(), records))
	assert.NoError(t, arch.Close())
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	_, err := archive.NewService(archive.Config{Enabled: true})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, archive.ErrInvalidConfig))
}

// Records still buffered when the archive closes are flushed, and a flush
// failure would surface as a Close error instead of silently dropping them.
func TestCloseFlushesBufferedRecords(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mperf.db")

	cfg := archive.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = dbPath

	arch, err := archive.NewService(cfg)
	require.NoError(t, err)

	// Fewer records than the batch size, so nothing is flushed before Close.
	records := []archive.Record{
		{Timestamp: time.Now(), DeviceID: "emulator-5554", Entity: "com.example.app", Metric: "cpu", Value: 5.2, Strategy: "cpuinfo-total"},
		{Timestamp: time.Now(), DeviceID: "emulator-5554", Entity: "com.example.app", Metric: "battery", Value: 87, Strategy: "battery-dumpsys", Degraded: false},
	}
	require.NoError(t, arch.Record(context.Background(), records))
	require.NoError(t, arch.Close())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&count))
	assert.Equal(t, 2, count)

	version, err := archive.GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, archive.SchemaVersion, version)
}
