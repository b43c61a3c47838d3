package store_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/mperf/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReports(t *testing.T) {
	s := store.New(nil)
	require.NoError(t, s.AppendBatch([]store.Entry{
		entry("com.example.app", "cpu", at(1), 10),
		entry("com.other.app", "cpu", at(1), 20),
	}))

	dir := t.TempDir()
	require.NoError(t, s.WriteReports(dir))

	data, err := os.ReadFile(filepath.Join(dir, "results.json"))
	require.NoError(t, err)

	var results store.Results
	require.NoError(t, json.Unmarshal(data, &results))
	assert.Contains(t, results, "com.example.app")
	assert.Contains(t, results, "com.other.app")
	assert.Contains(t, results, store.GlobalEntity)

	_, err = os.Stat(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)

	// Per-entity subtrees, including the global aggregate.
	for _, entity := range []string{"com.example.app", "com.other.app", "global"} {
		_, err = os.Stat(filepath.Join(dir, entity, "results.json"))
		require.NoError(t, err, "Expected results.json for %s", entity)
		_, err = os.Stat(filepath.Join(dir, entity, "summary.json"))
		require.NoError(t, err, "Expected summary.json for %s", entity)
	}
}

func TestWriteReportsSummaryValues(t *testing.T) {
	s := store.New(nil)
	require.NoError(t, s.Append("com.example.app", "memory", store.Sample{Timestamp: at(1), Value: 100}))
	require.NoError(t, s.Append("com.example.app", "memory", store.Sample{Timestamp: at(2), Value: 200}))

	dir := t.TempDir()
	require.NoError(t, s.WriteReports(dir))

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)

	var summaries map[string]map[string]store.Summary
	require.NoError(t, json.Unmarshal(data, &summaries))
	assert.Equal(t, 150.0, summaries["com.example.app"]["memory"].Mean)
	assert.Equal(t, 100.0, summaries["com.example.app"]["memory"].Min)
	assert.Equal(t, 200.0, summaries["com.example.app"]["memory"].Max)
}
