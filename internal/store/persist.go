package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Summarize computes descriptive statistics for every series in the
// snapshot. Empty series are skipped.
func Summarize(results Results) map[string]map[string]Summary {
	out := make(map[string]map[string]Summary, len(results))
	for entity, metrics := range results {
		for metric, samples := range metrics {
			if len(samples) == 0 {
				continue
			}
			values := make([]float64, len(samples))
			for i, s := range samples {
				values[i] = s.Value
			}
			if out[entity] == nil {
				out[entity] = make(map[string]Summary, len(metrics))
			}
			out[entity][metric] = summarize(values)
		}
	}

	return out
}

func summarize(values []float64) Summary {
	data := stats.Float64Data(values)
	mean, _ := data.Mean()
	median, _ := data.Median()
	minV, _ := data.Min()
	maxV, _ := data.Max()
	stddev, _ := data.StandardDeviation()
	p90, _ := data.Percentile(90)

	return Summary{
		Count:  len(values),
		Mean:   mean,
		Median: median,
		Min:    minV,
		Max:    maxV,
		StdDev: stddev,
		P90:    p90,
	}
}

// WriteReports persists the snapshot under dir: results.json and
// summary.json at the top level, plus one subdirectory per entity
// (global included) holding that entity's slice of both files.
func (s *Store) WriteReports(dir string) error {
	results := s.Snapshot()
	summaries := Summarize(results)

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return errFactory.Wrap(ErrPersistStore, err)
	}
	if err := writeJSON(filepath.Join(dir, "results.json"), results); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "summary.json"), summaries); err != nil {
		return err
	}

	entities := make([]string, 0, len(results))
	for entity := range results {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	for _, entity := range entities {
		sub := filepath.Join(dir, sanitizeEntity(entity))
		if err := os.MkdirAll(sub, dirPerm); err != nil {
			return errFactory.Wrap(ErrPersistStore, err)
		}
		if err := writeJSON(filepath.Join(sub, "results.json"), results[entity]); err != nil {
			return err
		}
		if summary, ok := summaries[entity]; ok {
			if err := writeJSON(filepath.Join(sub, "summary.json"), summary); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errFactory.Wrap(ErrPersistStore, err)
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return errFactory.Wrap(ErrPersistStore, err)
	}

	return nil
}

// sanitizeEntity maps an entity name to a filesystem-safe directory name.
// Bundle identifiers only need path separators replaced.
func sanitizeEntity(entity string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}

		return r
	}, entity)
}
