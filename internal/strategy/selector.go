package strategy

import (
	"sort"

	"codeberg.org/mutker/mperf/internal/device"
)

// Select returns the ordered fallback chain for a (platform, metric) pair
// on a device running osVersion. Strategies whose minimum version exceeds
// osVersion are excluded. The chain is ordered most-specific first:
// higher minimum versions before lower ones, version-agnostic strategies
// last, registration order breaking ties. When nothing applies the chain
// is a single default sentinel so callers always have something to run.
func (t *Table) Select(platform device.Platform, metric string, osVersion device.Version) []Strategy {
	rows := t.rows[key{platform, metric}]

	eligible := make([]Strategy, 0, len(rows))
	for _, s := range rows {
		if s.MinVersion != nil && !osVersion.AtLeast(*s.MinVersion) {
			continue
		}
		eligible = append(eligible, s)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		vi, vj := eligible[i].MinVersion, eligible[j].MinVersion
		switch {
		case vi == nil && vj == nil:
			return false
		case vi == nil:
			return false
		case vj == nil:
			return true
		default:
			if vi.Major != vj.Major {
				return vi.Major > vj.Major
			}

			return vi.Minor > vj.Minor
		}
	})

	if len(eligible) == 0 {
		return []Strategy{Default(platform, metric)}
	}

	return eligible
}
