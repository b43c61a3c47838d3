// Package parser holds the pure text-to-value extraction functions for
// device command output. Parsers never error: malformed input yields
// ok == false and the caller falls through to the next strategy.
package parser

import (
	"strconv"
	"strings"
)

const (
	kilobytesPerMegabyte = 1024
	bytesPerMegabyte     = 1024 * 1024
	nanosPerMilli        = 1_000_000
)

// AndroidCPU extracts the CPU percentage for pkg from `dumpsys cpuinfo`
// output. Lines look like `  5.2% 1234:com.example.app/ (pid 1234)`; the
// leading float is the percentage. For the Android 14 `--total` variant the
// aggregate `TOTAL:` line is used when no per-package line matches.
func AndroidCPU(out, pkg string) (float64, bool) {
	var totalLine string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, pkg) {
			if v, ok := leadingPercent(line); ok {
				return v, true
			}
		}
		if strings.HasPrefix(strings.ToUpper(line), "TOTAL") {
			totalLine = line
		}
	}

	if totalLine != "" {
		fields := strings.Fields(totalLine)
		for _, f := range fields {
			if v, ok := percentValue(f); ok {
				return v, true
			}
		}
	}

	return 0, false
}

func leadingPercent(line string) (float64, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false
	}

	return percentValue(fields[0])
}

func percentValue(s string) (float64, bool) {
	if !strings.HasSuffix(s, "%") {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// AndroidMemory extracts total PSS in MB from `dumpsys meminfo` output.
// The relevant line reads `TOTAL PSS:  123456 kB`.
func AndroidMemory(out string) (float64, bool) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "TOTAL PSS:") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		kb, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}

		return float64(kb) / kilobytesPerMegabyte, true
	}

	return 0, false
}

// AndroidBattery extracts the battery percentage from the `level` field of
// `dumpsys battery` output.
func AndroidBattery(out string) (float64, bool) {
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		if strings.TrimSpace(key) != "level" {
			continue
		}

		level, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}

		return float64(level), true
	}

	return 0, false
}

// AndroidNetwork sums foreground and background byte counts for pkg from
// `dumpsys traffic` output and returns megabytes. Labeled
// `Foreground: <n>` / `Background: <n>` fields are preferred; otherwise the
// second and third whitespace fields are taken as byte counts.
func AndroidNetwork(out, pkg string) (float64, bool) {
	var totalBytes int64
	matched := false

	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, pkg) {
			continue
		}

		fg, fgOK := labeledInt(line, "Foreground:")
		bg, bgOK := labeledInt(line, "Background:")
		if fgOK || bgOK {
			totalBytes += fg + bg
			matched = true
			continue
		}

		fields := strings.Fields(line)
		if len(fields) >= 3 {
			fg, errFG := strconv.ParseInt(fields[1], 10, 64)
			bg, errBG := strconv.ParseInt(fields[2], 10, 64)
			if errFG == nil && errBG == nil {
				totalBytes += fg + bg
				matched = true
			}
		}
	}

	if !matched {
		return 0, false
	}

	return float64(totalBytes) / bytesPerMegabyte, true
}

func labeledInt(line, label string) (int64, bool) {
	idx := strings.Index(line, label)
	if idx < 0 {
		return 0, false
	}

	rest := strings.Fields(line[idx+len(label):])
	if len(rest) == 0 {
		return 0, false
	}

	v, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// AndroidFPS derives frames per second from a gfxinfo/SurfaceFlinger
// latency dump. The first two header lines are skipped; remaining numeric
// values are per-frame draw durations in nanoseconds. FPS = 1000 / mean
// frame duration in milliseconds.
func AndroidFPS(out string) (float64, bool) {
	lines := strings.Split(out, "\n")
	if len(lines) <= 2 {
		return 0, false
	}

	var frameMillis []float64
	for _, line := range lines[2:] {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		for _, field := range strings.Fields(line) {
			ns, err := strconv.ParseFloat(field, 64)
			if err != nil {
				continue
			}
			frameMillis = append(frameMillis, ns/nanosPerMilli)
		}
	}

	if len(frameMillis) == 0 {
		return 0, false
	}

	var sum float64
	for _, ms := range frameMillis {
		sum += ms
	}
	mean := sum / float64(len(frameMillis))
	if mean <= 0 {
		return 0, false
	}

	return 1000 / mean, true
}

// AndroidStartup extracts the launch duration in seconds from
// `am start -W` output (`TotalTime: <ms>`).
func AndroidStartup(out string) (float64, bool) {
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found || strings.TrimSpace(key) != "TotalTime" {
			continue
		}

		ms, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}

		return float64(ms) / 1000, true
	}

	return 0, false
}
