package parser

import (
	"strconv"
	"strings"
)

// IOSCPU extracts the CPU percentage for the app from a process-filtered
// `top -l 1` dump. The third field of the matching line carries the
// percentage, with or without a trailing '%'.
func IOSCPU(out, app string) (float64, bool) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, app) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) <= 2 {
			continue
		}

		v, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "%"), 64)
		if err != nil {
			continue
		}

		return v, true
	}

	return 0, false
}

// IOSMemoryInfo converts the raw byte count from
// `ideviceinfo -k MemoryUsage` to megabytes.
func IOSMemoryInfo(out string) (float64, bool) {
	bytes, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, false
	}

	return bytes / bytesPerMegabyte, true
}

// IOSMemoryTop extracts the resident memory in MB for the app from a `top`
// line; the memory column carries a `<float>M` token.
func IOSMemoryTop(out, app string) (float64, bool) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, app) {
			continue
		}

		for _, field := range strings.Fields(line) {
			if !strings.HasSuffix(field, "M") {
				continue
			}

			v, err := strconv.ParseFloat(strings.TrimSuffix(field, "M"), 64)
			if err != nil {
				continue
			}

			return v, true
		}
	}

	return 0, false
}

// IOSBattery parses the bare integer from `ideviceinfo -k BatteryCurrentCapacity`.
func IOSBattery(out string) (float64, bool) {
	level, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil || level < 0 || level > 100 {
		return 0, false
	}

	return float64(level), true
}

// IOSBatteryGrep finds the `BatteryCurrentCapacity: <int>` line in a
// grep-filtered full ideviceinfo dump.
func IOSBatteryGrep(out string) (float64, bool) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "BatteryCurrentCapacity:") {
			continue
		}

		_, value, found := strings.Cut(line, ":")
		if !found {
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

// IOSNetworkNetstat sums interface byte counters from `netstat -i` output
// and returns megabytes. Data rows end with numeric Ibytes/Obytes columns.
func IOSNetworkNetstat(out string) (float64, bool) {
	var totalBytes int64
	matched := false

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || strings.HasPrefix(fields[0], "Name") {
			continue
		}
		// Loopback traffic is not radio traffic.
		if strings.HasPrefix(fields[0], "lo") {
			continue
		}

		rowBytes := int64(0)
		numeric := 0
		for _, f := range fields[1:] {
			v, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				continue
			}
			rowBytes += v
			numeric++
		}

		if numeric >= 2 {
			totalBytes += rowBytes
			matched = true
		}
	}

	if !matched {
		return 0, false
	}

	return float64(totalBytes) / bytesPerMegabyte, true
}

// networkKeywords mark syslog lines attributable to network activity.
var networkKeywords = []string{"network", "wifi", "Wi-Fi", "TCP", "cellular", "en0"}

// IOSNetworkSyslog estimates recent network activity in MB from a bounded
// syslog capture by counting network-related lines. This is a coarse
// device-level estimate; callers flag the resulting sample as estimated.
func IOSNetworkSyslog(out string) (float64, bool) {
	if strings.TrimSpace(out) == "" {
		return 0, false
	}

	count := 0
	for _, line := range strings.Split(out, "\n") {
		for _, kw := range networkKeywords {
			if strings.Contains(line, kw) {
				count++
				break
			}
		}
	}

	if count == 0 {
		return 0, false
	}

	// Each attributable line stands in for roughly 100 KB of traffic.
	return float64(count) * 0.1, true
}

// IOSNetworkIfconfig estimates traffic from `ifconfig -a` output via
// `bytes <n>` tokens where present.
func IOSNetworkIfconfig(out string) (float64, bool) {
	var totalBytes int64
	matched := false

	fields := strings.Fields(out)
	for i := 0; i < len(fields)-1; i++ {
		if fields[i] != "bytes" && !strings.HasSuffix(fields[i], "bytes:") {
			continue
		}

		v, err := strconv.ParseInt(strings.Trim(fields[i+1], "():,"), 10, 64)
		if err != nil {
			continue
		}

		totalBytes += v
		matched = true
	}

	if !matched {
		return 0, false
	}

	return float64(totalBytes) / bytesPerMegabyte, true
}

// IOSFPSSyslog scans a bounded syslog capture for frame-rate keywords and
// returns an estimated FPS when rendering trouble is visible. Samples from
// this path are always flagged estimated.
func IOSFPSSyslog(out string) (float64, bool) {
	if strings.TrimSpace(out) == "" {
		return 0, false
	}

	drops := 0
	seen := false
	for _, line := range strings.Split(out, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "fps") || strings.Contains(lower, "frame") {
			seen = true
			if strings.Contains(lower, "drop") || strings.Contains(lower, "hitch") || strings.Contains(lower, "stutter") {
				drops++
			}
		}
	}

	if !seen {
		return 0, false
	}

	estimate := 60.0 - float64(drops)*2
	if estimate < 15 {
		estimate = 15
	}

	return estimate, true
}
