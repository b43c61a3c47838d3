package device

import (
	"fmt"
	"strconv"
	"strings"

	"codeberg.org/mutker/mperf/internal/command"
)

// Platform identifies the device operating system family.
type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
)

// Version is a parsed OS version used for strategy gating. Only major and
// minor components participate in comparisons.
type Version struct {
	Major int
	Minor int
}

// ParseVersion parses strings like "14", "13.1" or "17.5.1". Trailing
// components beyond minor are ignored.
func ParseVersion(s string) (Version, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, false
	}

	parts := strings.SplitN(s, ".", 3)
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, false
	}

	v := Version{Major: major}
	if len(parts) > 1 {
		if minor, err := strconv.Atoi(parts[1]); err == nil {
			v.Minor = minor
		}
	}

	return v, true
}

// AtLeast reports whether v >= o.
func (v Version) AtLeast(o Version) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}

	return v.Minor >= o.Minor
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Device is one discovered handset or tablet.
type Device struct {
	ID        string
	Platform  Platform
	OSVersion Version
	Model     string
}

// Shell builds an `adb [-s id] shell <cmdline>` invocation. Pipelines in
// cmdline (e.g. `dumpsys cpuinfo | grep pkg`) run on the device.
func (d Device) Shell(cmdline string) command.Spec {
	args := make([]string, 0, 4)
	if d.ID != "" {
		args = append(args, "-s", d.ID)
	}
	args = append(args, "shell", cmdline)

	return command.New("adb", args...)
}

// idTools lists the libimobiledevice tools that accept a -u device selector.
var idTools = map[string]bool{
	"ideviceinfo":        true,
	"idevicediagnostics": true,
	"idevicedebug":       true,
	"idevicesyslog":      true,
	"ideviceinstaller":   true,
}

// Tool builds a libimobiledevice tool invocation, injecting the device
// selector where the tool supports one.
func (d Device) Tool(name string, args ...string) command.Spec {
	if d.ID != "" && idTools[name] {
		args = append([]string{"-u", d.ID}, args...)
	}

	return command.New(name, args...)
}

// ToolShell builds a host-side `sh -c` pipeline over a libimobiledevice
// tool, e.g. `ideviceinfo | grep -A 5 Battery`.
func (d Device) ToolShell(cmdline string) command.Spec {
	if d.ID != "" {
		fields := strings.SplitN(cmdline, " ", 2)
		if idTools[fields[0]] {
			rest := ""
			if len(fields) > 1 {
				rest = " " + fields[1]
			}
			cmdline = fields[0] + " -u " + d.ID + rest
		}
	}

	return command.Shell(cmdline)
}
