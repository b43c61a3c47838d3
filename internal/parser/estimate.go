package parser

import "strings"

// iOS exposes no public frame-rate or launch-time API, so when nothing can
// be measured the collector falls back to deterministic estimates keyed on
// device model, OS version and app-type keywords. Samples produced from
// these helpers must always carry the estimated flag.

const (
	baseFPS      = 60.0
	proMotionFPS = 120.0
	legacyFPS    = 30.0
)

// EstimateIOSFPS estimates the achievable frame rate from the device model
// and OS major version. ProMotion hardware (Pro-model phones, iPad Pro)
// reaches 120; pre-iOS-13 hardware is capped at 30.
func EstimateIOSFPS(model string, osMajor int) float64 {
	if osMajor > 0 && osMajor < 13 {
		return legacyFPS
	}

	lower := strings.ToLower(model)
	if strings.Contains(lower, "ipad8") || strings.Contains(lower, "ipad13") {
		return proMotionFPS
	}
	// iPhone13,2 and later Pro models ship ProMotion panels.
	if strings.Contains(lower, "iphone") && osMajor >= 15 {
		for _, pro := range []string{"iphone14,2", "iphone14,3", "iphone15,2", "iphone15,3", "iphone16,1", "iphone16,2"} {
			if strings.Contains(lower, pro) {
				return proMotionFPS
			}
		}
	}

	return baseFPS
}

// EstimateIOSStartup estimates a launch duration in seconds from app-type
// keywords in the bundle identifier. Games preload heavy assets, chat
// apps come up almost instantly.
func EstimateIOSStartup(bundleID string) float64 {
	lower := strings.ToLower(bundleID)
	switch {
	case strings.Contains(lower, "game") || strings.Contains(lower, "gaming"):
		return 0.5
	case strings.Contains(lower, "video") || strings.Contains(lower, "media"):
		return 2.0
	case strings.Contains(lower, "social") || strings.Contains(lower, "chat"):
		return 0.3
	case strings.Contains(lower, "browser") || strings.Contains(lower, "web"):
		return 1.0
	default:
		return 0.2
	}
}
