package watch

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// ParseInterval parses a Go duration, optionally led by a whole number of
// days: "90s", "12h", "7d", "1d12h".
func ParseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	daysPart, rest, found := strings.Cut(s, "d")
	days, err := strconv.Atoi(daysPart)
	if !found || err != nil || days < 0 {
		return 0, fmt.Errorf("invalid interval format: %q (examples: 30m, 1h, 24h, 7d)", s)
	}
	d := time.Duration(days) * day
	if rest == "" {
		return d, nil
	}
	extra, err := time.ParseDuration(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid interval format: %q (examples: 30m, 1h, 24h, 7d)", s)
	}
	return d + extra, nil
}

// FormatInterval renders d the way ParseInterval reads it, dropping
// components finer than the largest two.
func FormatInterval(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < day:
		return joinUnits(int(d/time.Hour), "h", int(d%time.Hour/time.Minute), "m")
	}
	return joinUnits(int(d/day), "d", int(d%day/time.Hour), "h")
}

func joinUnits(major int, majorUnit string, minor int, minorUnit string) string {
	if minor == 0 {
		return strconv.Itoa(major) + majorUnit
	}
	return strconv.Itoa(major) + majorUnit + strconv.Itoa(minor) + minorUnit
}
