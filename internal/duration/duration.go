// Package duration provides parsing for human-readable duration strings.
//
// Config values accept Go durations ("500ms", "5s", "1m30s") plus whole
// days and weeks ("7d", "2w"), which Go's time.ParseDuration lacks.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var unitPattern = regexp.MustCompile(`^(\d+)([dw])$`)

// Parse parses a Go duration or Nd (days) / Nw (weeks).
// Negative durations are rejected.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration: %s", s)
		}
		return d, nil
	}

	matches := unitPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid duration format: %q (use 5s, 1m, 7d or 2w)", s)
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}

	switch matches[2] {
	case "d":
		return time.Duration(num) * 24 * time.Hour, nil
	case "w":
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid duration unit: %s", matches[2])
	}
}

// Format renders d in the shortest form Parse accepts.
func Format(d time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case d > 0 && d%(7*day) == 0:
		return strconv.FormatInt(int64(d/(7*day)), 10) + "w"
	case d > 0 && d%day == 0:
		return strconv.FormatInt(int64(d/day), 10) + "d"
	}
	return d.String()
}
