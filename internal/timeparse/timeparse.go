// Package timeparse implements the CLI time-string grammar shared by
// every duration flag (--timeout, --interval, --jitter, --delay,
// --poll-timeout): "<number>[unit]" where unit is one of s/m/h/d and a
// missing unit falls back to a flag-specific default.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var pattern = regexp.MustCompile(`^(-?\d+\.?\d*)\s*([a-zA-Z]?)$`)

var units = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// Parse converts a time string into a duration, using defaultUnit
// ("s", "m", "h", or "d") when the string carries no unit suffix.
func Parse(value, defaultUnit string) (time.Duration, error) {
	value = strings.TrimSpace(value)

	m := pattern.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("invalid time format: %q, use a format like \"5s\", \"2.5m\", \"1h\", \"0.5d\"", value)
	}

	number, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time format: %q: %w", value, err)
	}
	if number < 0 {
		return 0, fmt.Errorf("time value must not be negative: %q", value)
	}

	unit := strings.ToLower(m[2])
	if unit == "" {
		unit = strings.ToLower(defaultUnit)
	}

	factor, ok := units[unit]
	if !ok {
		return 0, fmt.Errorf("invalid time unit %q, use one of s, m, h, d", unit)
	}

	return time.Duration(number * float64(factor)), nil
}

// Seconds is a convenience wrapper returning the parsed duration in
// fractional seconds, matching the grammar described in spec.md §6.
func Seconds(value, defaultUnit string) (float64, error) {
	d, err := Parse(value, defaultUnit)
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}
