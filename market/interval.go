package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseInterval accepts exchange style intervals ("1m", "4h", "1d", "1w")
// as well as the M1/H1/D1 timeframe names.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}

	var unit byte
	var num string
	switch {
	case s[0] >= '0' && s[0] <= '9':
		unit = s[len(s)-1]
		num = s[:len(s)-1]
	default:
		unit = s[0]
		num = s[1:]
		switch unit {
		case 'M':
			unit = 'm'
		case 'H':
			unit = 'h'
		case 'D':
			unit = 'd'
		case 'W':
			unit = 'w'
		}
	}

	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}

	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid interval %q", s)
}

// IntervalString formats d the way ParseInterval reads it ("1m", "4h", "1d").
func IntervalString(d time.Duration) (string, error) {
	if d <= 0 || d%time.Second != 0 {
		return "", fmt.Errorf("invalid interval: %s", d)
	}

	switch {
	case d%(7*24*time.Hour) == 0:
		return fmt.Sprintf("%dw", d/(7*24*time.Hour)), nil
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour)), nil
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour), nil
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute), nil
	}
	return fmt.Sprintf("%ds", d/time.Second), nil
}
