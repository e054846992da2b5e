package config

import (
	"fmt"
	"strconv"
	"time"
)

// ParseInterval parses interval notation (e.g., "30m", "6h", "7d") into time.Duration.
// Anything without a day suffix is handed to time.ParseDuration, so "90s" and
// "1h30m" work too.
func ParseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval format: %q", interval)
	}

	unit := interval[len(interval)-1]
	if unit == 'd' {
		value, err := strconv.Atoi(interval[:len(interval)-1])
		if err != nil {
			return 0, fmt.Errorf("invalid interval value: %s", interval)
		}
		if value <= 0 {
			return 0, fmt.Errorf("interval value must be positive: %s", interval)
		}
		return time.Duration(value) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(interval)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q (use e.g. 30m, 6h or 7d)", interval)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval value must be positive: %s", interval)
	}
	return d, nil
}
