package util

import "time"

// TimeDuration evaluate the run interval with the guard default value
func TimeDuration(configV, defaultV int, timeUnit time.Duration) time.Duration {
	if configV <= 0 {
		return time.Duration(defaultV) * timeUnit
	}
	return time.Duration(configV) * timeUnit
}

// AssignString returns the first non-empty string
func AssignString(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
