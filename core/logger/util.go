package logger

import (
	"strings"
	"time"
)

// RoundMS rounds d to whole milliseconds; negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and reports whether any were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if limit <= 0 {
		return "", len(values) > 0
	}
	truncated := len(values) > limit
	if truncated {
		values = values[:limit]
	}
	return strings.Join(values, ", "), truncated
}
