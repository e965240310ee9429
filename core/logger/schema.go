package logger

import "strings"

var allowedStatus = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"skip":         "skip",
	"retry":        "retry",
	"rate_limited": "rate_limited",
	"cancelled":    "cancelled",
}

var allowedCache = map[string]string{
	"hit":     "hit",
	"miss":    "miss",
	"refresh": "refresh",
	"error":   "error",
	"skip":    "skip",
	"off":     "skip",
}

var allowedOutcome = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"failed":       "fail",
	"cancelled":    "cancelled",
	"rate_limited": "rate_limited",
	"started":      "started",
	"advanced":     "advanced",
	"invalid":      "invalid",
	"completed":    "completed",
	"no_scenario":  "no_scenario",
}

// normalizeLevel maps slog level names onto the fixed set, keeping offsets
// such as "INFO+2" as is.
func normalizeLevel(level string) string {
	switch strings.ToUpper(level) {
	case "":
		return "INFO"
	case "WARNING":
		return "WARN"
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "", false
	}
	if mapped, ok := allowedStatus[status]; ok {
		return mapped, true
	}
	return status, false
}

func normalizeCache(cache string) (string, bool) {
	cache = strings.ToLower(strings.TrimSpace(cache))
	if cache == "" {
		return "", false
	}
	val, ok := allowedCache[cache]
	return val, ok
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	if outcome == "" {
		return "", false
	}
	val, ok := allowedOutcome[outcome]
	return val, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"scenario",
	"step",
	"kind",
	"op",
	"cb_key",
	"outcome",
	"cache",
	"duration_ms",
	"ttl_ms",
	"messages",
	"count",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"addr",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"rate_limited",
}
