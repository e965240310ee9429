package scenario

import (
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ValidationError carries a user-facing reason for rejected input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// Invalid builds a ValidationError.
func Invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

var flexibleDateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
}

// DateLayout is the canonical layout stored for date steps.
const DateLayout = "2006-01-02"

// ClockLayout is the canonical layout stored for time-of-day steps.
const ClockLayout = "15:04"

// NonEmpty accepts any input with visible characters.
func NonEmpty() Validator {
	return func(raw string) (any, error) {
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil, Invalid("please send a non-empty answer")
		}
		return s, nil
	}
}

// OneOf accepts one of choices, case-insensitively, and stores the canonical spelling.
func OneOf(choices ...string) Validator {
	canon := make(map[string]string, len(choices))
	for _, c := range choices {
		canon[strings.ToLower(c)] = c
	}
	return func(raw string) (any, error) {
		if c, ok := canon[strings.ToLower(strings.TrimSpace(raw))]; ok {
			return c, nil
		}
		return nil, Invalid("please choose one of: %s", strings.Join(choices, ", "))
	}
}

// Length accepts trimmed text whose rune count lies in [min, max].
func Length(min, max int) Validator {
	return func(raw string) (any, error) {
		s := strings.TrimSpace(raw)
		n := utf8.RuneCountInString(s)
		if n < min || n > max {
			return nil, Invalid("answer must be %d-%d characters long", min, max)
		}
		return s, nil
	}
}

// Pattern accepts trimmed text matching expr. It panics on a bad expression,
// which surfaces when definitions are built at startup.
func Pattern(expr, reason string) Validator {
	re := regexp.MustCompile(expr)
	return func(raw string) (any, error) {
		s := strings.TrimSpace(raw)
		if !re.MatchString(s) {
			return nil, Invalid("%s", reason)
		}
		return s, nil
	}
}

// Number accepts a finite decimal number within [min, max].
func Number(min, max float64) Validator {
	return func(raw string) (any, error) {
		s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, Invalid("please send a number")
		}
		if v < min || v > max {
			return nil, Invalid("number must be between %s and %s", formatNumber(min), formatNumber(max))
		}
		return v, nil
	}
}

// Date accepts common date spellings and stores them as YYYY-MM-DD.
func Date() Validator {
	return func(raw string) (any, error) {
		s := strings.TrimSpace(raw)
		for _, layout := range flexibleDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(DateLayout), nil
			}
		}
		return nil, Invalid("please send a date like 2026-05-31")
	}
}

// Clock accepts a 24h time of day and stores it as HH:MM.
func Clock() Validator {
	return func(raw string) (any, error) {
		s := strings.TrimSpace(raw)
		for _, layout := range []string{ClockLayout, "15.04", "1504"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(ClockLayout), nil
			}
		}
		return nil, Invalid("please send a time like 19:30")
	}
}

// Email accepts a bare address.
func Email() Validator {
	return func(raw string) (any, error) {
		s := strings.TrimSpace(raw)
		addr, err := mail.ParseAddress(s)
		if err != nil || addr.Address != s || !strings.Contains(s, ".") {
			return nil, Invalid("please send a valid email address")
		}
		return s, nil
	}
}

// Optional lets the user skip a step with one of skipWords, storing "".
func Optional(v Validator, skipWords ...string) Validator {
	return func(raw string) (any, error) {
		s := strings.TrimSpace(raw)
		for _, w := range skipWords {
			if strings.EqualFold(s, w) {
				return "", nil
			}
		}
		return v(raw)
	}
}

// Chain runs validators in order on the same input and keeps the last value.
func Chain(vs ...Validator) Validator {
	return func(raw string) (any, error) {
		var out any
		for _, v := range vs {
			val, err := v(raw)
			if err != nil {
				return nil, err
			}
			out = val
		}
		return out, nil
	}
}

// WithReason replaces the rejection reason of v.
func WithReason(v Validator, reason string) Validator {
	return func(raw string) (any, error) {
		val, err := v(raw)
		if err != nil {
			return nil, &ValidationError{Reason: reason}
		}
		return val, nil
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
