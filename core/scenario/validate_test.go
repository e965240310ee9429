package scenario

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name  string
		v     Validator
		raw   string
		want  any
		valid bool
	}{
		{"one of canonical", OneOf("en", "ru"), " EN ", "en", true},
		{"one of rejects", OneOf("en", "ru"), "de", nil, false},
		{"length runes", Length(2, 3), "Жанна"[:4], "Жа", true},
		{"length trims", Length(2, 50), "  Jo  ", "Jo", true},
		{"length short", Length(2, 50), "J", nil, false},
		{"length long", Length(1, 3), "abcd", nil, false},
		{"pattern", Pattern(`^[a-z]{4}$`, "four letters"), "abcd", "abcd", true},
		{"pattern rejects", Pattern(`^[a-z]{4}$`, "four letters"), "ab", nil, false},
		{"number", Number(0, 100), "42", float64(42), true},
		{"number comma", Number(0, 100), "4,5", 4.5, true},
		{"number range", Number(0, 100), "101", nil, false},
		{"number garbage", Number(0, 100), "lots", nil, false},
		{"number nan", Number(0, 100), "NaN", nil, false},
		{"number inf", Number(0, 100), "Inf", nil, false},
		{"number negative inf", Number(-100, 100), "-Inf", nil, false},
		{"date iso", Date(), "2026-05-31", "2026-05-31", true},
		{"date dotted", Date(), "31.05.2026", "2026-05-31", true},
		{"date short", Date(), "2026-5-3", "2026-05-03", true},
		{"date invalid", Date(), "2026-02-30", nil, false},
		{"clock", Clock(), "19:30", "19:30", true},
		{"clock dotted", Clock(), "9.05", "09:05", true},
		{"clock invalid", Clock(), "25:00", nil, false},
		{"email", Email(), "a@b.io", "a@b.io", true},
		{"email display name", Email(), "Ann <a@b.io>", nil, false},
		{"optional skip", Optional(Length(10, 20), "-", "skip"), "SKIP", "", true},
		{"optional value", Optional(Length(1, 20), "-"), "text", "text", true},
		{"optional invalid", Optional(Length(10, 20), "-"), "short", nil, false},
		{"non empty", NonEmpty(), "   ", nil, false},
		{"chain", Chain(Length(1, 10), Number(0, 9)), "7", float64(7), true},
		{"chain stops", Chain(Length(1, 1), Number(0, 99)), "42", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.v(tc.raw)
			if !tc.valid {
				require.Error(t, err)
				var verr *ValidationError
				assert.True(t, errors.As(err, &verr))
				assert.NotEmpty(t, verr.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWithReasonOverridesMessage(t *testing.T) {
	_, err := WithReason(Number(0, 1), "nope")("x")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "nope", verr.Reason)
}

func TestStepCheckDefaultsToNonEmpty(t *testing.T) {
	st := Step{Name: "free"}
	v, err := st.Check(" hi ")
	require.NoError(t, err)
	assert.Equal(t, "hi", v)

	_, err = st.Check("")
	assert.Error(t, err)
	assert.Equal(t, "free", st.DataKey())
}

func TestDataAccessors(t *testing.T) {
	d := Data{"s": "x", "n": float64(3), "b": true}
	assert.Equal(t, "x", d.String("s"))
	assert.Equal(t, "", d.String("n"))
	n, ok := d.Number("n")
	assert.True(t, ok)
	assert.Equal(t, float64(3), n)
	assert.True(t, d.Bool("b"))

	c := d.Clone()
	c["s"] = "y"
	assert.Equal(t, "x", d.String("s"))
	assert.ElementsMatch(t, []string{"s", "n", "b"}, d.Keys())
}
