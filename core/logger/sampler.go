package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler lets num out of every den events through. A zero ratio passes
// everything.
type ratioSampler struct {
	ratio atomic.Uint64 // num<<32 | den
	seq   atomic.Uint64
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts the sequence.
func (s *ratioSampler) Set(num, den int) {
	if num <= 0 || den <= 0 {
		s.ratio.Store(0)
	} else {
		s.ratio.Store(uint64(min(num, den))<<32 | uint64(den))
	}
	s.seq.Store(0)
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	if r == 0 {
		return true
	}
	num, den := r>>32, r&0xffffffff
	n := s.seq.Add(1) - 1
	return n%den < num
}

// parseRatioSpec accepts "n/d" or "d" (meaning 1/d). Anything else, or a
// non-positive value, yields 0/0.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(a))
		den, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return num, den
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
