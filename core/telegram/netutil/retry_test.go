package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"read timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, true},
		{"url timeout", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: timeoutErr{}}, true},
		{"wrapped dial", fmt.Errorf("send: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), true},
		{"cancelled", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: context.Canceled}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldRetry(tc.err))
		})
	}
}
