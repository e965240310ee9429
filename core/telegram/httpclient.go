package telegram

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/swingbot/core/logger"
	"github.com/m3rciful/swingbot/core/telegram/netutil"
)

const (
	dialTimeout      = 5 * time.Second
	handshakeTimeout = 5 * time.Second
	idleConnTimeout  = 90 * time.Second
	// pollMargin is added on top of the long poll timeout so getUpdates
	// responses are not cut off by the transport.
	pollMargin    = 10 * time.Second
	retryAttempts = 3
	retryBackoff  = time.Second
)

// BuildHTTPClient returns the Bot API client. Timeouts leave room for a
// getUpdates call held open for pollTimeout.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   handshakeTimeout,
		ResponseHeaderTimeout: pollTimeout + pollMargin,
	}
	return &http.Client{
		Timeout: pollTimeout + 2*pollMargin,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: retryAttempts,
			backoff:    retryBackoff,
		},
	}
}

// retryTransport repeats requests that failed before reaching the API.
// Requests whose body cannot be replayed are sent once.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.maxRetries; attempt++ {
		if !netutil.ShouldRetry(err) || (req.Body != nil && req.GetBody == nil) {
			return nil, err
		}
		logger.Warn(req.Context(), "tg.http", "http.retry",
			slog.String("status", "retry"),
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
		if werr := wait(req.Context(), t.backoff*time.Duration(attempt)); werr != nil {
			return nil, werr
		}
		next := req.Clone(req.Context())
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, berr
			}
			next.Body = body
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
