package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Advance("onboarding", "advanced", 5*time.Millisecond)
	r.Advance("onboarding", "advanced", time.Millisecond)
	r.Advance("", "no_scenario", time.Millisecond)
	r.Cache("get", CacheHit)
	r.Cache("get", CacheMiss)
	r.DurableError("upsert")
	r.Swept(3)
	r.Swept(0)
	r.TerminalAction("onboarding", nil)
	r.TerminalAction("onboarding", errors.New("db"))
	r.MessageSent(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.advanceTotal.WithLabelValues("onboarding", "advanced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.advanceTotal.WithLabelValues("none", "no_scenario")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheTotal.WithLabelValues("get", CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.durableErrors.WithLabelValues("upsert")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.sweptTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.actionsTotal.WithLabelValues("onboarding", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messagesSent.WithLabelValues("true")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.advanceDuration))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Advance("x", "y", time.Second)
		r.Cache("get", CacheHit)
		r.DurableError("load")
		r.Swept(1)
		r.TerminalAction("x", nil)
		r.MessageSent(false)
	})
}

func TestExporterHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.Swept(2)

	srv := httptest.NewServer(NewExporter(":0", reg).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "swingbot_state_swept_total 2")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
