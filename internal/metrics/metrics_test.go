package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveOutcome(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveOutcome(PassFirst, "success", 28)
	m.ObserveOutcome(PassFirst, "no_data", 0)
	m.ObserveOutcome(PassSweep, "success", 2)

	require.InDelta(t, 1, testutil.ToFloat64(m.outcomesTotal.WithLabelValues(PassFirst, "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.outcomesTotal.WithLabelValues(PassSweep, "success")), 0)
	require.InDelta(t, 30, testutil.ToFloat64(m.recordsTotal), 0)
}

func TestAttemptsBackoffAndWorkers(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveAttempt("exception", time.Second)
	m.ObserveAttempt("exception", 2*time.Second)
	m.ObserveBackoff(time.Minute)
	m.IncActiveWorkers()
	m.IncActiveWorkers()
	m.DecActiveWorkers()
	m.ObserveArchiveFailure()

	require.InDelta(t, 2, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("exception")), 0)
	require.Equal(t, 1, testutil.CollectAndCount(m.backoffSeconds))
	require.InDelta(t, 1, testutil.ToFloat64(m.activeWorkers), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.archiveFailuresTotal), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveOutcome(PassFirst, "success", 1)
		m.ObserveAttempt("success", time.Second)
		m.ObserveBackoff(time.Second)
		m.ObserveArchiveFailure()
		m.IncActiveWorkers()
		m.DecActiveWorkers()
		m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	})
	require.Nil(t, m.Registry())
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveOutcome(PassFirst, "exception", 0)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `harvester_outcomes_total{pass="first",status="exception"} 1`))
}
