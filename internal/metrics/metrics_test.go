package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgerlog "ledger/internal/log"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Materialized(3)
	m.Materialized(0)
	m.Retired()
	m.ObserveRefresh(OutcomeUpdated, 10*time.Millisecond)
	m.ObserveRefresh(OutcomeUpdated, 20*time.Millisecond)
	m.ObserveRefresh(OutcomeConflict, time.Millisecond)
	m.AlertEmitted("amqp")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecurrencesMaterialized))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecurrencesRetired))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BudgetRefreshes.WithLabelValues(OutcomeUpdated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BudgetRefreshes.WithLabelValues(OutcomeConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsEmitted.WithLabelValues("amqp")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Materialized(1)
	m.Retired()
	m.ObserveRefresh(OutcomeError, time.Second)
	m.AlertEmitted("notification")
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Retired()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "ledger_recurrences_retired_total 1"))
}

func TestServeMux(t *testing.T) {
	var buf syncBuffer
	logger := ledgerlog.New(ledgerlog.Config{
		Component: ledgerlog.ComponentMetrics,
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	srv := httptest.NewServer(NewServeMux(New(), logger))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	out := buf.String()
	assert.Contains(t, out, "path=/healthz")
	assert.Contains(t, out, "status_code=404")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "request_id=")
	assert.Contains(t, out, "component=metrics")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
