package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHealthz(t *testing.T) {
	code, body := get(t, Handler(func(context.Context) error { return nil }), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, Handler(func(context.Context) error { return errors.New("redis down") }), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "redis down")
}

func TestHealthzWithoutCheck(t *testing.T) {
	code, _ := get(t, Handler(nil), "/healthz")
	assert.Equal(t, http.StatusOK, code)
}

func TestMetricsEndpointExposesRegisteredCollectors(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "metrics_test_events_total", Help: "contador de teste"})
	require.NoError(t, prometheus.Register(c))
	t.Cleanup(func() { prometheus.Unregister(c) })

	c.Add(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(c))

	code, body := get(t, Handler(nil), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "metrics_test_events_total 3")
}
