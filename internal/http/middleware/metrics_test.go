package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetrics_RecordsRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Handler())
	r.Get("/news/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	for _, id := range []string{"1", "2"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/news/"+id, nil))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	labels := prometheus.Labels{"method": http.MethodGet, "route": "/news/{id}", "status": "201"}
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.Requests.With(labels)))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
	require.Positive(t, testutil.CollectAndCount(metrics.Duration))
}

func TestHTTPMetrics_ReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)

	second, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)
	require.Same(t, first.Requests, second.Requests)
}

func TestHTTPMetrics_NilIsNoop(t *testing.T) {
	var m *HTTPMetrics
	rr := httptest.NewRecorder()
	Chain(okHandler(), m.Handler()).ServeHTTP(rr, makeReq("/"))
	require.Equal(t, http.StatusOK, rr.Code)
}
