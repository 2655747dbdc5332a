package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/day/{date}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/day/{date}", "418"))
	req := httptest.NewRequest(http.MethodGet, "/day/2026-02-06", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/day/{date}", "418"))
	assert.Equal(t, before+1, after)
}

func TestObserveStepStatusLabel(t *testing.T) {
	ObserveStep("daily", "collect", time.Now(), nil)
	ObserveStep("daily", "collect", time.Now(), errors.New("boom"))

	// one series per status label
	assert.GreaterOrEqual(t, testutil.CollectAndCount(StepDuration), 2)
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordsCollected.WithLabelValues("appstore").Add(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chartpulse_records_collected_total")
}
