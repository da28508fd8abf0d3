package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type ctxKey struct{}

// cloning mimics middleware that attaches values with r.WithContext.
func cloning(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, "v")))
	})
}

func newTestMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/support/tickets/{ref}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reference":"` + r.PathValue("ref") + `"}`))
	})
	mux.HandleFunc("/", http.NotFound)
	return mux
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	h := cloning(Middleware(newTestMux()))
	route := "GET /api/support/tickets/{ref}"
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, route, "200"))

	for _, ref := range []string{"01HV6Z8K3J2N4P5Q6R7S8T9V0W", "01HV6Z8K3J2N4P5Q6R7S8T9V0X"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/support/tickets/"+ref, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, route, "200")))
}

func TestMiddleware_UnknownPathsShareOneLabel(t *testing.T) {
	h := Middleware(newTestMux())
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404"))

	for _, path := range []string{"/wp-login.php", "/.env", "/api/nope"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, before+3, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")))
}

func TestMiddleware_SkipsMetricsEndpoint(t *testing.T) {
	var served bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { served = true }))
	inFlight := testutil.ToFloat64(HTTPRequestsInFlight)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.True(t, served)
	assert.Equal(t, inFlight, testutil.ToFloat64(HTTPRequestsInFlight))
}

func TestJobMetrics_InFlightBalances(t *testing.T) {
	const jobType = "send_email_test"

	JobStarted(jobType, time.Now().Add(-2*time.Second))
	assert.Equal(t, 1.0, testutil.ToFloat64(JobsInFlight.WithLabelValues(jobType)))

	JobFinished(jobType, JobOutcomeDead, time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(JobsInFlight.WithLabelValues(jobType)))
	assert.Equal(t, 1.0, testutil.ToFloat64(JobsTotal.WithLabelValues(jobType, JobOutcomeDead)))
}
