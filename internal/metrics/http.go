package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// unmatchedRoute labels requests that reached no registered pattern, so
// scanners probing random paths cannot grow the label set.
const unmatchedRoute = "unmatched"

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.size += n
	return n, err
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// routeLabel is the ServeMux pattern that served r, such as
// "GET /api/analyses/{id}".
func routeLabel(r *http.Request) string {
	if r.Pattern == "" || r.Pattern == "/" {
		return unmatchedRoute
	}
	return r.Pattern
}

// Middleware records request count, latency and response size per route.
// It must wrap the ServeMux directly: the mux sets r.Pattern on the request
// it receives, and any middleware in between that clones the request hides it.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := routeLabel(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		HTTPResponseSize.WithLabelValues(route).Observe(float64(rec.size))
	})
}
