// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are paths used verbatim as metric labels.
var staticRoutes = map[string]struct{}{
	"/":                        {},
	"/questions":               {},
	"/rankings/session":        {},
	"/rankings/session/submit": {},
	"/rankings/manual":         {},
	"/kanban":                  {},
	"/kanban/move":             {},
	"/billing/checkout":        {},
	"/internal/stripe":         {},
	"/health":                  {},
	"/health/ready":            {},
	"/metrics":                 {},
}

// normalizePath folds dynamic path segments into route patterns so metric
// label cardinality stays bounded: /questions/abc/similar becomes
// /questions/{id}/similar.
func normalizePath(path string) string {
	if _, ok := staticRoutes[path]; ok {
		return path
	}

	if strings.HasPrefix(path, "/questions/") {
		parts := strings.Split(path, "/")
		switch {
		case len(parts) == 4 && parts[3] == "similar":
			return "/questions/{id}/similar"
		case len(parts) == 3 && parts[2] != "":
			return "/questions/{id}"
		}
	}

	if strings.HasPrefix(path, "/ws/boards/") {
		if parts := strings.Split(path, "/"); len(parts) == 4 && parts[3] != "" {
			return "/ws/boards/{scope}"
		}
	}

	// Unknown routes keep their raw path so new endpoints still get counted
	return path
}

// metricsResponseWriter records the outgoing status code and byte count.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// HTTPMetrics records per-request duration, size, and count metrics.
// Health probes are skipped; load balancers hit them too often to be
// worth a time series.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/health/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			var requestSize int64
			if cl := r.Header.Get("Content-Length"); cl != "" {
				if size, err := strconv.ParseInt(cl, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
