package metrics

import (
	"net/http"
	"time"
)

// InstrumentRoute wraps a route handler so every request records its
// duration, status class and declared body size under route. Pass the
// route pattern, not the request path, so label cardinality stays bounded.
// A nil m leaves the handler uninstrumented.
func InstrumentRoute(m *Metrics, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			m.RecordHTTPRequest(route, r.Method, rec.status(), time.Since(start).Seconds())
			if r.ContentLength > 0 {
				m.RecordRequestBody(route, r.ContentLength)
			}
		})
	}
}

// statusRecorder remembers the first status written. Handlers that only
// call Write get an implicit 200.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusRecorder) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}
