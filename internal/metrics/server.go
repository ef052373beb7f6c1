package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	ledgerlog "ledger/internal/log"
)

// NewServeMux serves the registry at /metrics and a liveness check at
// /healthz, with every request traced.
func NewServeMux(m *Metrics, logger *ledgerlog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return Trace(logger, mux)
}

// Trace attaches a request-scoped logger carrying a request id and logs the
// outcome of each request. Scrapes are frequent, so successes log at debug.
func Trace(logger *ledgerlog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()

		reqLogger := logger.With("request_id", requestID)
		r = r.WithContext(ledgerlog.NewContext(r.Context(), reqLogger))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		level := slog.LevelDebug
		switch {
		case rw.statusCode >= 500:
			level = slog.LevelError
		case rw.statusCode >= 400:
			level = slog.LevelWarn
		}
		reqLogger.Log(r.Context(), level, "HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rw.statusCode,
			ledgerlog.FieldDuration, time.Since(start).Milliseconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
