package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/PauloHFS/otel-chat-tools/internal/logging"
	"github.com/PauloHFS/otel-chat-tools/internal/metrics"
)

// scrapeRecorder captures the status and body size of a metrics response.
type scrapeRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (s *scrapeRecorder) WriteHeader(code int) {
	if s.written {
		return
	}
	s.status = code
	s.written = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *scrapeRecorder) Write(b []byte) (int, error) {
	if !s.written {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// Logger logs every request to the metrics endpoint and counts it in
// http_requests_total. Successful scrapes log at debug.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &scrapeRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.status)).Inc()

		attrs := []any{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int("bytes", rec.bytes),
			slog.String("scraper", r.UserAgent()),
			slog.Duration("duration", time.Since(start)),
		}

		logger := logging.Get()
		switch {
		case rec.status >= http.StatusInternalServerError:
			logger.ErrorContext(r.Context(), "metrics scrape failed", attrs...)
		case rec.status >= http.StatusBadRequest:
			logger.WarnContext(r.Context(), "metrics request rejected", attrs...)
		default:
			logger.DebugContext(r.Context(), "metrics scraped", attrs...)
		}
	})
}
