// Package middleware wraps the handlers of the metrics endpoint.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/PauloHFS/otel-chat-tools/internal/logging"
	"github.com/PauloHFS/otel-chat-tools/internal/metrics"
)

// Recovery answers 500 when a metrics handler panics. Panicking requests are
// counted here; Logger never sees them finish.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, r.Method, "500").Inc()
			logging.Get().ErrorContext(r.Context(), "metrics handler panicked",
				slog.Any("panic", v),
				slog.String("path", r.URL.Path),
				slog.String("stack", string(debug.Stack())),
			)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
