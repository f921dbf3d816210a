package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// LogrusLog logs every request with its status, size and duration.
func LogrusLog() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			entry := logrus.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"size":     ww.BytesWritten(),
				"duration": time.Since(start),
			})
			if ww.Status() >= http.StatusInternalServerError {
				entry.Error("Request failed")
				return
			}
			entry.Debug("Request served")
		})
	}
}
