package middleware

import (
	"net/http"
	"time"

	"github.com/salonpos/access-service/internal/util/logger"
)

// RequestLogger logs every request with status and latency.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &wrapWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logger.Info("%s %s status=%d from=%s dur=%dms",
			r.Method, r.URL.Path, ww.status, r.RemoteAddr, time.Since(start).Milliseconds())
	})
}

type wrapWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrapWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
