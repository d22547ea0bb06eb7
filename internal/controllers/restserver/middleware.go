package restserver

import (
	"net/http"
	"time"

	"github.com/chrissnell/daylight/internal/constants"
)

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// loggingMiddleware logs one line per request
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		w.Header().Set("Server", constants.ServerHeader)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, req)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		logf := c.logger.Debugw
		if rec.status >= http.StatusInternalServerError {
			logf = c.logger.Warnw
		}
		logf("http request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"remote", req.RemoteAddr,
			"elapsed", time.Since(start))
	})
}
