package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/scribe/logger"
)

// quietPaths are polled by supervisors and never logged.
var quietPaths = map[string]bool{"/health": true, "/info": true, "/metrics": true}

// RequestLogger logs each finished request. Event streams are logged with
// their total duration and byte count once the client disconnects.
func RequestLogger(log *logger.Logger) Middleware {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      sw.status,
				"bytes":       sw.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if id := r.Header.Get(RequestIDHeader); id != "" {
				fields[logger.FieldRequestID] = id
			}
			if strings.HasPrefix(sw.Header().Get("Content-Type"), "text/event-stream") {
				fields["stream"] = true
			}

			switch {
			case sw.status >= 500:
				log.Error("Request completed", fields)
			case sw.status >= 400:
				log.Warn("Request completed", fields)
			default:
				log.Debug("Request completed", fields)
			}
		})
	}
}
