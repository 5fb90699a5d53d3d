package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"birdwatch/internal/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// RequestLogger logs every request and turns a handler panic into a 500.
func RequestLogger(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if err := recover(); err != nil {
				log.Error("Panic serving %s %s: %v", r.Method, r.URL.Path, err)
				http.Error(rec, "Internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(rec, r)

		if rec.status >= http.StatusBadRequest {
			log.Warning("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
		} else {
			log.Info("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
		}
	})
}
