package middleware

import (
	"net/http"
	"sync/atomic"
)

// Metrics holds request counters for the /metrics endpoint.
type Metrics struct {
	Requests     atomic.Int64
	ClientErrors atomic.Int64
	ServerErrors atomic.Int64
}

// Middleware counts requests and 4xx/5xx responses.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Requests.Add(1)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		switch {
		case rec.status >= 500:
			m.ServerErrors.Add(1)
		case rec.status >= 400:
			m.ClientErrors.Add(1)
		}
	})
}
