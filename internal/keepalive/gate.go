package keepalive

import (
	"net/http"

	"go.uber.org/zap"
)

// Gate enforces the budget before any other handler runs. It must wrap the
// whole chain so a rejected request is never routed or answered.
func (m *Manager) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn := FromContext(r.Context())
		if conn == nil || m.OnRequest(conn) == Admit {
			next.ServeHTTP(w, r)
			return
		}

		m.observer.ConnectionRejected()
		m.logger.Info("request budget exhausted, closing connection",
			zap.String("conn", conn.ID),
			zap.String("remote", conn.Remote),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int64("max_requests", m.maxRequests))

		netConn, _, err := http.NewResponseController(w).Hijack()
		if err != nil {
			// net/http closes the connection without a response for this value.
			panic(http.ErrAbortHandler)
		}
		_ = netConn.Close()
	})
}
