package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Version is stamped at build time with -ldflags "-X ...api.Version=...".
var Version = "0.1.0"

func (s *Server) setupAdminRoutes() {
	s.adminRouter.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.adminRouter.HandleFunc("/ready", s.handleReady).Methods("GET")
	s.adminRouter.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	s.adminRouter.HandleFunc("/version", s.handleVersion).Methods("GET")
	s.adminRouter.HandleFunc("/stats", s.handleStats).Methods("GET")
}

// AdminHandler returns the operational endpoints router.
func (s *Server) AdminHandler() http.Handler {
	return s.adminRouter
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"uptime":  time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	driver := s.store.Driver().Name()
	if err := s.store.HealthCheck(r.Context()); err != nil {
		s.logger.Warn("readiness check failed",
			zap.String("driver", driver),
			zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"ready":  false,
			"driver": driver,
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ready":  true,
		"driver": driver,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": Version,
		"go":      runtime.Version(),
	})
}

type statsResponse struct {
	Blobs           int    `json:"blobs"`
	Bytes           int64  `json:"bytes"`
	Waiters         int64  `json:"waiters"`
	OpenConnections int    `json:"open_connections"`
	Driver          string `json:"driver"`
	PollTimeout     string `json:"poll_timeout"`
	MaxRequests     int    `json:"max_requests_per_connection"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to collect stats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Blobs:           stats.Blobs,
		Bytes:           stats.Bytes,
		Waiters:         stats.Waiters,
		OpenConnections: s.conns.OpenConnections(),
		Driver:          s.store.Driver().Name(),
		PollTimeout:     s.config.Server.PollTimeout.String(),
		MaxRequests:     s.conns.MaxRequests(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
