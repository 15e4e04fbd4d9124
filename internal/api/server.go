package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/FairForge/pollstore/internal/config"
	"github.com/FairForge/pollstore/internal/engine"
	"github.com/FairForge/pollstore/internal/keepalive"
	"github.com/FairForge/pollstore/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Server struct {
	config  *config.Config
	logger  *zap.Logger
	store   *engine.Store
	conns   *keepalive.Manager
	metrics *metrics.Metrics

	router      chi.Router
	adminRouter *mux.Router
	httpServer  *http.Server
	adminServer *http.Server

	startTime time.Time
}

func NewServer(cfg *config.Config, logger *zap.Logger, store *engine.Store, m *metrics.Metrics) *Server {
	s := &Server{
		config:      cfg,
		logger:      logger,
		store:       store,
		metrics:     m,
		conns:       keepalive.NewManager(cfg.Server.MaxRequestsPerConnection, logger, keepalive.WithObserver(m)),
		router:      chi.NewRouter(),
		adminRouter: mux.NewRouter(),
		startTime:   time.Now(),
	}
	m.WatchWaiting(store.Waiting)

	s.setupRoutes()
	s.setupAdminRoutes()

	s.httpServer = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
	}
	s.ConfigureServer(s.httpServer)

	if cfg.Server.AdminPort > 0 {
		s.adminServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.AdminPort),
			Handler:           s.adminRouter,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
		}
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Put("/*", s.handlePut)
	s.router.Post("/*", s.handlePut)
	s.router.Get("/*", s.handleGet)
	s.router.Head("/*", s.handleHead)

	s.router.MethodNotAllowed(s.handleNotImplemented)
	s.router.NotFound(s.handleNotImplemented)
}

// Handler returns the data-plane handler. The connection budget gate sits
// outside every other middleware.
func (s *Server) Handler() http.Handler {
	return s.conns.Gate(s.router)
}

// ConfigureServer installs the data-plane handler, timeouts and connection
// hooks on hs.
func (s *Server) ConfigureServer(hs *http.Server) {
	hs.Handler = s.Handler()
	hs.ReadHeaderTimeout = s.config.Server.ReadHeaderTimeout
	hs.IdleTimeout = s.config.Server.IdleTimeout
	hs.WriteTimeout = s.config.Server.WriteTimeout
	hs.ErrorLog = zap.NewStdLog(s.logger.Named("http"))
	s.conns.Install(hs)
}

// Connections exposes the connection manager.
func (s *Server) Connections() *keepalive.Manager {
	return s.conns
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve runs the data plane on ln and, when configured, the admin surface on
// its own port. It returns when either stops.
func (s *Server) Serve(ln net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("Starting server",
			zap.String("addr", ln.Addr().String()),
			zap.Duration("poll_timeout", s.config.Server.PollTimeout),
			zap.Int("max_requests_per_connection", s.config.Server.MaxRequestsPerConnection))
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if s.adminServer != nil {
		go func() {
			s.logger.Info("Starting admin server", zap.String("addr", s.adminServer.Addr))
			if err := s.adminServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin server: %w", err)
				return
			}
			errCh <- nil
		}()
	}

	return <-errCh
}

func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.adminServer != nil {
		errs = append(errs, s.adminServer.Shutdown(ctx))
	}
	errs = append(errs, s.httpServer.Shutdown(ctx))
	return errors.Join(errs...)
}
