// Package web serves run metrics and progress over HTTP while a linkage run
// is in flight.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mdm-linkage/internal/metrics"
)

// Server represents the web server
type Server struct {
	config     Config
	metrics    *metrics.Metrics
	logger     *zap.Logger
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance
func NewServer(config Config, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	config = config.withDefaults()

	server := &Server{
		config:  config,
		metrics: m,
		logger:  logger,
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         config.Listen,
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return server
}

// Router exposes the routes, mainly for tests
func (s *Server) Router() http.Handler { return s.router }

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.status).Methods(http.MethodGet)

	s.router.Use(s.requestLogging)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully. The listener is bound before Start returns
// the address, so callers can log it.
func (s *Server) Start(ctx context.Context) (string, <-chan error, error) {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return "", nil, err
	}

	done := make(chan error, 1)
	go func() {
		s.logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- err
			return
		}
		done <- nil
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("metrics server shutdown error", zap.Error(err))
		}
	}()

	return ln.Addr().String(), done, nil
}
