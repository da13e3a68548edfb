package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Tyrowin/gochat-hub/internal/metrics"
	"github.com/Tyrowin/gochat-hub/internal/session"
)

// ErrShuttingDown is returned for connections that arrive during Shutdown.
var ErrShuttingDown = errors.New("server: shutting down")

// Server owns the shared chat state and every live session.
type Server struct {
	cfg      Config
	log      logrus.FieldLogger
	shared   *session.Shared
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	origins  *OriginPolicy
	upgrader websocket.Upgrader
	http     *http.Server

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
}

// New builds a server from cfg. Collectors are registered on reg, which may
// be nil to disable the /metrics route.
func New(cfg Config, log logrus.FieldLogger, reg *prometheus.Registry) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	shared, err := session.NewShared(cfg.HubCapacity)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	} else {
		m = metrics.New(prometheus.NewRegistry())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		log:      log,
		shared:   shared,
		metrics:  m,
		registry: reg,
		origins:  NewOriginPolicy(cfg.AllowedOrigins, log),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.CheckOrigin,
	}
	s.http = CreateServer(cfg.Addr(), s.SetupRoutes())
	return s, nil
}

// CreateServer creates an HTTP server with production timeouts. Upgraded
// connections manage their own deadlines.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Shared exposes the process-wide chat state.
func (s *Server) Shared() *session.Shared { return s.shared }

// ListenAndServe binds the configured address and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.WithField("addr", ln.Addr().String()).Info("Server listening")
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, ends every session so their names
// are released and leave notices published, then closes the hub. It returns
// ctx.Err() if sessions are still running when ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	httpErr := s.http.Shutdown(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for sessions: %w", ctx.Err())
	}
	s.shared.Hub.Close()

	if httpErr != nil && !errors.Is(httpErr, context.DeadlineExceeded) {
		err = errors.Join(err, fmt.Errorf("http shutdown: %w", httpErr))
	}
	if err == nil {
		s.log.Info("Server shutdown completed")
	}
	return err
}

// track registers a session unless the server is closing.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}
