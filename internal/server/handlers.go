package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Tyrowin/gochat-hub/internal/session"
)

// WebSocketHandler upgrades the request and runs a chat session on it until
// the session ends. The first text frame the client sends is its name.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Chat endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}
	if !s.track() {
		http.Error(w, ErrShuttingDown.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.sessions.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).WithField("remote", r.RemoteAddr).Warn("WebSocket upgrade failed")
		return
	}

	ws := newWSConn(conn, r.RemoteAddr, s.cfg, s.log)
	defer func() {
		if err := ws.Close(); err != nil {
			s.log.WithError(err).Debug("Error closing connection")
		}
	}()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go ws.keepAlive(ctx, s.cfg.PingPeriod())

	sess := session.New(ws, s.shared, session.Options{
		RateBurst:  s.cfg.RateLimit.Burst,
		RateRefill: s.cfg.RateLimit.RefillInterval,
		Metrics:    s.metrics,
		Log:        s.log,
	})
	if err := sess.Run(ctx); err != nil {
		s.log.WithError(err).WithField("session_id", sess.ID()).Info("Session ended with error")
	}
}

// HealthHandler reports that the server is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "gochat-hub is running!")
}

// TestPageHandler serves a minimal browser client for manual testing.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, testPageHTML)
}
