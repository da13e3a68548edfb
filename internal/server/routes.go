package server

import (
	"net/http"

	"github.com/Tyrowin/gochat-hub/internal/metrics"
)

// SetupRoutes returns the mux serving health, chat, test page and metrics.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/connect", s.WebSocketHandler)
	mux.HandleFunc("/test", TestPageHandler)
	if s.registry != nil {
		mux.Handle("/metrics", metrics.Handler(s.registry))
	}
	return mux
}
