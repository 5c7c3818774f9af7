// Package debughttp exposes an optional, off-by-default HTTP surface
// for operators: a JSON stats snapshot and a websocket that pushes the
// same snapshot on an interval, for a live dashboard. Grounded on
// dashboard.go (an HTTP handler serving live storage stats)
// generalized from its embedded HTML page to a plain JSON endpoint plus
// a websocket push loop via github.com/gorilla/websocket.
package debughttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cuemby/graphengine/internal/engine"
)

type Server struct {
	addr   string
	engine *engine.Engine
	log    *zap.Logger
	srv    *http.Server
	upgrader websocket.Upgrader
}

func New(addr string, eng *engine.Engine, log *zap.Logger) *Server {
	s := &Server{addr: addr, engine: eng, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/ws", s.handleWS)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Stats())
}

// handleWS pushes a stats snapshot every second until the client
// disconnects. Same-origin checking is left to the upgrader's default
// (deny cross-origin), appropriate for a debug endpoint never meant to
// be reachable outside an operator's own network.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("debughttp: websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteJSON(s.engine.Stats()); err != nil {
			return
		}
	}
}

// Serve blocks until the server is shut down via Close.
func (s *Server) Serve() error {
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
