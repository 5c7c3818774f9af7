package rpc

import (
	"net"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/cuemby/graphengine/internal/engine"
)

// Server accepts connections on a Unix-domain socket, one goroutine
// per session. Every session shares the one *engine.Engine, which
// serializes its own writes internally — the server does no locking
// of its own beyond accept/shutdown bookkeeping.
//
// Grounded on scm/network.go's HTTPServe: listen, accept loop, one
// goroutine per connection, graceful close on shutdown.
type Server struct {
	socketPath string
	engine     *engine.Engine
	log        *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

func NewServer(socketPath string, eng *engine.Engine, log *zap.Logger) *Server {
	return &Server{socketPath: socketPath, engine: eng, log: log}
}

// Serve listens and accepts until the listener is closed by Shutdown.
func (s *Server) Serve() error {
	os.Remove(s.socketPath) // a stale socket from an unclean shutdown must not block bind
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			newSession(conn, s.engine, s.log).serve()
		}()
	}
}

// Shutdown closes the listener (Serve then returns once every session
// currently in flight has finished) and removes the socket file.
func (s *Server) Shutdown() {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
	os.Remove(s.socketPath)
}
