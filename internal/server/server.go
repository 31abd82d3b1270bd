package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/udisondev/jeux/internal/config"
	"github.com/udisondev/jeux/internal/player"
	"github.com/udisondev/jeux/internal/protocol"
)

// Server accepts client connections and runs one session loop per
// connection until the context is cancelled, then shuts down gracefully:
// read-shutdown of every client socket, wait for every session to exit.
type Server struct {
	cfg     config.Config
	players *player.Registry
	clients *Registry
	handler *Handler

	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a server with fresh registries.
func NewServer(cfg config.Config) *Server {
	players := player.NewRegistry()
	clients := NewRegistry()
	return &Server{
		cfg:     cfg,
		players: players,
		clients: clients,
		handler: NewHandler(players, clients),
	}
}

// Clients returns the client registry (shutdown integration and tests).
func (s *Server) Clients() *Registry { return s.clients }

// Players returns the player registry.
func (s *Server) Players() *player.Registry { return s.players }

// Addr returns the listen address, or nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled, then performs
// the graceful shutdown sequence. Exposed separately so tests can hand in
// their own listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("jeux server started", "address", ln.Addr())

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Error("failed to accept connection", "err", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(conn)
		}()
	}

	slog.Info("shutting down", "clients", s.clients.Count())
	s.clients.ShutdownAll()
	s.clients.WaitForEmpty()
	wg.Wait()
	slog.Info("all sessions terminated")
	return nil
}

// serveConn is the per-connection session loop: register, read and dispatch
// packets until the connection yields EOF or an error, then tear down. Any
// failure inside a handler maps to a NACK and the loop continues; only
// transport failures end the session.
func (s *Server) serveConn(conn net.Conn) {
	c := s.clients.Register(conn)
	slog.Info("new connection", "remote", c.RemoteAddr())

	for {
		hdr, payload, err := protocol.Recv(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("read failed", "remote", c.RemoteAddr(), "err", err)
			}
			break
		}

		if err := s.handler.Handle(c, hdr, payload); err != nil {
			slog.Warn("send failed, dropping session", "remote", c.RemoteAddr(), "err", err)
			break
		}
	}

	if err := c.Logout(); err != nil && !errors.Is(err, ErrNotLoggedIn) {
		slog.Debug("logout on disconnect", "remote", c.RemoteAddr(), "err", err)
	}
	s.clients.Unregister(c)
	slog.Info("connection closed", "remote", c.RemoteAddr())
}
