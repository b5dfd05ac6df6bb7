package gameserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/udisondev/crosszero/internal/config"
	"github.com/udisondev/crosszero/internal/model"
	"github.com/udisondev/crosszero/internal/protocol"
)

// Server accepts client connections and runs one service loop per
// connection until its context is cancelled, then drains.
type Server struct {
	cfg     config.Server
	clients *ClientRegistry
	players *model.PlayerRegistry
	handler *Handler

	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a server with fresh registries.
func NewServer(cfg config.Server) *Server {
	clients := NewClientRegistry(cfg.MaxClients)
	players := model.NewPlayerRegistry()
	return &Server{
		cfg:     cfg,
		clients: clients,
		players: players,
		handler: NewHandler(clients, players),
	}
}

// Clients returns the client registry.
func (s *Server) Clients() *ClientRegistry {
	return s.clients
}

// Players returns the player registry.
func (s *Server) Players() *model.PlayerRegistry {
	return s.players
}

// Addr returns the listen address, nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or the listener
// closes, then performs the graceful drain: shut down the read side of
// every active connection, wait for the registry to empty, and return once
// every service goroutine has exited. Workers in the middle of an operation
// complete it and see end-of-stream on their next read.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("server started", "address", ln.Addr())

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Error("failed to accept new connection", "err", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(conn)
		}()
	}

	slog.Info("draining client sessions")
	s.clients.ShutdownAll()
	s.clients.WaitForEmpty()
	wg.Wait()
	slog.Info("all client sessions terminated")

	return nil
}

// serveConn is the per-connection service loop: register, read and dispatch
// packets until the stream ends or the protocol is violated, then log out
// and unregister.
func (s *Server) serveConn(conn net.Conn) {
	client, err := s.clients.Register(conn)
	if err != nil {
		slog.Warn("rejecting connection", "remote", conn.RemoteAddr(), "err", err)
		conn.Close()
		return
	}

	defer func() {
		if client.Player() != nil {
			client.Logout()
		}
		s.clients.Unregister(client)
	}()

	for {
		hdr, payload, err := protocol.ReadPacket(conn)
		if err != nil {
			slog.Debug("connection closed", "remote", client.IP(), "err", err)
			return
		}
		slog.Debug("packet received",
			"type", protocol.TypeName(hdr.Type),
			"id", hdr.ID,
			"role", hdr.Role,
			"size", hdr.Size,
			"remote", client.IP())

		if !s.handler.HandlePacket(client, hdr, payload) {
			return
		}
	}
}
