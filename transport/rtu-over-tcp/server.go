// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtuovertcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/ffutop/modbus-rtu-slave/internal/config"
	rtupacket "github.com/ffutop/modbus-rtu-slave/modbus/rtu"
	"github.com/ffutop/modbus-rtu-slave/transport"
)

// Server implements a Modbus RTU over TCP Server.
// It listens on a TCP port and handles incoming connections as Modbus RTU streams.
type Server struct {
	Config config.TcpConfig

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new RTU over TCP Server.
func NewServer(cfg config.TcpConfig) *Server {
	return &Server{
		Config: cfg,
	}
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start starts the TCP server.
func (s *Server) Start(ctx context.Context, handler transport.FrameHandler) error {
	listener, err := net.Listen("tcp", s.Config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Config.Address, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	slog.Info("RTU over TCP server listening", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("Failed to accept connection", "err", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn, handler)
		}()
	}
}

// Close closes the server listener.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, handler transport.FrameHandler) {
	defer conn.Close()
	slog.Info("New RTU over TCP client connected", "addr", conn.RemoteAddr())

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	fr := rtupacket.NewFrameReader(conn, s.Config.FrameGap)
	defer fr.Close()

	for {
		frame, err := fr.Next(connCtx)
		if err != nil {
			if errors.Is(err, rtupacket.ErrFrameOverflow) {
				slog.Warn("Discarded oversized frame", "addr", conn.RemoteAddr())
				continue
			}
			if connCtx.Err() == nil && !errors.Is(err, io.EOF) {
				slog.Error("Connection read error", "addr", conn.RemoteAddr(), "err", err)
			}
			slog.Info("RTU over TCP client disconnected", "addr", conn.RemoteAddr())
			return
		}

		resp := handler(connCtx, frame)
		if resp == nil {
			continue
		}
		if _, err := conn.Write(resp); err != nil {
			slog.Error("Failed to write response", "addr", conn.RemoteAddr(), "err", err)
			return
		}
	}
}
