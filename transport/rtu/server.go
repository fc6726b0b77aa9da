// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/grid-x/serial"

	"github.com/ffutop/modbus-rtu-slave/internal/config"
	rtupacket "github.com/ffutop/modbus-rtu-slave/modbus/rtu"
	"github.com/ffutop/modbus-rtu-slave/transport"
)

// Server serves a Modbus master on a serial line. It acts as a slave on the
// bus, answering only through the handler.
type Server struct {
	Config config.SerialConfig

	port *serialPort
}

// NewServer creates a new RTU Server.
func NewServer(cfg config.SerialConfig) *Server {
	return &Server{
		Config: cfg,
		port:   newSerialPort(cfg),
	}
}

// Start opens the serial port and serves it until ctx is done.
func (s *Server) Start(ctx context.Context, handler transport.FrameHandler) error {
	port, err := s.port.Connect(ctx)
	if err != nil {
		return err
	}
	defer s.port.Close()
	slog.Info("RTU Server listening", "device", s.Config.Device, "baudRate", s.Config.BaudRate, "rs485", s.Config.RS485)

	// A blocked Read only returns once the port is closed.
	go func() {
		<-ctx.Done()
		s.port.Close()
	}()

	return serve(ctx, port, s.frameGap(), handler)
}

func (s *Server) frameGap() time.Duration {
	if s.Config.FrameGap > 0 {
		return s.Config.FrameGap
	}
	return rtupacket.FrameDelay(s.Config.BaudRate)
}

// serve reads frames from port until it fails and writes back every response
// the handler produces. Requests are handled one at a time in arrival order.
func serve(ctx context.Context, port io.ReadWriter, gap time.Duration, handler transport.FrameHandler) error {
	fr := rtupacket.NewFrameReader(port, gap)
	fr.Transient = func(err error) bool { return errors.Is(err, serial.ErrTimeout) }
	defer fr.Close()

	for {
		frame, err := fr.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, rtupacket.ErrFrameOverflow) {
				slog.Warn("Discarded oversized frame")
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if len(frame) == 0 {
			continue
		}

		resp := handler(ctx, frame)
		if resp == nil {
			continue
		}
		if _, err := port.Write(resp); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		slog.Debug("RTU response sent", "frame", hex.EncodeToString(resp))
	}
}

// Close releases the serial port.
func (s *Server) Close() error {
	return s.port.Close()
}
