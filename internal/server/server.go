// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ffutop/modbus-rtu-slave/internal/slave"
	"github.com/ffutop/modbus-rtu-slave/transport"
)

// Processor turns a request frame into an outcome.
type Processor interface {
	Process(frame []byte) slave.Outcome
}

type queuedRequest struct {
	frame    []byte
	response chan []byte
}

// Server feeds the frames of all its upstreams through a single worker so the
// device image sees one request at a time, in arrival order.
type Server struct {
	Upstreams []transport.Upstream

	processor   Processor
	requestChan chan *queuedRequest
}

// New creates a Server for the given processor and upstreams.
func New(processor Processor, upstreams ...transport.Upstream) *Server {
	return &Server{
		Upstreams:   upstreams,
		processor:   processor,
		requestChan: make(chan *queuedRequest),
	}
}

// Start runs the worker and every upstream until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.worker(ctx)
	}()

	for i, us := range s.Upstreams {
		wg.Add(1)
		go func(ups transport.Upstream, idx int) {
			defer wg.Done()
			slog.Info("Starting upstream", "index", idx)
			if err := ups.Start(ctx, s.Handle); err != nil {
				slog.Error("Upstream stopped with error", "index", idx, "err", err)
			}
		}(us, i)
	}

	<-ctx.Done()

	for _, us := range s.Upstreams {
		us.Close()
	}

	wg.Wait()
	return nil
}

// Handle queues frame for the worker and waits for its response. It is the
// transport.FrameHandler given to every upstream.
func (s *Server) Handle(ctx context.Context, frame []byte) []byte {
	req := &queuedRequest{frame: frame, response: make(chan []byte, 1)}
	select {
	case s.requestChan <- req:
	case <-ctx.Done():
		return nil
	}
	select {
	case resp := <-req.response:
		return resp
	case <-ctx.Done():
		return nil
	}
}

// worker processes queued frames serially.
func (s *Server) worker(ctx context.Context) {
	slog.Debug("Slave worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.requestChan:
			o := s.processor.Process(req.frame)
			if o.Kind == slave.NoResponse {
				req.response <- nil
				continue
			}
			req.response <- o.Frame
		}
	}
}
