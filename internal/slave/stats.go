// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"log/slog"
	"sync/atomic"
)

// Counter is a simple atomic counter.
type Counter struct {
	value int64
}

// Add adds delta to the counter.
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Stats counts frame outcomes.
type Stats struct {
	Received         Counter
	Responses        Counter
	Exceptions       Counter
	TransportDropped Counter // short frame, foreign address, bad CRC
	ArgumentDropped  Counter // rejected by a function handler
}

// Collect returns all counters as a map.
func (s *Stats) Collect() map[string]int64 {
	return map[string]int64{
		"received":          s.Received.Value(),
		"responses":         s.Responses.Value(),
		"exceptions":        s.Exceptions.Value(),
		"transport_dropped": s.TransportDropped.Value(),
		"argument_dropped":  s.ArgumentDropped.Value(),
	}
}

// LogValue implements slog.LogValuer.
func (s *Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("received", s.Received.Value()),
		slog.Int64("responses", s.Responses.Value()),
		slog.Int64("exceptions", s.Exceptions.Value()),
		slog.Int64("transport_dropped", s.TransportDropped.Value()),
		slog.Int64("argument_dropped", s.ArgumentDropped.Value()),
	)
}

func (s *Stats) record(o Outcome) {
	s.Received.Add(1)
	switch o.Kind {
	case Respond:
		s.Responses.Add(1)
	case Exception:
		s.Exceptions.Add(1)
	case NoResponse:
		if o.TransportDrop() {
			s.TransportDropped.Add(1)
		} else {
			s.ArgumentDropped.Add(1)
		}
	}
}
