// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package backend

import (
	"log/slog"

	"github.com/ffutop/modbus-rtu-slave/internal/config"
	"github.com/ffutop/modbus-rtu-slave/internal/slave/model"
)

// Bank is a coil bank that holds resources until closed.
type Bank interface {
	model.CoilBank
	Close() error
}

// Open creates the coil bank selected by cfg. A port image that cannot be
// mapped falls back to memory so the slave stays reachable.
func Open(cfg config.CoilConfig) Bank {
	switch cfg.Backend {
	case config.BackendMmap:
		slog.Info("Initializing coils on mmap port image", "path", cfg.Path, "pins", cfg.Pins)
		p, err := NewPortImage(cfg.Path, cfg.PortSize, cfg.Pins, cfg.Count)
		if err == nil {
			err = p.Open()
		}
		if err == nil {
			return p
		}
		slog.Error("Failed to open port image", "path", cfg.Path, "err", err)
		slog.Warn("Falling back to memory coils")
	default:
		slog.Info("Initializing coils in memory", "count", cfg.Count)
	}
	return NewMemory(cfg.Count)
}
