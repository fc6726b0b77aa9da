// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package backend

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"
)

// PortImage drives coils through a memory-mapped output port file that a board
// simulator or HMI maps to observe the pins. Reads go to the mapped bytes, so a
// pin held by the other side is what the slave reports.
//
// The image is cleared when opened: outputs start low after every reset.
type PortImage struct {
	path     string
	portSize int
	pins     pinMap

	file *os.File
	data mmap.MMap
}

// NewPortImage creates a PortImage; coil i drives pins[i].
func NewPortImage(path string, portSize int, pins []int, count int) (*PortImage, error) {
	m, err := newPinMap(pins, count, portSize)
	if err != nil {
		return nil, err
	}
	return &PortImage{
		path:     path,
		portSize: portSize,
		pins:     m,
	}, nil
}

// Open maps the port file, creating and resizing it as needed, and drives all pins low.
func (p *PortImage) Open() error {
	f, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open port image: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if fi.Size() != int64(p.portSize) {
		if err := f.Truncate(int64(p.portSize)); err != nil {
			f.Close()
			return fmt.Errorf("failed to resize port image: %w", err)
		}
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("mmap failed: %w", err)
	}
	for i := range data {
		data[i] = pinLow
	}

	p.file = f
	p.data = data
	return p.flush()
}

func (p *PortImage) NumCoils() int { return len(p.pins) }

func (p *PortImage) ReadCoil(index int) bool {
	return p.data[p.pins[index]] != pinLow
}

func (p *PortImage) WriteCoil(index int, on bool) {
	level := byte(pinLow)
	if on {
		level = pinHigh
	}
	p.data[p.pins[index]] = level
	if err := p.flush(); err != nil {
		slog.Error("Failed to flush port image", "pin", p.pins[index], "err", err)
	}
}

func (p *PortImage) flush() error {
	if p.data == nil {
		return fmt.Errorf("port image is not mapped")
	}
	return p.data.Flush()
}

// Close unmaps and closes the file.
func (p *PortImage) Close() error {
	var err error
	if p.data != nil {
		if e := p.data.Unmap(); e != nil {
			err = e
		}
		p.data = nil
	}
	if p.file != nil {
		if e := p.file.Close(); e != nil {
			err = e
		}
		p.file = nil
	}
	return err
}
