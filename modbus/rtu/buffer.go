// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"

	"github.com/ffutop/modbus-rtu-slave/modbus/crc"
)

var ErrBufferFull = errors.New("rtu: frame exceeds maximum size")

// Buffer is a fixed-capacity frame under construction. Writes that would run
// past MaxSize fail with ErrBufferFull and leave the buffer unchanged.
type Buffer struct {
	data [MaxSize]byte
	n    int
}

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return b.n }

// Bytes returns the assembled frame. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

// Reset empties the buffer.
func (b *Buffer) Reset() { b.n = 0 }

// WriteByte appends c.
func (b *Buffer) WriteByte(c byte) error {
	if b.n >= MaxSize {
		return ErrBufferFull
	}
	b.data[b.n] = c
	b.n++
	return nil
}

// Write appends all of p or nothing.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.n+len(p) > MaxSize {
		return 0, ErrBufferFull
	}
	b.n += copy(b.data[b.n:], p)
	return len(p), nil
}

// WriteUint16 appends v big-endian.
func (b *Buffer) WriteUint16(v uint16) error {
	_, err := b.Write([]byte{byte(v >> 8), byte(v)})
	return err
}

// AppendCRC frames the payload: it appends the CRC-16 of everything written so
// far, low byte first, and returns the total frame length.
func (b *Buffer) AppendCRC() (int, error) {
	sum := crc.Calculate(b.Bytes())
	if _, err := b.Write([]byte{byte(sum), byte(sum >> 8)}); err != nil {
		return 0, err
	}
	return b.n, nil
}
