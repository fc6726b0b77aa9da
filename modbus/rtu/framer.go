// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ffutop/modbus-rtu-slave/modbus"
)

var ErrFrameOverflow = errors.New("rtu: frame longer than maximum size discarded")

// CalculateRequestLength returns the expected total length of a request RTU ADU
// with the given function code.
func CalculateRequestLength(funcCode byte) (int, error) {
	switch funcCode {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister:
		// [SlaveID, Func, Addr(2), Val(2), CRC(2)]
		return MinRequestSize, nil
	default:
		return 0, fmt.Errorf("unsupported function code: 0x%02X", funcCode)
	}
}

// FrameDelay returns the silent interval of 3.5 characters that separates frames.
func FrameDelay(baudRate int) time.Duration {
	if baudRate <= 0 || baudRate > 19200 {
		return 1750 * time.Microsecond
	}
	return time.Duration(35000000/baudRate) * time.Microsecond
}

// FrameReader assembles request frames from a byte stream. A frame ends when it
// reaches the request length of a supported function code, or when the stream
// stays silent for Gap. Bytes following a complete frame start the next one.
type FrameReader struct {
	Gap time.Duration
	// Transient reports read errors after which reading continues, such as
	// serial read timeouts. Nil treats every error as final.
	Transient func(error) bool

	r       io.Reader
	once    sync.Once
	chunks  chan []byte
	errc    chan error
	done    chan struct{}
	pending []byte
	err     error
}

// NewFrameReader returns a FrameReader on r. Reading starts on the first call to Next.
func NewFrameReader(r io.Reader, gap time.Duration) *FrameReader {
	return &FrameReader{
		Gap:    gap,
		r:      r,
		chunks: make(chan []byte),
		errc:   make(chan error),
		done:   make(chan struct{}),
	}
}

// Next blocks until a frame is complete, the reader fails or ctx is done.
// The returned slice is owned by the caller.
func (fr *FrameReader) Next(ctx context.Context) ([]byte, error) {
	fr.once.Do(func() { go fr.pump() })

	var (
		frame    Buffer
		overflow bool
		silence  <-chan time.Time
	)
	if len(fr.pending) > 0 {
		chunk := fr.pending
		fr.pending = nil
		if fr.feed(&frame, &overflow, chunk) {
			return clone(frame.Bytes()), nil
		}
		silence = time.After(fr.Gap)
	}
	if fr.err != nil && silence == nil {
		return nil, fr.err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk := <-fr.chunks:
			if fr.feed(&frame, &overflow, chunk) {
				return clone(frame.Bytes()), nil
			}
			silence = time.After(fr.Gap)
		case <-silence:
			if overflow {
				return nil, ErrFrameOverflow
			}
			return clone(frame.Bytes()), nil
		case err := <-fr.errc:
			fr.err = err
			if frame.Len() > 0 && !overflow {
				return clone(frame.Bytes()), nil
			}
			return nil, err
		}
	}
}

// Close stops the background reader once its pending Read returns. The
// underlying reader is not closed.
func (fr *FrameReader) Close() {
	select {
	case <-fr.done:
	default:
		close(fr.done)
	}
}

// feed appends chunk to frame and reports whether the frame is complete.
func (fr *FrameReader) feed(frame *Buffer, overflow *bool, chunk []byte) bool {
	for i, b := range chunk {
		if *overflow {
			continue
		}
		if err := frame.WriteByte(b); err != nil {
			*overflow = true
			continue
		}
		n := frame.Len()
		if n < 2 {
			continue
		}
		if want, err := CalculateRequestLength(frame.Bytes()[1]); err == nil && n == want {
			if rest := chunk[i+1:]; len(rest) > 0 {
				fr.pending = clone(rest)
			}
			return true
		}
	}
	return false
}

func (fr *FrameReader) pump() {
	for {
		buf := make([]byte, MaxSize)
		n, err := fr.r.Read(buf)
		if n > 0 {
			select {
			case fr.chunks <- buf[:n]:
			case <-fr.done:
				return
			}
		}
		if err != nil {
			if fr.Transient != nil && fr.Transient(err) {
				continue
			}
			select {
			case fr.errc <- err:
			case <-fr.done:
			}
			return
		}
	}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
