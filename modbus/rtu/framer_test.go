// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffutop/modbus-rtu-slave/modbus/crc"
)

func TestCalculateRequestLength(t *testing.T) {
	tests := []struct {
		name     string
		funcCode byte
		want     int
		wantErr  bool
	}{
		{"ReadCoils", 0x01, 8, false},
		{"ReadHoldingRegisters", 0x03, 8, false},
		{"WriteSingleCoil", 0x05, 8, false},
		{"WriteSingleRegister", 0x06, 8, false},
		{"WriteMultipleRegisters", 0x10, 0, true},
		{"UnknownFunction", 0x99, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateRequestLength(tt.funcCode)
			if (err != nil) != tt.wantErr {
				t.Errorf("CalculateRequestLength() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("CalculateRequestLength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameDelay(t *testing.T) {
	assert.Equal(t, 3645*time.Microsecond, FrameDelay(9600))
	assert.Equal(t, 1822*time.Microsecond, FrameDelay(19200))
	assert.Equal(t, 1750*time.Microsecond, FrameDelay(115200))
	assert.Equal(t, 1750*time.Microsecond, FrameDelay(0))
}

func frameOf(payload ...byte) []byte {
	sum := crc.Calculate(payload)
	return append(append([]byte{}, payload...), byte(sum), byte(sum>>8))
}

func TestFrameReader_SplitsBackToBackFrames(t *testing.T) {
	first := frameOf(0x01, 0x03, 0x00, 0x00, 0x00, 0x0A)
	second := frameOf(0x01, 0x05, 0x00, 0x02, 0xFF, 0x00)
	stream := append(append([]byte{}, first...), second...)

	fr := NewFrameReader(bytes.NewReader(stream), 10*time.Millisecond)
	defer fr.Close()
	ctx := context.Background()

	got, err := fr.Next(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("first frame mismatch (-want +got):\n%s", diff)
	}

	got, err = fr.Next(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("second frame mismatch (-want +got):\n%s", diff)
	}

	_, err = fr.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameReader_UnknownFunctionEndsOnSilence(t *testing.T) {
	req := frameOf(0x01, 0x99, 0x00, 0x00, 0x00, 0x00)
	pr, pw := io.Pipe()
	defer pw.Close()

	fr := NewFrameReader(pr, 20*time.Millisecond)
	defer fr.Close()

	go func() {
		// Split the frame across writes as a UART would deliver it.
		pw.Write(req[:3])
		pw.Write(req[3:])
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := fr.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestFrameReader_DiscardsOverflow(t *testing.T) {
	noise := bytes.Repeat([]byte{0x01, 0x99}, MaxSize)
	pr, pw := io.Pipe()
	defer pw.Close()

	fr := NewFrameReader(pr, 5*time.Millisecond)
	defer fr.Close()

	go pw.Write(noise)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := fr.Next(ctx)
	assert.ErrorIs(t, err, ErrFrameOverflow)
}

func TestFrameReader_TransientErrors(t *testing.T) {
	errTimeout := errors.New("serial: timeout")
	req := frameOf(0x01, 0x06, 0x00, 0x01, 0x12, 0x34)
	r := &scriptedReader{steps: []step{
		{err: errTimeout},
		{data: req[:4]},
		{err: errTimeout},
		{data: req[4:]},
	}}

	fr := NewFrameReader(r, time.Second)
	fr.Transient = func(err error) bool { return errors.Is(err, errTimeout) }
	defer fr.Close()

	got, err := fr.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestFrameReader_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	fr := NewFrameReader(pr, time.Millisecond)
	defer fr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fr.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type step struct {
	data []byte
	err  error
}

type scriptedReader struct {
	steps []step
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.steps) == 0 {
		return 0, io.EOF
	}
	s := r.steps[0]
	r.steps = r.steps[1:]
	return copy(p, s.data), s.err
}
