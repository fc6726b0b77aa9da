// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffutop/modbus-rtu-slave/internal/config"
)

func TestMemory(t *testing.T) {
	m := NewMemory(6)
	assert.Equal(t, 6, m.NumCoils())
	assert.False(t, m.ReadCoil(3))

	m.WriteCoil(3, true)
	assert.True(t, m.ReadCoil(3))
	m.WriteCoil(3, false)
	assert.False(t, m.ReadCoil(3))
}

func TestPortImage_DrivesMappedPins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port.bin")
	p, err := NewPortImage(path, 14, []int{13, 12, 11, 10, 9, 8}, 6)
	require.NoError(t, err)
	require.NoError(t, p.Open())
	defer p.Close()

	p.WriteCoil(0, true)
	p.WriteCoil(5, true)
	assert.True(t, p.ReadCoil(0))
	assert.False(t, p.ReadCoil(1))
	assert.True(t, p.ReadCoil(5))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, 14)
	assert.Equal(t, byte(pinHigh), raw[13], "coil 0 drives pin 13")
	assert.Equal(t, byte(pinHigh), raw[8], "coil 5 drives pin 8")
	assert.Equal(t, byte(pinLow), raw[12])
}

func TestPortImage_OpenClearsOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 1, 1, 1}, 0644))

	p, err := NewPortImage(path, 8, []int{0, 1, 2}, 3)
	require.NoError(t, err)
	require.NoError(t, p.Open())
	defer p.Close()

	for i := 0; i < p.NumCoils(); i++ {
		assert.False(t, p.ReadCoil(i), "coil %d", i)
	}
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 8, fi.Size())
}

func TestNewPortImage_RejectsBadPins(t *testing.T) {
	tests := []struct {
		name string
		pins []int
	}{
		{"TooFew", []int{1, 2}},
		{"OutsidePort", []int{1, 2, 14}},
		{"Negative", []int{-1, 2, 3}},
		{"Shared", []int{4, 5, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPortImage("unused", 14, tt.pins, 3)
			assert.Error(t, err)
		})
	}
}

func TestOpen_FallsBackToMemory(t *testing.T) {
	bank := Open(config.CoilConfig{
		Backend:  config.BackendMmap,
		Count:    6,
		Pins:     []int{13, 12, 11, 10, 9, 8},
		Path:     filepath.Join(t.TempDir(), "missing", "port.bin"),
		PortSize: 14,
	})
	defer bank.Close()

	assert.IsType(t, &Memory{}, bank)
	assert.Equal(t, 6, bank.NumCoils())
}

func TestOpen_Mmap(t *testing.T) {
	bank := Open(config.CoilConfig{
		Backend:  config.BackendMmap,
		Count:    2,
		Pins:     []int{3, 4},
		Path:     filepath.Join(t.TempDir(), "port.bin"),
		PortSize: 8,
	})
	defer bank.Close()

	assert.IsType(t, &PortImage{}, bank)
}
