// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrAddressOutOfRange = errors.New("address range out of bounds")
	ErrWriteVerify       = errors.New("coil read-back does not match written value")
)

// CoilBank is the digital output hardware behind the coils.
type CoilBank interface {
	NumCoils() int
	ReadCoil(index int) bool
	WriteCoil(index int, on bool)
}

// DeviceImage is the addressable state of the slave: coils backed by a CoilBank
// and holding registers kept in memory. Indices are 0-based.
type DeviceImage struct {
	mu sync.RWMutex

	coils     CoilBank
	registers []uint16
}

// NewDeviceImage creates an image over coils with a copy of registers as the
// initial holding register values.
func NewDeviceImage(coils CoilBank, registers []uint16) *DeviceImage {
	return &DeviceImage{
		coils:     coils,
		registers: append([]uint16(nil), registers...),
	}
}

// DefaultRegisters returns n registers initialised to 100, 200, 300, ...
func DefaultRegisters(n int) []uint16 {
	regs := make([]uint16, n)
	for i := range regs {
		regs[i] = uint16((i + 1) * 100)
	}
	return regs
}

func (m *DeviceImage) NumCoils() int { return m.coils.NumCoils() }

func (m *DeviceImage) NumRegisters() int { return len(m.registers) }

// ReadCoils reads quantity coils starting at index and returns them packed
// LSB-first, eight coils per byte. Every coil is read from the bank.
func (m *DeviceImage) ReadCoils(index, quantity int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(index, quantity, m.coils.NumCoils()); err != nil {
		return nil, err
	}

	result := make([]byte, (quantity+7)/8)
	for i := 0; i < quantity; i++ {
		if m.coils.ReadCoil(index + i) {
			result[i/8] |= 1 << uint(i%8)
		}
	}
	return result, nil
}

// WriteCoil drives a single coil and reads it back.
func (m *DeviceImage) WriteCoil(index int, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(index, 1, m.coils.NumCoils()); err != nil {
		return err
	}

	m.coils.WriteCoil(index, on)
	if m.coils.ReadCoil(index) != on {
		return fmt.Errorf("coil %d: %w", index, ErrWriteVerify)
	}
	return nil
}

// ReadHoldingRegisters returns quantity registers starting at address as BigEndian bytes.
func (m *DeviceImage) ReadHoldingRegisters(address, quantity int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(address, quantity, len(m.registers)); err != nil {
		return nil, err
	}

	result := make([]byte, quantity*2)
	for i := 0; i < quantity; i++ {
		binary.BigEndian.PutUint16(result[i*2:], m.registers[address+i])
	}
	return result, nil
}

// WriteHoldingRegister stores a single holding register.
func (m *DeviceImage) WriteHoldingRegister(address int, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, 1, len(m.registers)); err != nil {
		return err
	}
	m.registers[address] = value
	return nil
}

// Coil returns the current state of one coil as seen by the bank.
func (m *DeviceImage) Coil(index int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.coils.ReadCoil(index)
}

// Register returns the value of one holding register.
func (m *DeviceImage) Register(address int) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registers[address]
}

// Registers returns a copy of all holding registers.
func (m *DeviceImage) Registers() []uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uint16(nil), m.registers...)
}

// validateRange checks that [index, index+quantity) lies within size. A zero
// quantity is accepted at any index up to size.
func validateRange(index, quantity, size int) error {
	if index < 0 || quantity < 0 || index+quantity > size {
		return fmt.Errorf("%w: start %d quantity %d size %d", ErrAddressOutOfRange, index, quantity, size)
	}
	return nil
}
