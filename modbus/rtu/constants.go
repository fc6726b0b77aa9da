// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	// MinRequestSize is the shortest request frame the slave accepts:
	// address, function, two 16-bit arguments and CRC.
	MinRequestSize = 8
	MaxSize        = 256
)

// Device limits for single requests.
const (
	MaxReadCoils     = 0x07D0
	MaxReadRegisters = 125
)

// Single coil values.
const (
	CoilOff = 0x0000
	CoilOn  = 0xFF00
)
