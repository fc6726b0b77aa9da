// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

const (
	initial    = 0xFFFF
	polynomial = 0xA001
)

// CRC is a running CRC-16/MODBUS checksum.
type CRC struct {
	value uint16
}

// Reset restarts the checksum from the initial register value.
func (crc *CRC) Reset() *CRC {
	crc.value = initial
	return crc
}

// PushBytes folds data into the checksum.
func (crc *CRC) PushBytes(data []byte) *CRC {
	for _, b := range data {
		crc.value ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc.value&0x0001 != 0 {
				crc.value = (crc.value >> 1) ^ polynomial
			} else {
				crc.value >>= 1
			}
		}
	}
	return crc
}

// Value returns the checksum of all bytes pushed since the last Reset.
func (crc *CRC) Value() uint16 {
	return crc.value
}

// Calculate returns the CRC-16/MODBUS of data.
func Calculate(data []byte) uint16 {
	var crc CRC
	return crc.Reset().PushBytes(data).Value()
}

// Verify reports whether the checksum of data equals (crcMSB << 8) | crcLSB.
func Verify(data []byte, crcMSB, crcLSB byte) bool {
	return Calculate(data) == uint16(crcMSB)<<8|uint16(crcLSB)
}
