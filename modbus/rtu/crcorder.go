// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"
	"strings"
)

// CRCOrder selects how the two trailing bytes of a request are read back into a checksum.
type CRCOrder int

const (
	// CRCOrderLegacy treats the first trailing byte as the high byte, so the
	// checksum is reconstructed as frame[n-2]<<8 | frame[n-1]. Responses still
	// carry the low byte first.
	CRCOrderLegacy CRCOrder = iota
	// CRCOrderStandard reads the CRC low byte first, as most Modbus RTU masters
	// transmit it.
	CRCOrderStandard
)

func (o CRCOrder) String() string {
	switch o {
	case CRCOrderStandard:
		return "standard"
	case CRCOrderLegacy:
		return "legacy"
	}
	return fmt.Sprintf("CRCOrder(%d)", int(o))
}

// ParseCRCOrder parses "legacy" or "standard". An empty string means legacy.
func ParseCRCOrder(s string) (CRCOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy":
		return CRCOrderLegacy, nil
	case "standard":
		return CRCOrderStandard, nil
	}
	return 0, fmt.Errorf("unknown crc order %q", s)
}

// SplitCRC returns the received checksum of frame as (msb, lsb). frame must hold
// at least two bytes.
func SplitCRC(frame []byte, order CRCOrder) (msb, lsb byte) {
	n := len(frame)
	if order == CRCOrderStandard {
		return frame[n-1], frame[n-2]
	}
	return frame[n-2], frame[n-1]
}
