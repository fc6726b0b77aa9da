// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"errors"
	"fmt"
)

// Transport-level drops: the frame is not addressed to us or is damaged.
var (
	ErrShortFrame      = errors.New("frame shorter than minimum request size")
	ErrSlaveIDMismatch = errors.New("frame addressed to another slave")
	ErrCRCMismatch     = errors.New("frame crc mismatch")
)

// Argument drops: a supported function rejected its arguments.
var (
	ErrIllegalQuantity  = errors.New("illegal quantity")
	ErrIllegalAddress   = errors.New("illegal data address")
	ErrIllegalCoilValue = errors.New("coil value must be 0x0000 or 0xFF00")
)

// Kind tells whether and how the slave answers a frame.
type Kind int

const (
	NoResponse Kind = iota
	Respond
	Exception
)

func (k Kind) String() string {
	switch k {
	case NoResponse:
		return "NoResponse"
	case Respond:
		return "Respond"
	case Exception:
		return "Exception"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Outcome is the result of processing one request frame. Frame is set for
// Respond and Exception; Reason is set for NoResponse.
type Outcome struct {
	Kind   Kind
	Frame  []byte
	Reason error
}

// TransportDrop reports whether the frame was dropped before dispatch.
func (o Outcome) TransportDrop() bool {
	return o.Kind == NoResponse &&
		(errors.Is(o.Reason, ErrShortFrame) ||
			errors.Is(o.Reason, ErrSlaveIDMismatch) ||
			errors.Is(o.Reason, ErrCRCMismatch))
}
