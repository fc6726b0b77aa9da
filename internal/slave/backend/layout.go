// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package backend

import "fmt"

// Port image layout: one byte per pin, pin n at offset n. A pin is driven
// high when its byte is pinHigh and low when it is pinLow.
const (
	pinLow  = 0x00
	pinHigh = 0x01
)

// pinMap resolves coil indices to port offsets.
type pinMap []int

func newPinMap(pins []int, count, portSize int) (pinMap, error) {
	if len(pins) < count {
		return nil, fmt.Errorf("%d coils need as many pins, got %d", count, len(pins))
	}
	m := make(pinMap, count)
	seen := make(map[int]int, count)
	for i, pin := range pins[:count] {
		if pin < 0 || pin >= portSize {
			return nil, fmt.Errorf("coil %d: pin %d outside port of %d pins", i, pin, portSize)
		}
		if prev, ok := seen[pin]; ok {
			return nil, fmt.Errorf("coils %d and %d share pin %d", prev, i, pin)
		}
		seen[pin] = i
		m[i] = pin
	}
	return m, nil
}
