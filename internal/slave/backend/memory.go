// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package backend

import "sync"

// Memory is a coil bank without hardware behind it.
type Memory struct {
	mu    sync.Mutex
	coils []bool
}

func NewMemory(count int) *Memory {
	return &Memory{coils: make([]bool, count)}
}

func (m *Memory) NumCoils() int { return len(m.coils) }

func (m *Memory) ReadCoil(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coils[index]
}

func (m *Memory) WriteCoil(index int, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coils[index] = on
}

func (m *Memory) Close() error { return nil }
