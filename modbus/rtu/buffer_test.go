// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_AppendCRC(t *testing.T) {
	var b Buffer
	_, err := b.Write([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A})
	require.NoError(t, err)

	n, err := b.AppendCRC()
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A, 0xC5, 0xCD}, b.Bytes())
}

func TestBuffer_RejectsOverflow(t *testing.T) {
	var b Buffer
	_, err := b.Write(bytes.Repeat([]byte{0xAA}, MaxSize-1))
	require.NoError(t, err)

	assert.ErrorIs(t, b.WriteUint16(0x1234), ErrBufferFull)
	assert.Equal(t, MaxSize-1, b.Len(), "failed write must not change length")

	require.NoError(t, b.WriteByte(0xBB))
	assert.ErrorIs(t, b.WriteByte(0xCC), ErrBufferFull)

	_, err = b.AppendCRC()
	assert.ErrorIs(t, err, ErrBufferFull)

	b.Reset()
	assert.Zero(t, b.Len())
}

func TestSplitCRC(t *testing.T) {
	frame := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A, 0xC5, 0xCD}

	msb, lsb := SplitCRC(frame, CRCOrderStandard)
	assert.Equal(t, byte(0xCD), msb)
	assert.Equal(t, byte(0xC5), lsb)

	msb, lsb = SplitCRC(frame, CRCOrderLegacy)
	assert.Equal(t, byte(0xC5), msb)
	assert.Equal(t, byte(0xCD), lsb)

	var zero CRCOrder
	assert.Equal(t, CRCOrderLegacy, zero)
	assert.Equal(t, "legacy", zero.String())
}

func TestParseCRCOrder(t *testing.T) {
	for in, want := range map[string]CRCOrder{"": CRCOrderLegacy, "legacy": CRCOrderLegacy, "Standard": CRCOrderStandard} {
		got, err := ParseCRCOrder(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCRCOrder("msb-first")
	assert.Error(t, err)
}
