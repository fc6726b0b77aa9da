// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffutop/modbus-rtu-slave/internal/config"
	"github.com/ffutop/modbus-rtu-slave/internal/slave"
	"github.com/ffutop/modbus-rtu-slave/internal/slave/backend"
	"github.com/ffutop/modbus-rtu-slave/transport/rtu"
	rtuovertcp "github.com/ffutop/modbus-rtu-slave/transport/rtu-over-tcp"
)

func TestCRCCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"crc", "01 03 00 00", "00 0A"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "crc:   CDC5\nframe: 01 03 00 00 00 0A C5 CD\n", out.String())
}

func TestCRCCommand_InvalidHex(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"crc", "0G"})
	assert.Error(t, cmd.Execute())
}

func TestBuildUpstreams(t *testing.T) {
	ups, err := buildUpstreams([]config.UpstreamConfig{
		{Type: config.UpstreamRTU, Serial: config.SerialConfig{Device: "/dev/ttyUSB0", BaudRate: 9600}},
		{Type: config.UpstreamRTUOverTCP, Tcp: config.TcpConfig{Address: "127.0.0.1:5020"}},
	})
	require.NoError(t, err)
	require.Len(t, ups, 2)
	assert.IsType(t, &rtu.Server{}, ups[0])
	assert.IsType(t, &rtuovertcp.Server{}, ups[1])

	_, err = buildUpstreams([]config.UpstreamConfig{{Type: "tcp"}})
	assert.Error(t, err)
	_, err = buildUpstreams(nil)
	assert.Error(t, err)
}

func loadDefaultConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0644))
	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)
	return cfg
}

func TestNewSlave_DefaultConfigReadsCRCHighByteFirst(t *testing.T) {
	cfg := loadDefaultConfig(t)
	sl, err := newSlave(cfg.Slave, backend.NewMemory(cfg.Slave.Coils.Count), &slave.Stats{})
	require.NoError(t, err)
	assert.Equal(t, byte(1), sl.ID())

	// CRC 0xCDC5 with its high byte at n-2.
	req, err := hex.DecodeString("01030000000ACDC5")
	require.NoError(t, err)
	o := sl.Process(req)
	require.Equal(t, slave.Respond, o.Kind, "reason: %v", o.Reason)
	assert.Len(t, o.Frame, 3+20+2)

	req, err = hex.DecodeString("01030000000AC5CD")
	require.NoError(t, err)
	o = sl.Process(req)
	assert.Equal(t, slave.NoResponse, o.Kind)
	assert.ErrorIs(t, o.Reason, slave.ErrCRCMismatch)
}

func TestNewSlave_StandardCRCOrder(t *testing.T) {
	cfg := loadDefaultConfig(t)
	cfg.Slave.CRCOrder = "standard"
	sl, err := newSlave(cfg.Slave, backend.NewMemory(cfg.Slave.Coils.Count), &slave.Stats{})
	require.NoError(t, err)

	req, err := hex.DecodeString("01030000000AC5CD")
	require.NoError(t, err)
	assert.Equal(t, slave.Respond, sl.Process(req).Kind)

	cfg.Slave.CRCOrder = "reversed"
	_, err = newSlave(cfg.Slave, backend.NewMemory(1), &slave.Stats{})
	assert.Error(t, err)
}
