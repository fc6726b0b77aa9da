// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/grid-x/serial"

	"github.com/ffutop/modbus-rtu-slave/internal/config"
)

// serialPort has configuration and I/O controller.
type serialPort struct {
	// Serial port configuration.
	serial.Config

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port io.ReadWriteCloser
}

func newSerialPort(cfg config.SerialConfig) *serialPort {
	return &serialPort{
		Config: serial.Config{
			Address:  cfg.Device,
			BaudRate: cfg.BaudRate,
			DataBits: cfg.DataBits,
			StopBits: cfg.StopBits,
			Parity:   cfg.Parity,
			Timeout:  cfg.Timeout,
			RS485: serial.RS485Config{
				Enabled:            cfg.RS485,
				DelayRtsBeforeSend: cfg.DelayRtsBeforeSend,
				DelayRtsAfterSend:  cfg.DelayRtsAfterSend,
				RtsHighDuringSend:  cfg.RtsHighDuringSend,
				RtsHighAfterSend:   cfg.RtsHighAfterSend,
				RxDuringTx:         cfg.RxDuringTx,
			},
		},
	}
}

func (sp *serialPort) Connect(ctx context.Context) (io.ReadWriteCloser, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if sp.port == nil {
		port, err := serial.Open(&sp.Config)
		if err != nil {
			return nil, fmt.Errorf("could not open %s: %w", sp.Config.Address, err)
		}
		sp.port = port
	}
	return sp.port, nil
}

func (sp *serialPort) Close() (err error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.port != nil {
		err = sp.port.Close()
		sp.port = nil
	}
	return
}
