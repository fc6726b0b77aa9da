// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/ffutop/modbus-rtu-slave/internal/slave/model"
	"github.com/ffutop/modbus-rtu-slave/modbus"
	"github.com/ffutop/modbus-rtu-slave/modbus/crc"
	"github.com/ffutop/modbus-rtu-slave/modbus/rtu"
)

// ErrWriteVerify is returned when a coil does not read back the written value.
var ErrWriteVerify = model.ErrWriteVerify

// Option configures a Slave.
type Option func(*Slave)

// WithCRCOrder selects how the request CRC bytes are read.
func WithCRCOrder(order rtu.CRCOrder) Option {
	return func(s *Slave) {
		s.crcOrder = order
	}
}

// WithRegisterWrites selects whether Write Single Register stores its value.
// When disabled the request is validated and echoed but the register keeps its value.
func WithRegisterWrites(store bool) Option {
	return func(s *Slave) {
		s.storeRegisterWrites = store
	}
}

// WithStats records outcomes into stats.
func WithStats(stats *Stats) Option {
	return func(s *Slave) {
		s.stats = stats
	}
}

// Slave implements the Modbus RTU protocol logic for one slave address on top
// of a DeviceImage. It processes one frame at a time; callers serialise Process.
type Slave struct {
	id    byte
	image *model.DeviceImage

	crcOrder            rtu.CRCOrder
	storeRegisterWrites bool
	stats               *Stats
}

// New creates a Slave answering to id.
func New(id byte, image *model.DeviceImage, opts ...Option) *Slave {
	s := &Slave{
		id:                  id,
		image:               image,
		storeRegisterWrites: true,
		stats:               &Stats{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the slave address.
func (s *Slave) ID() byte { return s.id }

// Stats returns the outcome counters.
func (s *Slave) Stats() *Stats { return s.stats }

// Validate checks length, address and CRC of a request frame.
func (s *Slave) Validate(frame []byte) error {
	if len(frame) < rtu.MinRequestSize {
		return fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	if frame[0] != s.id {
		return fmt.Errorf("%w: %d", ErrSlaveIDMismatch, frame[0])
	}
	n := len(frame)
	msb, lsb := rtu.SplitCRC(frame, s.crcOrder)
	if !crc.Verify(frame[:n-2], msb, lsb) {
		return fmt.Errorf("%w: received %04X, calculated %04X", ErrCRCMismatch, uint16(msb)<<8|uint16(lsb), crc.Calculate(frame[:n-2]))
	}
	return nil
}

// Process executes one request frame against the device image.
func (s *Slave) Process(frame []byte) Outcome {
	o := s.process(frame)
	s.stats.record(o)

	switch o.Kind {
	case NoResponse:
		slog.Debug("Request dropped", "slaveID", s.id, "frame", hex.EncodeToString(frame), "reason", o.Reason)
	case Exception:
		slog.Info("Unsupported function", "slaveID", s.id, "func", modbus.FunctionName(frame[1]), "response", hex.EncodeToString(o.Frame))
	default:
		slog.Debug("Request served", "slaveID", s.id, "func", modbus.FunctionName(frame[1]), "response", hex.EncodeToString(o.Frame))
	}
	return o
}

func (s *Slave) process(frame []byte) Outcome {
	if err := s.Validate(frame); err != nil {
		return Outcome{Kind: NoResponse, Reason: err}
	}

	var (
		resp rtu.Buffer
		err  error
		kind = Respond
	)
	switch frame[1] {
	case modbus.FuncCodeReadCoils:
		err = s.handleReadCoils(frame, &resp)
	case modbus.FuncCodeReadHoldingRegisters:
		err = s.handleReadHoldingRegisters(frame, &resp)
	case modbus.FuncCodeWriteSingleCoil:
		err = s.handleWriteSingleCoil(frame, &resp)
	case modbus.FuncCodeWriteSingleRegister:
		err = s.handleWriteSingleRegister(frame, &resp)
	default:
		kind = Exception
		err = s.exception(frame[1], modbus.ExceptionCodeIllegalFunction, &resp)
	}
	if err == nil {
		_, err = resp.AppendCRC()
	}
	if err != nil {
		return Outcome{Kind: NoResponse, Reason: fmt.Errorf("%s: %w", modbus.FunctionName(frame[1]), err)}
	}
	return Outcome{Kind: kind, Frame: append([]byte(nil), resp.Bytes()...)}
}

// handleReadCoils serves 0x01. Coil addresses are 1-based: address N reads coil N-1.
func (s *Slave) handleReadCoils(req []byte, resp *rtu.Buffer) error {
	address := binary.BigEndian.Uint16(req[2:4])
	quantity := binary.BigEndian.Uint16(req[4:6])

	if quantity < 1 || quantity > rtu.MaxReadCoils {
		return fmt.Errorf("%w: %d coils", ErrIllegalQuantity, quantity)
	}
	if address == 0 {
		return fmt.Errorf("%w: coil address 0", ErrIllegalAddress)
	}

	data, err := s.image.ReadCoils(int(address)-1, int(quantity))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIllegalAddress, err)
	}

	return s.writeReadResponse(resp, req[1], data)
}

// handleReadHoldingRegisters serves 0x03. Register addresses are 0-based.
func (s *Slave) handleReadHoldingRegisters(req []byte, resp *rtu.Buffer) error {
	address := binary.BigEndian.Uint16(req[2:4])
	quantity := binary.BigEndian.Uint16(req[4:6])

	if quantity > rtu.MaxReadRegisters {
		return fmt.Errorf("%w: %d registers", ErrIllegalQuantity, quantity)
	}

	data, err := s.image.ReadHoldingRegisters(int(address), int(quantity))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIllegalAddress, err)
	}

	return s.writeReadResponse(resp, req[1], data)
}

// handleWriteSingleCoil serves 0x05. The coil address is 0-based.
func (s *Slave) handleWriteSingleCoil(req []byte, resp *rtu.Buffer) error {
	address := binary.BigEndian.Uint16(req[2:4])
	value := binary.BigEndian.Uint16(req[4:6])

	if int(address) >= s.image.NumCoils() {
		return fmt.Errorf("%w: coil %d of %d", ErrIllegalAddress, address, s.image.NumCoils())
	}

	var on bool
	switch value {
	case rtu.CoilOff:
	case rtu.CoilOn:
		on = true
	default:
		return fmt.Errorf("%w: got 0x%04X", ErrIllegalCoilValue, value)
	}

	if err := s.image.WriteCoil(int(address), on); err != nil {
		return err
	}

	return s.echo(resp, req[1], address, value)
}

// handleWriteSingleRegister serves 0x06. The register address is 0-based.
func (s *Slave) handleWriteSingleRegister(req []byte, resp *rtu.Buffer) error {
	address := binary.BigEndian.Uint16(req[2:4])
	value := binary.BigEndian.Uint16(req[4:6])

	if int(address) >= s.image.NumRegisters() {
		return fmt.Errorf("%w: register %d of %d", ErrIllegalAddress, address, s.image.NumRegisters())
	}

	if s.storeRegisterWrites {
		if err := s.image.WriteHoldingRegister(int(address), value); err != nil {
			return fmt.Errorf("%w: %w", ErrIllegalAddress, err)
		}
	}

	return s.echo(resp, req[1], address, value)
}

// writeReadResponse writes [id, func, byteCount, data...].
func (s *Slave) writeReadResponse(resp *rtu.Buffer, funcCode byte, data []byte) error {
	if len(data) > 0xFF {
		return rtu.ErrBufferFull
	}
	if _, err := resp.Write([]byte{s.id, funcCode, byte(len(data))}); err != nil {
		return err
	}
	_, err := resp.Write(data)
	return err
}

// echo writes [id, func, address, value] back to the master.
func (s *Slave) echo(resp *rtu.Buffer, funcCode byte, address, value uint16) error {
	if _, err := resp.Write([]byte{s.id, funcCode}); err != nil {
		return err
	}
	if err := resp.WriteUint16(address); err != nil {
		return err
	}
	return resp.WriteUint16(value)
}

func (s *Slave) exception(funcCode, code byte, resp *rtu.Buffer) error {
	_, err := resp.Write([]byte{s.id, funcCode | modbus.ExceptionFlag, code})
	return err
}
