// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus holds protocol constants shared by the slave engine and its transports.
package modbus

import "fmt"

// Function codes served by the slave.
const (
	FuncCodeReadCoils            = 0x01
	FuncCodeReadHoldingRegisters = 0x03
	FuncCodeWriteSingleCoil      = 0x05
	FuncCodeWriteSingleRegister  = 0x06
)

// ExceptionFlag is OR-ed into the function code of an exception response.
const ExceptionFlag = 0x80

// ExceptionCodeIllegalFunction is the only exception code the slave sends.
const ExceptionCodeIllegalFunction = 0x01

// FunctionName returns a human readable name for a function code, used in logs.
func FunctionName(code byte) string {
	switch code {
	case FuncCodeReadCoils:
		return "ReadCoils"
	case FuncCodeReadHoldingRegisters:
		return "ReadHoldingRegisters"
	case FuncCodeWriteSingleCoil:
		return "WriteSingleCoil"
	case FuncCodeWriteSingleRegister:
		return "WriteSingleRegister"
	}
	if code&ExceptionFlag != 0 {
		return fmt.Sprintf("Exception(0x%02X)", code&^ExceptionFlag)
	}
	return fmt.Sprintf("Unknown(0x%02X)", code)
}
