// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-rtu-slave/modbus/crc"
)

func newCRCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crc <hex>",
		Short: "Print the CRC-16/MODBUS of a frame and the frame with the CRC appended",
		Example: `  rtuslave crc 01030000000A
  rtuslave crc "01 05 00 02 FF 00"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(strings.Join(strings.Fields(strings.Join(args, " ")), ""))
			if err != nil {
				return fmt.Errorf("invalid hex input: %w", err)
			}
			sum := crc.Calculate(data)
			frame := append(data, byte(sum), byte(sum>>8))
			fmt.Fprintf(cmd.OutOrStdout(), "crc:   %04X\nframe: % X\n", sum, frame)
			return nil
		},
	}
}
