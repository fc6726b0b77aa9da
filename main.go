// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-rtu-slave/internal/config"
	"github.com/ffutop/modbus-rtu-slave/internal/server"
	"github.com/ffutop/modbus-rtu-slave/internal/slave"
	"github.com/ffutop/modbus-rtu-slave/internal/slave/backend"
	"github.com/ffutop/modbus-rtu-slave/internal/slave/model"
	rtupacket "github.com/ffutop/modbus-rtu-slave/modbus/rtu"
	"github.com/ffutop/modbus-rtu-slave/transport"
	"github.com/ffutop/modbus-rtu-slave/transport/rtu"
	rtuovertcp "github.com/ffutop/modbus-rtu-slave/transport/rtu-over-tcp"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rtuslave",
		Short: "Modbus RTU slave driving a bank of digital outputs",
		Long: `rtuslave answers a Modbus master on a serial line (or RTU frames over TCP)
as a single slave device with coils and holding registers.

Supported functions: Read Coils (0x01), Read Holding Registers (0x03),
Write Single Coil (0x05), Write Single Register (0x06).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			setupLogger(cfg.Log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.AddCommand(newCRCCmd())
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	bank := backend.Open(cfg.Slave.Coils)
	defer bank.Close()

	stats := &slave.Stats{}
	sl, err := newSlave(cfg.Slave, bank, stats)
	if err != nil {
		return err
	}
	slog.Info("Starting Modbus RTU slave...", "slaveID", sl.ID(), "crcOrder", cfg.Slave.CRCOrder)

	upstreams, err := buildUpstreams(cfg.Upstreams)
	if err != nil {
		return err
	}

	srv := server.New(sl, upstreams...)
	err = srv.Start(ctx)

	slog.Info("Shutting down...", "stats", stats)
	return err
}

// newSlave builds the device image over bank and the slave serving it.
func newSlave(cfg config.SlaveConfig, bank model.CoilBank, stats *slave.Stats) (*slave.Slave, error) {
	order, err := rtupacket.ParseCRCOrder(cfg.CRCOrder)
	if err != nil {
		return nil, err
	}

	registers := cfg.InitialRegisters()
	if registers == nil {
		registers = model.DefaultRegisters(cfg.Registers.Count)
	}
	image := model.NewDeviceImage(bank, registers)

	return slave.New(byte(cfg.ID), image,
		slave.WithCRCOrder(order),
		slave.WithRegisterWrites(cfg.StoreRegisterWrites),
		slave.WithStats(stats),
	), nil
}

func buildUpstreams(cfgs []config.UpstreamConfig) ([]transport.Upstream, error) {
	var upstreams []transport.Upstream
	for i, usCfg := range cfgs {
		var us transport.Upstream
		switch usCfg.Type {
		case config.UpstreamRTU:
			us = rtu.NewServer(usCfg.Serial)
		case config.UpstreamRTUOverTCP:
			us = rtuovertcp.NewServer(usCfg.Tcp)
		default:
			return nil, fmt.Errorf("upstream %d: unknown type %q", i, usCfg.Type)
		}
		upstreams = append(upstreams, us)
	}
	if len(upstreams) == 0 {
		return nil, fmt.Errorf("no upstreams configured")
	}
	return upstreams, nil
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
