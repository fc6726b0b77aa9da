// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Slave     SlaveConfig      `mapstructure:"slave"`
	Upstreams []UpstreamConfig `mapstructure:"upstreams"`
	Log       LogConfig        `mapstructure:"log"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// SlaveConfig describes the device served on the bus.
type SlaveConfig struct {
	ID                  int            `mapstructure:"id"`
	CRCOrder            string         `mapstructure:"crc_order"` // "legacy", "standard"
	StoreRegisterWrites bool           `mapstructure:"store_register_writes"`
	Coils               CoilConfig     `mapstructure:"coils"`
	Registers           RegisterConfig `mapstructure:"registers"`
}

// CoilConfig defines the digital outputs behind the coils.
type CoilConfig struct {
	Backend  string `mapstructure:"backend"`   // "memory", "mmap"
	Count    int    `mapstructure:"count"`     // Number of coils
	Pins     []int  `mapstructure:"pins"`      // Port pin driven by each coil, used by "mmap"
	Path     string `mapstructure:"path"`      // Port image file, used by "mmap"
	PortSize int    `mapstructure:"port_size"` // Number of pins in the port image
}

// RegisterConfig defines the holding registers.
type RegisterConfig struct {
	Count   int   `mapstructure:"count"`
	Initial []int `mapstructure:"initial"` // Power-on values; defaults to 100, 200, ...
}

// UpstreamConfig defines a master-facing link
type UpstreamConfig struct {
	Type   string       `mapstructure:"type"`   // "rtu", "rtu-over-tcp"
	Tcp    TcpConfig    `mapstructure:"tcp"`    // Used if Type is "rtu-over-tcp"
	Serial SerialConfig `mapstructure:"serial"` // Used if Type is "rtu"
}

// TcpConfig defines TCP settings
type TcpConfig struct {
	Address  string        `mapstructure:"address"`   // e.g. "0.0.0.0:5020"
	FrameGap time.Duration `mapstructure:"frame_gap"` // Silence that terminates a frame
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"`
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"`   // Read timeout
	FrameGap time.Duration `mapstructure:"frame_gap"` // Defaults to 3.5 characters at BaudRate

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

const (
	UpstreamRTU        = "rtu"
	UpstreamRTUOverTCP = "rtu-over-tcp"

	BackendMemory = "memory"
	BackendMmap   = "mmap"
)

// RegisterFlags declares the command line flags understood by LoadConfig.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Configuration file path.")
	fs.Int("slave-id", 1, "Modbus slave address (1-247).")
	fs.StringP("device", "p", "", "Serial port device name of the rtu upstreams.")
	fs.IntP("baud-rate", "s", 0, "Serial port speed of the rtu upstreams.")
	fs.StringP("log-level", "v", "info", "Log verbosity level (debug, info, warn, error).")
	fs.StringP("log-file", "L", "", "Log file name ('-' for logging to STDOUT only).")
}

// LoadConfig loads configuration from file, with flags taking precedence when
// set. An empty configFile searches the default locations and tolerates a
// missing file.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/rtuslave/")
		v.AddConfigPath("$HOME/.rtuslave")
		v.AddConfigPath(".")
	}

	if flags != nil {
		for key, flag := range map[string]string{
			"slave.id":  "slave-id",
			"log.level": "log-level",
			"log.file":  "log-file",
		} {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if flags != nil {
		applySerialFlags(&config, flags)
	}

	// Validate / Fixups
	for i := range config.Upstreams {
		fixupSerial(&config.Upstreams[i].Serial)
		fixupTcp(&config.Upstreams[i].Tcp)
	}
	config.Slave.Coils.Backend = strings.ToLower(config.Slave.Coils.Backend)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("slave.id", 1)
	v.SetDefault("slave.crc_order", "legacy")
	v.SetDefault("slave.store_register_writes", true)
	v.SetDefault("slave.coils.backend", BackendMemory)
	v.SetDefault("slave.coils.count", 6)
	v.SetDefault("slave.coils.pins", []int{13, 12, 11, 10, 9, 8})
	v.SetDefault("slave.coils.port_size", 14)
	v.SetDefault("slave.registers.count", 10)

	v.SetDefault("upstreams", []map[string]interface{}{
		{
			"type": UpstreamRTU,
			"serial": map[string]interface{}{
				"device":    "/dev/ttyUSB0",
				"baud_rate": 9600,
				"data_bits": 8,
				"parity":    "N",
				"stop_bits": 1,
			},
		},
	})
}

func applySerialFlags(config *Config, flags *pflag.FlagSet) {
	device, _ := flags.GetString("device")
	baudRate, _ := flags.GetInt("baud-rate")
	for i := range config.Upstreams {
		if config.Upstreams[i].Type != UpstreamRTU {
			continue
		}
		if flags.Changed("device") {
			config.Upstreams[i].Serial.Device = device
		}
		if flags.Changed("baud-rate") {
			config.Upstreams[i].Serial.BaudRate = baudRate
		}
	}
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Parity == "" {
		s.Parity = "N"
	}
	if s.BaudRate == 0 {
		s.BaudRate = 9600
	}
	if s.DataBits == 0 {
		s.DataBits = 8
	}
	if s.StopBits == 0 {
		s.StopBits = 1
	}
	if s.Timeout == 0 {
		s.Timeout = 500 * time.Millisecond
	}
}

func fixupTcp(t *TcpConfig) {
	if t.FrameGap == 0 {
		t.FrameGap = 5 * time.Millisecond
	}
}

// InitialRegisters returns the configured power-on values padded with zeros
// to Registers.Count, or nil when none are configured.
func (s SlaveConfig) InitialRegisters() []uint16 {
	if len(s.Registers.Initial) == 0 {
		return nil
	}
	regs := make([]uint16, s.Registers.Count)
	for i, v := range s.Registers.Initial {
		regs[i] = uint16(v)
	}
	return regs
}

// Validate reports the first inconsistency in the configuration.
func (c *Config) Validate() error {
	s := c.Slave
	if s.ID < 1 || s.ID > 247 {
		return fmt.Errorf("slave id %d out of range 1-247", s.ID)
	}
	switch strings.ToLower(s.CRCOrder) {
	case "", "legacy", "standard":
	default:
		return fmt.Errorf("unknown crc order %q", s.CRCOrder)
	}
	if s.Coils.Count < 1 {
		return fmt.Errorf("coil count must be at least 1, got %d", s.Coils.Count)
	}
	switch s.Coils.Backend {
	case BackendMemory:
	case BackendMmap:
		if s.Coils.Path == "" {
			return fmt.Errorf("mmap coil backend requires a path")
		}
		if len(s.Coils.Pins) < s.Coils.Count {
			return fmt.Errorf("%d coils need as many pins, got %d", s.Coils.Count, len(s.Coils.Pins))
		}
		for _, pin := range s.Coils.Pins[:s.Coils.Count] {
			if pin < 0 || pin >= s.Coils.PortSize {
				return fmt.Errorf("pin %d outside port of %d pins", pin, s.Coils.PortSize)
			}
		}
	default:
		return fmt.Errorf("unknown coil backend %q", s.Coils.Backend)
	}
	if s.Registers.Count < 1 {
		return fmt.Errorf("register count must be at least 1, got %d", s.Registers.Count)
	}
	if len(s.Registers.Initial) > s.Registers.Count {
		return fmt.Errorf("%d initial register values for %d registers", len(s.Registers.Initial), s.Registers.Count)
	}
	for i, v := range s.Registers.Initial {
		if v < 0 || v > 0xFFFF {
			return fmt.Errorf("initial value %d of register %d is not a 16-bit value", v, i)
		}
	}

	if len(c.Upstreams) == 0 {
		return fmt.Errorf("no upstreams configured")
	}
	for i, us := range c.Upstreams {
		switch us.Type {
		case UpstreamRTU:
			if us.Serial.Device == "" {
				return fmt.Errorf("upstream %d: serial device is required", i)
			}
		case UpstreamRTUOverTCP:
			if us.Tcp.Address == "" {
				return fmt.Errorf("upstream %d: tcp address is required", i)
			}
		default:
			return fmt.Errorf("upstream %d: unknown type %q", i, us.Type)
		}
	}
	return nil
}
