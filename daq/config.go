// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-lpc/tdc/uio"
	"gopkg.in/yaml.v3"
)

// Config describes the UIO devices of the TDC readout and where to send
// the data.
type Config struct {
	IRQ    string    `yaml:"irq"`    // UIO id of the trigger interrupt
	BRAMs  [2]string `yaml:"brams"`  // UIO ids of the ping-pong block RAMs
	Busy   string    `yaml:"busy"`   // UIO id of the busy flag GPIO
	Select string    `yaml:"select"` // UIO id of the block RAM selector GPIO

	BRAMSize int64 `yaml:"bram-size"` // mapped size of a block RAM, in bytes
	GPIOSize int64 `yaml:"gpio-size"` // mapped size of a GPIO, in bytes

	Words int  `yaml:"words"` // number of words read per trigger
	Clear bool `yaml:"clear"` // zero the words after reading them

	Sink string `yaml:"sink"` // [ip]:port of the data sink, none if empty
}

// DefaultConfig returns the configuration of the Kria TDC firmware.
func DefaultConfig() Config {
	return Config{
		IRQ:      "0",
		BRAMs:    [2]string{"1", "2"},
		Busy:     "3",
		Select:   "4",
		BRAMSize: 8192,
		GPIOSize: 65536,
		Words:    250,
	}
}

// LoadConfig reads a YAML configuration file.
// Fields missing from the file keep their DefaultConfig value.
func LoadConfig(fname string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(fname)
	if err != nil {
		return cfg, fmt.Errorf("daq: could not read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	err = dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("daq: could not decode config file %q: %w", fname, err)
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the consistency of the configuration.
func (cfg Config) Validate() error {
	for _, v := range []struct {
		name string
		id   string
	}{
		{"irq", cfg.IRQ},
		{"brams[0]", cfg.BRAMs[0]},
		{"brams[1]", cfg.BRAMs[1]},
		{"busy", cfg.Busy},
		{"select", cfg.Select},
	} {
		if v.id == "" {
			return fmt.Errorf("daq: invalid config: missing %s UIO id", v.name)
		}
	}

	switch {
	case cfg.BRAMSize <= 0:
		return fmt.Errorf("daq: invalid config: invalid bram-size %d", cfg.BRAMSize)
	case cfg.GPIOSize < 4:
		return fmt.Errorf("daq: invalid config: invalid gpio-size %d", cfg.GPIOSize)
	case cfg.Words <= 0:
		return fmt.Errorf("daq: invalid config: invalid number of words %d", cfg.Words)
	case int64(cfg.Words)*uio.WordSize > cfg.BRAMSize:
		return fmt.Errorf(
			"daq: invalid config: %d words do not fit in a %d-byte block RAM",
			cfg.Words, cfg.BRAMSize,
		)
	}

	return nil
}
