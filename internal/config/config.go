/*
NAME
  config.go

DESCRIPTION
  config.go provides Config, the set of tunables shared by the hevcpcap
  and hevcreceive command line tools, and a variable table in the style of
  revid/config for updating it from a map of string key/value pairs.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config provides the shared configuration surface for the HEVC
// depacketizer command line tools.
package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config map keys, used by Update to match entries of a vars map (such as
// one returned by LoadFile) to Config fields.
const (
	KeyLogLevel        = "LogLevel"
	KeyFragmentTimeout = "FragmentTimeout"
	KeyDONL            = "DONL"
	KeyListenPort      = "ListenPort"
	KeyPCAPPort        = "PCAPPort"
	KeyOutputPath      = "OutputPath"
	KeySweepInterval   = "SweepInterval"
)

// Default values, used by New and referenced by Variables' Validate funcs.
const (
	DefaultLogLevel        = 1 // logging.Info
	DefaultFragmentTimeout = 500 * time.Millisecond
	DefaultListenPort      = 5004
	DefaultPCAPPort        = 5004
	DefaultOutputPath      = "stream.hevc"
	DefaultSweepInterval   = 500 * time.Millisecond
)

// Config holds the tunables shared across the core depacketizer and both
// command line front-ends. Fields are exported so a caller (or a config
// file loader) can set them directly; Validate then fills in defaults for
// anything left at its zero value.
type Config struct {
	LogLevel        int8
	FragmentTimeout time.Duration
	DONL            bool
	ListenPort      int
	PCAPPort        int
	OutputPath      string
	SweepInterval   time.Duration
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        DefaultLogLevel,
		FragmentTimeout: DefaultFragmentTimeout,
		ListenPort:      DefaultListenPort,
		PCAPPort:        DefaultPCAPPort,
		OutputPath:      DefaultOutputPath,
		SweepInterval:   DefaultSweepInterval,
	}
}

// variable describes one updatable Config field: its name, how to parse a
// string value into the Config, and how to validate/default it.
type variable struct {
	Name     string
	Update   func(c *Config, v string) error
	Validate func(c *Config)
}

// Variables is the full set of updatable Config fields, in the style of
// revid/config's variable table.
var Variables = []variable{
	{
		Name: KeyLogLevel,
		Update: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
			}
			c.LogLevel = int8(n)
			return nil
		},
		Validate: func(c *Config) {
			if c.LogLevel == 0 {
				c.LogLevel = DefaultLogLevel
			}
		},
	},
	{
		Name: KeyFragmentTimeout,
		Update: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", KeyFragmentTimeout, err)
			}
			c.FragmentTimeout = d
			return nil
		},
		Validate: func(c *Config) {
			if c.FragmentTimeout <= 0 {
				c.FragmentTimeout = DefaultFragmentTimeout
			}
		},
	},
	{
		Name: KeyDONL,
		Update: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", KeyDONL, err)
			}
			c.DONL = b
			return nil
		},
	},
	{
		Name: KeyListenPort,
		Update: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", KeyListenPort, err)
			}
			c.ListenPort = n
			return nil
		},
		Validate: func(c *Config) {
			if c.ListenPort == 0 {
				c.ListenPort = DefaultListenPort
			}
		},
	},
	{
		Name: KeyPCAPPort,
		Update: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", KeyPCAPPort, err)
			}
			c.PCAPPort = n
			return nil
		},
		Validate: func(c *Config) {
			if c.PCAPPort == 0 {
				c.PCAPPort = DefaultPCAPPort
			}
		},
	},
	{
		Name: KeyOutputPath,
		Update: func(c *Config, v string) error {
			c.OutputPath = v
			return nil
		},
		Validate: func(c *Config) {
			if c.OutputPath == "" {
				c.OutputPath = DefaultOutputPath
			}
		},
	},
	{
		Name: KeySweepInterval,
		Update: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", KeySweepInterval, err)
			}
			c.SweepInterval = d
			return nil
		},
		Validate: func(c *Config) {
			if c.SweepInterval <= 0 {
				c.SweepInterval = DefaultSweepInterval
			}
		},
	},
}

// Update sets each Config field named in vars, returning the first parse
// error encountered, if any. Fields not present in vars are left unchanged.
func (c *Config) Update(vars map[string]string) error {
	for _, variable := range Variables {
		v, ok := vars[variable.Name]
		if !ok {
			continue
		}
		if err := variable.Update(c, v); err != nil {
			return err
		}
	}
	return nil
}

// Validate defaults any field left at its zero value and reports an error
// if the resulting Config is unusable.
func (c *Config) Validate() error {
	for _, variable := range Variables {
		if variable.Validate != nil {
			variable.Validate(c)
		}
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen port %d out of range", c.ListenPort)
	}
	if c.PCAPPort < 0 || c.PCAPPort > 65535 {
		return fmt.Errorf("pcap filter port %d out of range", c.PCAPPort)
	}
	return nil
}
