// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config implements reading and validating the node configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/rdds/rdds/lib/sched"
)

const (
	// DefaultBasePort is the multicast discovery port for domain 0.
	DefaultBasePort = 7500
	// MaxDomainID is the largest domain id that fits the port scheme.
	MaxDomainID = 255
)

var (
	ErrInvalidDomain           = errors.New("domain id out of range 0-255")
	ErrInvalidHeartbeatTimeout = errors.New("heartbeat timeout must be between 1 and 255 seconds")
	ErrInvalidInterval         = errors.New("interval must be positive")
	ErrInvalidMulticastAddress = errors.New("not an IPv4 multicast address")
	ErrInvalidName             = errors.New("node name longer than 255 bytes")
)

// NodeConfiguration is the configuration surface consumed by a node.
type NodeConfiguration struct {
	Name                    string   `json:"name"`
	DomainID                int      `json:"domainID" default:"0"`
	HeartbeatTimeoutS       int      `json:"heartbeatTimeoutS" default:"5"`
	BroadcastIntervalMs     int      `json:"broadcastIntervalMs" default:"25"`
	HeartbeatPollIntervalMs int      `json:"heartbeatPollIntervalMs" default:"500"`
	MulticastAddress        string   `json:"multicastAddress" default:"239.255.0.75"`
	BasePort                int      `json:"basePort" default:"7500"`
	Interfaces              []string `json:"interfaces"`
	Scheduler               string   `json:"scheduler" default:"parallel"`
	MetricsAddress          string   `json:"metricsAddress"`
}

// New returns a configuration with every field at its default value and
// the given node name.
func New(name string) NodeConfiguration {
	var cfg NodeConfiguration
	SetDefaults(&cfg)
	cfg.Name = name
	cfg.prepare()
	return cfg
}

// ReadYAML decodes a configuration document. Both YAML and JSON are
// accepted; absent keys keep their defaults.
func ReadYAML(r io.Reader) (NodeConfiguration, error) {
	var cfg NodeConfiguration
	SetDefaults(&cfg)

	bs, err := io.ReadAll(r)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}

	cfg.prepare()
	return cfg, cfg.Validate()
}

// Load reads and validates the configuration file at path.
func Load(path string) (NodeConfiguration, error) {
	fd, err := os.Open(path)
	if err != nil {
		return NodeConfiguration{}, err
	}
	defer fd.Close()

	cfg, err := ReadYAML(fd)
	if err != nil {
		return NodeConfiguration{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// WriteYAML encodes the configuration as YAML.
func (cfg NodeConfiguration) WriteYAML(w io.Writer) error {
	bs, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(bs)
	return err
}

func (cfg *NodeConfiguration) prepare() {
	if cfg.Name == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Name = host
		}
	}
	if cfg.Interfaces == nil {
		cfg.Interfaces = []string{}
	}
}

// Validate checks that every value is usable by the discovery protocols.
func (cfg NodeConfiguration) Validate() error {
	if cfg.DomainID < 0 || cfg.DomainID > MaxDomainID {
		return fmt.Errorf("%w: %d", ErrInvalidDomain, cfg.DomainID)
	}
	// The timeout is advertised in a single byte.
	if cfg.HeartbeatTimeoutS < 1 || cfg.HeartbeatTimeoutS > 255 {
		return fmt.Errorf("%w: %d", ErrInvalidHeartbeatTimeout, cfg.HeartbeatTimeoutS)
	}
	if cfg.BroadcastIntervalMs <= 0 {
		return fmt.Errorf("broadcast %w", ErrInvalidInterval)
	}
	if cfg.HeartbeatPollIntervalMs <= 0 {
		return fmt.Errorf("heartbeat poll %w", ErrInvalidInterval)
	}
	if ip := net.ParseIP(cfg.MulticastAddress); ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return fmt.Errorf("%w: %q", ErrInvalidMulticastAddress, cfg.MulticastAddress)
	}
	if cfg.BasePort <= 0 || cfg.BasePort+MaxDomainID > 65535 {
		return fmt.Errorf("base port %d out of range", cfg.BasePort)
	}
	if len(cfg.Name) > 255 {
		return ErrInvalidName
	}
	switch cfg.Scheduler {
	case sched.KindParallel, sched.KindCooperative:
	default:
		return fmt.Errorf("unknown scheduler %q", cfg.Scheduler)
	}
	return nil
}

// DiscoveryPort is the multicast port for the configured domain.
func (cfg NodeConfiguration) DiscoveryPort() int {
	return cfg.BasePort + cfg.DomainID
}

// DiscoveryAddress is the multicast group address and port as host:port.
func (cfg NodeConfiguration) DiscoveryAddress() string {
	return net.JoinHostPort(cfg.MulticastAddress, fmt.Sprint(cfg.DiscoveryPort()))
}

func (cfg NodeConfiguration) HeartbeatTimeout() time.Duration {
	return time.Duration(cfg.HeartbeatTimeoutS) * time.Second
}

func (cfg NodeConfiguration) BroadcastInterval() time.Duration {
	return time.Duration(cfg.BroadcastIntervalMs) * time.Millisecond
}

func (cfg NodeConfiguration) HeartbeatPollInterval() time.Duration {
	return time.Duration(cfg.HeartbeatPollIntervalMs) * time.Millisecond
}

// InterfaceAllowed reports whether the named network interface takes part
// in discovery. An empty allow list admits every interface.
func (cfg NodeConfiguration) InterfaceAllowed(name string) bool {
	if len(cfg.Interfaces) == 0 {
		return true
	}
	for _, allowed := range cfg.Interfaces {
		if allowed == name {
			return true
		}
	}
	return false
}
