// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/d4l3k/messagediff"

	"github.com/rdds/rdds/lib/sched"
)

func TestDefaultValues(t *testing.T) {
	expected := NodeConfiguration{
		Name:                    "robot",
		DomainID:                0,
		HeartbeatTimeoutS:       5,
		BroadcastIntervalMs:     25,
		HeartbeatPollIntervalMs: 500,
		MulticastAddress:        "239.255.0.75",
		BasePort:                7500,
		Interfaces:              []string{},
		Scheduler:               sched.KindParallel,
	}

	cfg := New("robot")
	if diff, equal := messagediff.PrettyDiff(expected, cfg); !equal {
		t.Errorf("Default config differs. Diff:\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDerivedValues(t *testing.T) {
	cfg := New("robot")
	cfg.DomainID = 42

	if got := cfg.DiscoveryPort(); got != 7542 {
		t.Errorf("DiscoveryPort() = %d, want 7542", got)
	}
	if got := cfg.DiscoveryAddress(); got != "239.255.0.75:7542" {
		t.Errorf("DiscoveryAddress() = %q", got)
	}
	if got := cfg.BroadcastInterval(); got != 25*time.Millisecond {
		t.Errorf("BroadcastInterval() = %v", got)
	}
	if got := cfg.HeartbeatPollInterval(); got != 500*time.Millisecond {
		t.Errorf("HeartbeatPollInterval() = %v", got)
	}
	if got := cfg.HeartbeatTimeout(); got != 5*time.Second {
		t.Errorf("HeartbeatTimeout() = %v", got)
	}
}

func TestReadYAMLKeepsDefaults(t *testing.T) {
	doc := `
name: arm-controller
domainID: 7
interfaces: [eth0]
scheduler: cooperative
`
	cfg, err := ReadYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}

	expected := NodeConfiguration{
		Name:                    "arm-controller",
		DomainID:                7,
		HeartbeatTimeoutS:       5,
		BroadcastIntervalMs:     25,
		HeartbeatPollIntervalMs: 500,
		MulticastAddress:        "239.255.0.75",
		BasePort:                7500,
		Interfaces:              []string{"eth0"},
		Scheduler:               sched.KindCooperative,
	}
	if diff, equal := messagediff.PrettyDiff(expected, cfg); !equal {
		t.Errorf("Parsed config differs. Diff:\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*NodeConfiguration)
		err    error
	}{
		{"domain too large", func(c *NodeConfiguration) { c.DomainID = 256 }, ErrInvalidDomain},
		{"domain negative", func(c *NodeConfiguration) { c.DomainID = -1 }, ErrInvalidDomain},
		{"zero heartbeat", func(c *NodeConfiguration) { c.HeartbeatTimeoutS = 0 }, ErrInvalidHeartbeatTimeout},
		{"heartbeat too large", func(c *NodeConfiguration) { c.HeartbeatTimeoutS = 300 }, ErrInvalidHeartbeatTimeout},
		{"zero broadcast", func(c *NodeConfiguration) { c.BroadcastIntervalMs = 0 }, ErrInvalidInterval},
		{"zero poll", func(c *NodeConfiguration) { c.HeartbeatPollIntervalMs = 0 }, ErrInvalidInterval},
		{"unicast group", func(c *NodeConfiguration) { c.MulticastAddress = "192.0.2.1" }, ErrInvalidMulticastAddress},
		{"ipv6 group", func(c *NodeConfiguration) { c.MulticastAddress = "ff02::1" }, ErrInvalidMulticastAddress},
		{"long name", func(c *NodeConfiguration) { c.Name = strings.Repeat("x", 256) }, ErrInvalidName},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New("robot")
			tc.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tc.err) {
				t.Errorf("Validate() = %v, want %v", err, tc.err)
			}
		})
	}

	cfg := New("robot")
	cfg.Scheduler = "fibers"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown scheduler should not validate")
	}
}

func TestInterfaceAllowed(t *testing.T) {
	cfg := New("robot")
	if !cfg.InterfaceAllowed("wlan0") {
		t.Error("empty allow list should admit every interface")
	}
	cfg.Interfaces = []string{"eth0", "eth1"}
	if !cfg.InterfaceAllowed("eth1") {
		t.Error("eth1 should be allowed")
	}
	if cfg.InterfaceAllowed("wlan0") {
		t.Error("wlan0 should not be allowed")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := New("lidar")
	cfg.DomainID = 3
	cfg.HeartbeatTimeoutS = 10

	var buf bytes.Buffer
	if err := cfg.WriteYAML(&buf); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "rdds.yaml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff, equal := messagediff.PrettyDiff(cfg, loaded); !equal {
		t.Errorf("Loaded config differs. Diff:\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() = %v, want ErrNotExist", err)
	}
}
