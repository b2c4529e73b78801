// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package protocol implements the identity primitives and the discovery
// wire formats exchanged between nodes.
package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"os"

	"github.com/rdds/rdds/lib/sync"
)

// Guid identifies a node or one of its endpoints. Host and PID together
// name the originating process; Entity is zero for the node itself and
// unique per endpoint within the node.
type Guid struct {
	Host   uint32
	PID    uint16
	Entity uint16
}

// GuidFromUint64 unpacks the 64-bit wire representation.
func GuidFromUint64(v uint64) Guid {
	return Guid{
		Host:   uint32(v >> 32),
		PID:    uint16(v >> 16),
		Entity: uint16(v),
	}
}

// Uint64 packs the Guid as host<<32 | pid<<16 | entity.
func (g Guid) Uint64() uint64 {
	return uint64(g.Host)<<32 | uint64(g.PID)<<16 | uint64(g.Entity)
}

// SameOrigin returns true when both Guids were created by the same process.
func (g Guid) SameOrigin(other Guid) bool {
	return g.Host == other.Host && g.PID == other.PID
}

// WithEntity returns a Guid of the same origin with the given entity.
func (g Guid) WithEntity(entity uint16) Guid {
	g.Entity = entity
	return g
}

func (g Guid) IsZero() bool {
	return g == Guid{}
}

func (g Guid) String() string {
	return fmt.Sprintf("%08x-%04x-%04x", g.Host, g.PID, g.Entity)
}

func (g Guid) GoString() string {
	return g.String()
}

func (g Guid) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Guid) UnmarshalText(bs []byte) error {
	var host uint32
	var pid, entity uint16
	if _, err := fmt.Sscanf(string(bs), "%08x-%04x-%04x", &host, &pid, &entity); err != nil {
		return fmt.Errorf("parsing guid %q: %w", bs, err)
	}
	*g = Guid{Host: host, PID: pid, Entity: entity}
	return nil
}

// NewNodeGuid returns the Guid of a node in this process. Instance zero
// uses the process id. Later instances draw a random PID that differs from
// the process id and from every PID already handed out here, so they do not
// alias the first node of a process whose id happens to be close to ours.
func NewNodeGuid(instance uint16) Guid {
	pid := uint16(os.Getpid())
	if instance != 0 {
		pid = salts.next(pid)
	}
	return Guid{Host: hostID, PID: pid}
}

var salts = &pidSalts{mut: sync.NewMutex(), used: make(map[uint16]struct{})}

type pidSalts struct {
	mut  sync.Mutex
	used map[uint16]struct{}
}

func (s *pidSalts) next(own uint16) uint16 {
	s.mut.Lock()
	defer s.mut.Unlock()
	for {
		pid := binary.BigEndian.Uint16(randomBytes(2))
		if _, ok := s.used[pid]; ok || pid == own {
			continue
		}
		s.used[pid] = struct{}{}
		return pid
	}
}

var hostID = localHostID()

// localHostID takes the low four bytes of the first hardware address found
// on a non-loopback interface, falling back to random bytes.
func localHostID() uint32 {
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) < 4 {
				continue
			}
			hw := iface.HardwareAddr
			return binary.BigEndian.Uint32(hw[len(hw)-4:])
		}
	}

	return binary.BigEndian.Uint32(randomBytes(4))
}

func randomBytes(n int) []byte {
	bs := make([]byte, n)
	if _, err := rand.Read(bs); err != nil {
		panic("protocol: random source failed: " + err.Error())
	}
	return bs
}
