// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package protocol

import (
	"net"
	"net/netip"
	"os"
	"testing"
)

func TestGuidPacking(t *testing.T) {
	g := Guid{Host: 0xdeadbeef, PID: 0x1234, Entity: 0x0007}
	if v := g.Uint64(); v != 0xdeadbeef12340007 {
		t.Fatalf("Uint64() = %x", v)
	}
	if back := GuidFromUint64(g.Uint64()); back != g {
		t.Errorf("GuidFromUint64(%x) = %v, want %v", g.Uint64(), back, g)
	}
}

func TestGuidOrigin(t *testing.T) {
	node := Guid{Host: 1, PID: 2}
	pub := node.WithEntity(1)
	sub := node.WithEntity(2)
	other := Guid{Host: 1, PID: 3, Entity: 1}

	if !pub.SameOrigin(sub) || !pub.SameOrigin(node) {
		t.Error("endpoints of one node should share an origin")
	}
	if pub.SameOrigin(other) {
		t.Error("different pid should be a different origin")
	}
	if pub == sub {
		t.Error("different entities should not be equal")
	}
}

func TestGuidText(t *testing.T) {
	g := Guid{Host: 0x0a0b0c0d, PID: 42, Entity: 3}
	bs, err := g.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != "0a0b0c0d-002a-0003" {
		t.Errorf("MarshalText() = %s", bs)
	}

	var back Guid
	if err := back.UnmarshalText(bs); err != nil {
		t.Fatal(err)
	}
	if back != g {
		t.Errorf("UnmarshalText() = %v, want %v", back, g)
	}

	if err := back.UnmarshalText([]byte("not a guid")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestNodeGuidInstances(t *testing.T) {
	a := NewNodeGuid(0)
	b := NewNodeGuid(1)
	if a.SameOrigin(b) {
		t.Error("node instances in one process should be distinct origins")
	}
	if a.Entity != 0 || b.Entity != 0 {
		t.Error("node guids should have entity zero")
	}
}

func TestNodeGuidDoesNotAliasNeighbourProcess(t *testing.T) {
	own := NewNodeGuid(0)
	if own.PID != uint16(os.Getpid()) {
		t.Errorf("instance zero PID = %d, want process id %d", own.PID, uint16(os.Getpid()))
	}

	// The first node of process pid+1 would be Guid{Host, pid+1}. Our later
	// instances must neither collide with it systematically nor with each
	// other.
	seen := map[uint16]bool{own.PID: true}
	sequential := true
	for i := uint16(1); i <= 64; i++ {
		g := NewNodeGuid(i)
		if seen[g.PID] {
			t.Fatalf("instance %d reused PID %04x", i, g.PID)
		}
		seen[g.PID] = true
		if g.PID != own.PID+i {
			sequential = false
		}
	}
	if sequential {
		t.Error("instance PIDs follow the process id sequentially")
	}
}

func TestLocator(t *testing.T) {
	var zero Locator
	if zero.IsValid() {
		t.Error("zero locator should be invalid")
	}
	if !(Locator{Port: 1}).IsValid() || !(Locator{IP: [4]byte{10, 0, 0, 1}}).IsValid() {
		t.Error("locator with port or address should be valid")
	}

	l := LocatorFromUDPAddr(&net.UDPAddr{IP: net.ParseIP("192.168.1.20"), Port: 7500})
	want := Locator{Port: 7500, IP: [4]byte{192, 168, 1, 20}}
	if l != want {
		t.Errorf("LocatorFromUDPAddr() = %v, want %v", l, want)
	}
	if l.String() != "192.168.1.20:7500" {
		t.Errorf("String() = %q", l.String())
	}
	if back := LocatorFromUDPAddr(l.UDPAddr()); back != l {
		t.Errorf("UDPAddr round trip = %v", back)
	}
	if got := LocatorFromAddrPort(netip.MustParseAddrPort("[::ffff:192.168.1.20]:7500")); got != want {
		t.Errorf("LocatorFromAddrPort() = %v, want %v", got, want)
	}
	if v6 := LocatorFromUDPAddr(&net.UDPAddr{IP: net.ParseIP("fe80::1"), Port: 1}); v6.IsValid() {
		t.Error("IPv6 address should give the zero locator")
	}
}
