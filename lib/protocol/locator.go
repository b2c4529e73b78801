// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package protocol

import (
	"fmt"
	"net"
	"net/netip"
)

// A Locator is an IPv4 address and UDP port where a node or endpoint can
// be reached.
type Locator struct {
	Port uint16
	IP   [4]byte
}

// LocatorFromUDPAddr returns the locator for an IPv4 UDP address. The zero
// Locator is returned for anything else.
func LocatorFromUDPAddr(addr *net.UDPAddr) Locator {
	if addr == nil {
		return Locator{}
	}
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return Locator{}
	}
	var l Locator
	copy(l.IP[:], ip4)
	l.Port = uint16(addr.Port)
	return l
}

// LocatorFromAddrPort is like LocatorFromUDPAddr for netip values.
func LocatorFromAddrPort(ap netip.AddrPort) Locator {
	addr := ap.Addr().Unmap()
	if !addr.Is4() {
		return Locator{}
	}
	return Locator{Port: ap.Port(), IP: addr.As4()}
}

// IsValid is false only for the all-zero locator.
func (l Locator) IsValid() bool {
	return l != Locator{}
}

func (l Locator) Addr() netip.Addr {
	return netip.AddrFrom4(l.IP)
}

func (l Locator) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(l.Addr(), l.Port)
}

func (l Locator) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(l.IP[0], l.IP[1], l.IP[2], l.IP[3]), Port: int(l.Port)}
}

// WithPort returns a copy of the locator with the port replaced.
func (l Locator) WithPort(port uint16) Locator {
	l.Port = port
	return l
}

func (l Locator) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", l.IP[0], l.IP[1], l.IP[2], l.IP[3], l.Port)
}
