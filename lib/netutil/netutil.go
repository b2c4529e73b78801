// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package netutil inventories the local IPv4 interfaces taking part in
// discovery and provides the socket options shared by the discovery
// sockets.
package netutil

import (
	"errors"
	"net"
	"net/netip"
)

var ErrNoInterfaces = errors.New("no usable IPv4 interfaces")

// Interface is a local network interface with its IPv4 subnets.
type Interface struct {
	Index int
	Name  string
	Flags net.Flags
	Nets  []netip.Prefix
}

// Contains returns true if addr is inside one of the interface subnets.
func (i Interface) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, n := range i.Nets {
		if n.Contains(addr) {
			return true
		}
	}
	return false
}

// Net returns the underlying interface for use with socket options.
func (i Interface) Net() *net.Interface {
	return &net.Interface{Index: i.Index, Name: i.Name, Flags: i.Flags}
}

// IPv4Interfaces returns every interface that is up, can carry multicast
// (or is the loopback) and has at least one IPv4 address. If allow is
// non-nil only interfaces whose name it accepts are returned.
func IPv4Interfaces(allow func(name string) bool) ([]Interface, error) {
	intfs, err := Interfaces()
	if err != nil {
		return nil, err
	}

	var res []Interface
	for i := range intfs {
		intf := &intfs[i]
		if intf.Flags&net.FlagUp == 0 {
			continue
		}
		if intf.Flags&(net.FlagMulticast|net.FlagLoopback) == 0 {
			continue
		}
		if allow != nil && !allow(intf.Name) {
			continue
		}

		addrs, err := InterfaceAddrsByInterface(intf)
		if err != nil {
			l.Debugln("addresses of", intf.Name, err)
			continue
		}
		nets := ipv4Prefixes(addrs)
		if len(nets) == 0 {
			continue
		}

		res = append(res, Interface{
			Index: intf.Index,
			Name:  intf.Name,
			Flags: intf.Flags,
			Nets:  nets,
		})
	}

	if len(res) == 0 {
		return nil, ErrNoInterfaces
	}
	return res, nil
}

func ipv4Prefixes(addrs []net.Addr) []netip.Prefix {
	var nets []netip.Prefix
	for _, addr := range addrs {
		ipn, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipn.IP.To4()
		if ip4 == nil {
			continue
		}
		ones, bits := ipn.Mask.Size()
		if bits == 128 {
			ones -= 96
		}
		ip, _ := netip.AddrFromSlice(ip4)
		nets = append(nets, netip.PrefixFrom(ip, ones))
	}
	return nets
}

// ByIndex returns the interface with the given index.
func ByIndex(intfs []Interface, index int) (Interface, bool) {
	for _, intf := range intfs {
		if intf.Index == index {
			return intf, true
		}
	}
	return Interface{}, false
}

// Addresses returns the first IPv4 address of every interface, in order.
func Addresses(intfs []Interface) []netip.Addr {
	res := make([]netip.Addr, 0, len(intfs))
	for _, intf := range intfs {
		res = append(res, intf.Nets[0].Addr())
	}
	return res
}

// Covering returns true if any of the interfaces has a subnet containing addr.
func Covering(intfs []Interface, addr netip.Addr) bool {
	for _, intf := range intfs {
		if intf.Contains(addr) {
			return true
		}
	}
	return false
}
