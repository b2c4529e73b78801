// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package netutil

import "net"

// WakeMessage is the payload of a wake datagram. It never parses as any
// protocol message.
var WakeMessage = []byte("WAKE")

// Wake sends one datagram to the local UDP socket bound at addr so that a
// receive blocked on it returns.
func Wake(addr net.Addr) {
	ua, ok := addr.(*net.UDPAddr)
	if !ok {
		return
	}
	dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: ua.Port}
	if ua.IP != nil && !ua.IP.IsUnspecified() {
		dst.IP = ua.IP
	}
	conn, err := net.DialUDP("udp4", nil, dst)
	if err != nil {
		l.Debugln("wake:", err)
		return
	}
	defer conn.Close()
	if _, err := conn.Write(WakeMessage); err != nil {
		l.Debugln("wake:", err)
	}
}
