// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package beacon

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/rdds/rdds/lib/netutil"
)

// Multicast is a joined IPv4 multicast group. The receiving socket is bound
// to the group port with address reuse so that several nodes on a host can
// share it; sends go out through a separate ephemeral socket.
type Multicast struct {
	errorHolder
	group *net.UDPAddr

	recv  net.PacketConn
	precv *ipv4.PacketConn

	send  net.PacketConn
	psend *ipv4.PacketConn

	buf []byte
}

// NewMulticast joins group on every given interface. At least one join
// must succeed.
func NewMulticast(ctx context.Context, group netip.AddrPort, intfs []netutil.Interface) (*Multicast, error) {
	gaddr := net.UDPAddrFromAddrPort(group)

	lc := netutil.ReuseListenConfig()
	recv, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("0.0.0.0:%d", group.Port()))
	if err != nil {
		return nil, fmt.Errorf("listen on group port: %w", err)
	}
	precv := ipv4.NewPacketConn(recv)

	joined := 0
	for _, intf := range intfs {
		if err := precv.JoinGroup(intf.Net(), &net.UDPAddr{IP: gaddr.IP}); err != nil {
			l.Debugln("IPv4 join", intf.Name, "failed:", err)
			continue
		}
		l.Debugln("IPv4 join", intf.Name, "success")
		joined++
	}
	if joined == 0 {
		recv.Close()
		return nil, ErrNoJoin
	}
	if err := precv.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		// Not supported everywhere; locator selection then falls back to
		// the source address.
		l.Debugln("control messages:", err)
	}

	send, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("open send socket: %w", err)
	}
	psend := ipv4.NewPacketConn(send)
	_ = psend.SetMulticastTTL(1)
	_ = psend.SetMulticastLoopback(true)

	return &Multicast{
		group: gaddr,
		recv:  recv,
		precv: precv,
		send:  send,
		psend: psend,
		buf:   make([]byte, maxDatagram),
	}, nil
}

// Send writes bs to the group once per interface, sourced from that
// interface. It returns the number of successful sends; an error is
// returned only when every send failed.
func (m *Multicast) Send(bs []byte, intfs []netutil.Interface) (int, error) {
	var lastErr error
	success := 0
	for _, intf := range intfs {
		if err := m.psend.SetMulticastInterface(intf.Net()); err != nil {
			l.Debugln(err, "selecting", intf.Name)
			lastErr = err
			continue
		}
		m.send.SetWriteDeadline(time.Now().Add(time.Second))
		_, err := m.psend.WriteTo(bs, nil, m.group)
		m.send.SetWriteDeadline(time.Time{})
		if err != nil {
			l.Debugln(err, "on write to", m.group, intf.Name)
			lastErr = err
			continue
		}
		success++
	}
	if success == 0 && lastErr != nil {
		m.setError(lastErr)
		return 0, lastErr
	}
	m.setError(nil)
	return success, nil
}

// Recv blocks for the next datagram on the group port. The returned data is
// only valid until the next call.
func (m *Multicast) Recv() (Packet, error) {
	n, cm, src, err := m.precv.ReadFrom(m.buf)
	if err != nil {
		return Packet{}, err
	}

	p := Packet{Data: m.buf[:n]}
	if ua, ok := src.(*net.UDPAddr); ok {
		p.Src = ua.AddrPort()
	}
	if cm != nil {
		p.IfIndex = cm.IfIndex
	}
	return p, nil
}

// LocalAddr is the address of the receiving socket.
func (m *Multicast) LocalAddr() net.Addr {
	return m.recv.LocalAddr()
}

// Wake unblocks a pending Recv with a datagram to the group port.
func (m *Multicast) Wake() {
	netutil.Wake(m.recv.LocalAddr())
}

func (m *Multicast) Close() error {
	err := m.recv.Close()
	if serr := m.send.Close(); err == nil {
		err = serr
	}
	return err
}
