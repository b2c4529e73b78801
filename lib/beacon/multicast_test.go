// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package beacon

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/rdds/rdds/lib/netutil"
)

func testInterfaces(t *testing.T) []netutil.Interface {
	t.Helper()
	intfs, err := netutil.IPv4Interfaces(nil)
	if err != nil {
		t.Skip("no IPv4 interfaces:", err)
	}
	return intfs
}

func TestMulticastLoop(t *testing.T) {
	intfs := testInterfaces(t)
	group := netip.MustParseAddrPort("239.255.0.75:7749")

	a, err := NewMulticast(context.Background(), group, intfs)
	if errors.Is(err, ErrNoJoin) {
		t.Skip(err)
	} else if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	// A second member on the same host must be able to share the port.
	b, err := NewMulticast(context.Background(), group, intfs)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	payload := []byte("RNDP-test-payload")
	if n, err := a.Send(payload, intfs); err != nil || n == 0 {
		t.Skip("multicast send not possible here:", err)
	}

	got := make(chan Packet, 1)
	go func() {
		for {
			p, err := b.Recv()
			if err != nil {
				return
			}
			if bytes.Equal(p.Data, payload) {
				p.Data = bytes.Clone(p.Data)
				got <- p
				return
			}
		}
	}()

	select {
	case p := <-got:
		if !p.Src.IsValid() {
			t.Error("source address missing")
		}
	case <-time.After(2 * time.Second):
		t.Skip("multicast loopback not delivered on this host")
	}
}

func TestWakeUnblocksRecv(t *testing.T) {
	intfs := testInterfaces(t)
	m, err := NewMulticast(context.Background(), netip.MustParseAddrPort("239.255.0.75:7750"), intfs)
	if errors.Is(err, ErrNoJoin) {
		t.Skip(err)
	} else if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		for {
			p, err := m.Recv()
			if err != nil {
				done <- err
				return
			}
			if bytes.Equal(p.Data, netutil.WakeMessage) {
				done <- nil
				return
			}
		}
	}()

	m.Wake()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		// The wake datagram may land on another socket sharing the
		// port; closing must still unblock.
		m.Close()
		if err := <-done; !errors.Is(err, net.ErrClosed) {
			t.Errorf("Recv after close = %v", err)
		}
		return
	}
	m.Close()
}

func TestSendErrorRemembered(t *testing.T) {
	intfs := testInterfaces(t)
	m, err := NewMulticast(context.Background(), netip.MustParseAddrPort("239.255.0.75:7751"), intfs)
	if errors.Is(err, ErrNoJoin) {
		t.Skip(err)
	} else if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.Error() != nil {
		t.Fatal("fresh socket reports a send error")
	}

	gone := []netutil.Interface{{Index: 1 << 20, Name: "gone0", Flags: net.FlagUp | net.FlagMulticast}}
	if _, err := m.Send([]byte("x"), gone); err == nil {
		t.Skip("send on a nonexistent interface succeeded")
	}
	if m.Error() == nil {
		t.Error("failed round not remembered")
	}

	// A round with nothing to send on is not a failure.
	if _, err := m.Send([]byte("x"), nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Error(); err != nil {
		t.Errorf("error not cleared: %v", err)
	}
}
