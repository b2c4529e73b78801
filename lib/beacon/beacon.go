// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package beacon sends and receives datagrams on an IPv4 multicast group,
// one send per local interface, with the arrival interface reported for
// every received datagram.
package beacon

import (
	"errors"
	"net/netip"
	stdsync "sync"
)

// maxDatagram is the largest UDP payload over IPv4.
const maxDatagram = 65507

var ErrNoJoin = errors.New("could not join the multicast group on any interface")

// A Packet is one received datagram.
type Packet struct {
	Data    []byte
	Src     netip.AddrPort
	IfIndex int // zero when the platform gives no arrival interface
}

type errorHolder struct {
	err error
	mut stdsync.Mutex
}

func (e *errorHolder) setError(err error) {
	e.mut.Lock()
	e.err = err
	e.mut.Unlock()
}

// Error returns the last send error, or nil after a successful send.
func (e *errorHolder) Error() error {
	e.mut.Lock()
	err := e.err
	e.mut.Unlock()
	return err
}
