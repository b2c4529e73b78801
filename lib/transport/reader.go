// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rdds/rdds/lib/netutil"
	"github.com/rdds/rdds/lib/protocol"
)

// A DataReader owns one inbound socket on an ephemeral port and accepts
// frames for exactly its topic and type.
type DataReader struct {
	guid   protocol.Guid
	header frameHeader
	conn   *net.UDPConn
	port   uint16
	closed atomic.Bool
	buf    []byte

	// Senders whose frames did not match, reported once each.
	mismatched *lru.Cache[netip.AddrPort, struct{}]
}

const mismatchedSources = 64

func NewDataReader(guid protocol.Guid, topic, typeName string) (*DataReader, error) {
	h := frameHeader{topic: topic, typeName: typeName}
	if err := h.validate(); err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("reader socket: %w", err)
	}
	registerTopicMetrics(topic)

	mismatched, err := lru.New[netip.AddrPort, struct{}](mismatchedSources)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &DataReader{
		guid:       guid,
		header:     h,
		conn:       conn,
		port:       uint16(conn.LocalAddr().(*net.UDPAddr).Port),
		buf:        make([]byte, maxDatagram),
		mismatched: mismatched,
	}, nil
}

func (r *DataReader) Guid() protocol.Guid { return r.guid }
func (r *DataReader) Topic() string       { return r.header.topic }
func (r *DataReader) TypeName() string    { return r.header.typeName }

// Port is the data port advertised to writers.
func (r *DataReader) Port() uint16 { return r.port }

// Read blocks for one datagram. It returns a copy of the payload when the
// datagram is a frame for this reader's topic and type, ErrDiscarded for
// anything else, and net.ErrClosed once the reader is closed. Read must not
// be called concurrently.
func (r *DataReader) Read() ([]byte, error) {
	if r.closed.Load() {
		return nil, net.ErrClosed
	}

	n, src, err := r.conn.ReadFromUDPAddrPort(r.buf)
	if r.closed.Load() {
		return nil, net.ErrClosed
	}
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, net.ErrClosed
		}
		return nil, err
	}

	payload, err := r.header.match(r.buf[:n])
	if err != nil {
		metricDiscardedFrames.WithLabelValues(r.header.topic).Inc()
		if errors.Is(err, errFrameMismatch) && !r.mismatched.Contains(src) {
			r.mismatched.Add(src, struct{}{})
			l.Infof("Reader %v on %q ignoring frames from %v: %v", r.guid, r.header.topic, src, err)
		} else {
			l.Debugf("reader %v on %q: dropping %d byte datagram from %v: %v", r.guid, r.header.topic, n, src, err)
		}
		return nil, ErrDiscarded
	}

	metricRecvFrames.WithLabelValues(r.header.topic).Inc()
	metricRecvBytes.WithLabelValues(r.header.topic).Add(float64(len(payload)))

	res := make([]byte, len(payload))
	copy(res, payload)
	return res, nil
}

// Close marks the reader closed, wakes a blocked Read with a datagram to
// its own port and closes the socket.
func (r *DataReader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	netutil.Wake(r.conn.LocalAddr())
	return r.conn.Close()
}

func (r *DataReader) String() string {
	return fmt.Sprintf("DataReader@%v(%q, %q, port %d)", r.guid, r.header.topic, r.header.typeName, r.port)
}
