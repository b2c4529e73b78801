// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package transport

import (
	"fmt"
	"net"
	"sort"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"

	"github.com/rdds/rdds/lib/protocol"
)

// A DataWriter owns one outbound socket and the set of readers that want
// its topic. Write never waits on a reader; delivery is best effort.
type DataWriter struct {
	guid   protocol.Guid
	header frameHeader
	conn   net.PacketConn
	closed atomic.Bool

	// Readers are far more frequent than target changes.
	mut     *xsync.RBMutex
	targets map[protocol.Guid]*net.UDPAddr

	errLog rate.Sometimes
}

func NewDataWriter(guid protocol.Guid, topic, typeName string) (*DataWriter, error) {
	h := frameHeader{topic: topic, typeName: typeName}
	if err := h.validate(); err != nil {
		return nil, err
	}

	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("writer socket: %w", err)
	}
	registerTopicMetrics(topic)

	return &DataWriter{
		guid:    guid,
		header:  h,
		conn:    conn,
		mut:     xsync.NewRBMutex(),
		targets: make(map[protocol.Guid]*net.UDPAddr),
		errLog:  rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}, nil
}

func (w *DataWriter) Guid() protocol.Guid { return w.guid }
func (w *DataWriter) Topic() string       { return w.header.topic }
func (w *DataWriter) TypeName() string    { return w.header.typeName }

// Add registers or updates the reader identified by guid.
func (w *DataWriter) Add(guid protocol.Guid, loc protocol.Locator) {
	addr := loc.UDPAddr()
	w.mut.Lock()
	w.targets[guid] = addr
	n := len(w.targets)
	w.mut.Unlock()

	metricTargets.WithLabelValues(w.header.topic).Set(float64(n))
	l.Debugf("writer %v on %q: added reader %v at %v", w.guid, w.header.topic, guid, loc)
}

// Remove drops the reader identified by guid, returning whether it was
// present.
func (w *DataWriter) Remove(guid protocol.Guid) bool {
	w.mut.Lock()
	_, ok := w.targets[guid]
	delete(w.targets, guid)
	n := len(w.targets)
	w.mut.Unlock()

	if ok {
		metricTargets.WithLabelValues(w.header.topic).Set(float64(n))
		l.Debugf("writer %v on %q: removed reader %v", w.guid, w.header.topic, guid)
	}
	return ok
}

// Targets returns the Guids of the current readers, sorted.
func (w *DataWriter) Targets() []protocol.Guid {
	t := w.mut.RLock()
	res := make([]protocol.Guid, 0, len(w.targets))
	for g := range w.targets {
		res = append(res, g)
	}
	w.mut.RUnlock(t)

	sort.Slice(res, func(a, b int) bool {
		return res[a].Uint64() < res[b].Uint64()
	})
	return res
}

// Write frames the payload once and sends it to every current reader.
// Failed sends are counted and logged, not returned; an error is only
// returned for an unusable payload or a closed writer.
func (w *DataWriter) Write(payload []byte) error {
	if w.closed.Load() {
		return net.ErrClosed
	}
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}

	frame := w.header.appendFrame(make([]byte, 0, w.header.size()+len(payload)), payload)
	topic := w.header.topic

	t := w.mut.RLock()
	defer w.mut.RUnlock(t)
	for guid, addr := range w.targets {
		if _, err := w.conn.WriteTo(frame, addr); err != nil {
			metricSendErrors.WithLabelValues(topic).Inc()
			w.errLog.Do(func() {
				l.Infof("Sending %q to reader %v at %v: %v", topic, guid, addr, err)
			})
			continue
		}
		metricSentFrames.WithLabelValues(topic).Inc()
		metricSentBytes.WithLabelValues(topic).Add(float64(len(frame)))
	}
	return nil
}

func (w *DataWriter) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	metricTargets.DeleteLabelValues(w.header.topic)
	return w.conn.Close()
}

func (w *DataWriter) String() string {
	return fmt.Sprintf("DataWriter@%v(%q, %q)", w.guid, w.header.topic, w.header.typeName)
}
