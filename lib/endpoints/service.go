// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/rdds/rdds/lib/events"
	"github.com/rdds/rdds/lib/netutil"
	"github.com/rdds/rdds/lib/protocol"
	"github.com/rdds/rdds/lib/sched"
	"github.com/rdds/rdds/lib/svcutil"
)

// A PeerLister knows the control locators of the currently known nodes.
type PeerLister interface {
	ControlLocators() []protocol.Locator
}

const maxNotice = protocol.REDPHeaderSize + 255

// The Service owns the control socket. It applies received notices to the
// discovered tables and to the local writers, and sends notices about the
// local endpoints.
type Service struct {
	self       protocol.Guid
	conn       *net.UDPConn
	port       uint16
	local      *Local
	discovered *Discovered
	sched      sched.Scheduler
	evLogger   events.Logger
	peers      atomic.Pointer[PeerLister]
}

func NewService(self protocol.Guid, s sched.Scheduler, evLogger events.Logger) (*Service, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("control socket: %w", err)
	}
	return &Service{
		self:       self,
		conn:       conn,
		port:       uint16(conn.LocalAddr().(*net.UDPAddr).Port),
		local:      NewLocal(),
		discovered: NewDiscovered(),
		sched:      s,
		evLogger:   evLogger,
	}, nil
}

// Port is the control port advertised in node announcements.
func (s *Service) Port() uint16 { return s.port }

func (s *Service) Local() *Local { return s.local }

func (s *Service) Discovered() *Discovered { return s.discovered }

// SetPeers sets the source of peer locators used by Announce.
func (s *Service) SetPeers(p PeerLister) {
	s.peers.Store(&p)
}

// Spawn starts the listener duty and returns a function stopping it.
func (s *Service) Spawn() (stop func()) {
	return s.sched.Spawn("endpoints.listener", s.listener)
}

func (s *Service) listener(ctx context.Context) error {
	buf := make([]byte, maxNotice+1)
	for {
		var n int
		var src *net.UDPAddr
		var err error
		s.sched.Block(ctx, func() {
			n, src, err = s.conn.ReadFromUDP(buf)
		})
		if ctx.Err() != nil {
			return svcutil.NoRestartErr(ctx.Err())
		}
		if errors.Is(err, net.ErrClosed) {
			return svcutil.NoRestartErr(err)
		}
		if err != nil {
			l.Debugln("control receive:", err)
			return err
		}
		s.handle(buf[:n], src)
	}
}

// handle applies one notice received from src.
func (s *Service) handle(bs []byte, src *net.UDPAddr) {
	var msg protocol.REDP
	if err := msg.UnmarshalBinary(bs); err != nil {
		metricNoticesRecv.WithLabelValues("malformed").Inc()
		l.Debugf("dropping %d byte datagram from %v: %v", len(bs), src, err)
		return
	}
	if msg.Guid.SameOrigin(s.self) {
		metricNoticesRecv.WithLabelValues("self").Inc()
		return
	}
	metricNoticesRecv.WithLabelValues(msg.Action.String()).Inc()
	l.Debugf("notice from %v: %v %v %v on %q", src, msg.Action, msg.Type, msg.Guid, msg.Topic)

	switch {
	case msg.Action == protocol.ActionAdd && msg.Type == protocol.TypeWriter:
		if s.discovered.AddWriter(msg.Topic, msg.Guid) {
			s.logEndpoint(events.EndpointDiscovered, Endpoint{Type: msg.Type, Topic: msg.Topic, Guid: msg.Guid})
		}

	case msg.Action == protocol.ActionAdd && msg.Type == protocol.TypeReader:
		loc := protocol.LocatorFromUDPAddr(src).WithPort(msg.Port)
		if !loc.IsValid() || msg.Port == 0 {
			l.Debugln("reader notice without usable locator from", src)
			return
		}
		isNew := s.discovered.AddReader(msg.Topic, msg.Guid, loc)
		if w, ok := s.local.Writer(msg.Topic); ok {
			w.Add(msg.Guid, loc)
		}
		if isNew {
			s.logEndpoint(events.EndpointDiscovered, Endpoint{Type: msg.Type, Topic: msg.Topic, Guid: msg.Guid, Locator: loc})
		}

	case msg.Action == protocol.ActionRemove && msg.Type == protocol.TypeWriter:
		if s.discovered.RemoveWriter(msg.Topic, msg.Guid) {
			s.logEndpoint(events.EndpointLost, Endpoint{Type: msg.Type, Topic: msg.Topic, Guid: msg.Guid})
		}

	case msg.Action == protocol.ActionRemove && msg.Type == protocol.TypeReader:
		removed := s.discovered.RemoveReader(msg.Topic, msg.Guid)
		if w, ok := s.local.Writer(msg.Topic); ok {
			w.Remove(msg.Guid)
		}
		if removed {
			s.logEndpoint(events.EndpointLost, Endpoint{Type: msg.Type, Topic: msg.Topic, Guid: msg.Guid})
		}
	}
}

// RemoveOrigin forgets every remote endpoint of the process that created
// origin, detaching its readers from the local writers.
func (s *Service) RemoveOrigin(origin protocol.Guid) {
	for _, ep := range s.discovered.RemoveOrigin(origin) {
		if ep.Type == protocol.TypeReader {
			if w, ok := s.local.Writer(ep.Topic); ok {
				w.Remove(ep.Guid)
			}
		}
		s.logEndpoint(events.EndpointLost, ep)
	}
}

// SeedWriter adds every known remote reader of the writer's topic to it.
func (s *Service) SeedWriter(topic string) {
	w, ok := s.local.Writer(topic)
	if !ok {
		return
	}
	s.discovered.EachReader(topic, w.Add)
}

// Announce sends msg to every known node.
func (s *Service) Announce(msg protocol.REDP) {
	p := s.peers.Load()
	if p == nil {
		return
	}
	bs, err := msg.MarshalBinary()
	if err != nil {
		l.Warnln("Encoding endpoint notice:", err)
		return
	}
	for _, loc := range (*p).ControlLocators() {
		s.send(bs, loc, msg.Action)
	}
}

// Backfill sends an Add notice for every local endpoint to the node at loc.
func (s *Service) Backfill(loc protocol.Locator) {
	notices := s.local.Notices(protocol.ActionAdd)
	l.Debugf("back-filling %v with %d endpoints", loc, len(notices))
	for _, msg := range notices {
		bs, err := msg.MarshalBinary()
		if err != nil {
			l.Warnln("Encoding endpoint notice:", err)
			continue
		}
		s.send(bs, loc, msg.Action)
	}
}

func (s *Service) send(bs []byte, loc protocol.Locator, action protocol.Action) {
	if _, err := s.conn.WriteToUDP(bs, loc.UDPAddr()); err != nil {
		l.Debugln("notice to", loc, err)
		return
	}
	metricNoticesSent.WithLabelValues(action.String()).Inc()
}

func (s *Service) logEndpoint(t events.EventType, ep Endpoint) {
	data := map[string]interface{}{
		"type":  ep.Type.String(),
		"topic": ep.Topic,
		"guid":  ep.Guid.String(),
	}
	if ep.Locator.IsValid() {
		data["locator"] = ep.Locator.String()
	}
	s.evLogger.Log(t, data)
}

// Wake unblocks the listener with a datagram to the control port.
func (s *Service) Wake() {
	netutil.Wake(s.conn.LocalAddr())
}

func (s *Service) Close() error {
	return s.conn.Close()
}
