// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package discover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/rdds/rdds/lib/beacon"
	"github.com/rdds/rdds/lib/config"
	"github.com/rdds/rdds/lib/events"
	"github.com/rdds/rdds/lib/netutil"
	"github.com/rdds/rdds/lib/protocol"
	"github.com/rdds/rdds/lib/sched"
	"github.com/rdds/rdds/lib/svcutil"
)

// Hooks are called from the listener and heartbeat duties.
type Hooks struct {
	// NewNode is called once for every newly discovered node that has a
	// usable control locator.
	NewNode func(NodeInfo)
	// NodeLost is called for every node evicted after its heartbeat
	// timeout.
	NodeLost func(NodeInfo)
}

// The Service owns the multicast socket and runs the broadcaster, listener
// and heartbeat monitor duties.
type Service struct {
	self     protocol.Guid
	announce []byte
	cfg      config.NodeConfiguration

	sched    sched.Scheduler
	clock    clock.Clock
	cache    *Cache
	evLogger events.Logger
	hooks    Hooks

	intfs []netutil.Interface
	mc    *beacon.Multicast

	sendErrLog rate.Sometimes
	clashLog   rate.Sometimes
}

// NewService joins the discovery group of the configured domain and
// prepares the announcement for the node self, whose control port is given.
func NewService(ctx context.Context, cfg config.NodeConfiguration, self protocol.Guid, controlPort uint16, s sched.Scheduler, evLogger events.Logger, hooks Hooks) (*Service, error) {
	intfs, err := netutil.IPv4Interfaces(cfg.InterfaceAllowed)
	if err != nil {
		return nil, err
	}

	group, err := netip.ParseAddr(cfg.MulticastAddress)
	if err != nil {
		return nil, fmt.Errorf("multicast address: %w", err)
	}
	mc, err := beacon.NewMulticast(ctx, netip.AddrPortFrom(group, uint16(cfg.DiscoveryPort())), intfs)
	if err != nil {
		return nil, err
	}

	ann := protocol.RNDP{
		Guid:             self,
		HeartbeatTimeout: uint8(cfg.HeartbeatTimeoutS),
		Name:             cfg.Name,
	}
	for _, addr := range netutil.Addresses(intfs) {
		ann.Locators = append(ann.Locators, protocol.Locator{Port: controlPort, IP: addr.As4()})
	}
	bs, err := ann.MarshalBinary()
	if err != nil {
		mc.Close()
		return nil, fmt.Errorf("announcement: %w", err)
	}

	l.Debugf("discovery for %v on %s via %d interfaces, locators %v", self, cfg.DiscoveryAddress(), len(intfs), ann.Locators)

	return &Service{
		self:       self,
		announce:   bs,
		cfg:        cfg,
		sched:      s,
		clock:      s.Clock(),
		cache:      NewCache(),
		evLogger:   evLogger,
		hooks:      hooks,
		intfs:      intfs,
		mc:         mc,
		sendErrLog: rate.Sometimes{First: 1, Interval: 30 * time.Second},
		clashLog:   rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}, nil
}

// Cache is the table of discovered nodes.
func (s *Service) Cache() *Cache {
	return s.cache
}

// Interfaces returns the interfaces taking part in discovery.
func (s *Service) Interfaces() []netutil.Interface {
	return s.intfs
}

// SendError returns the error of the last announcement round, or nil when
// it reached at least one interface.
func (s *Service) SendError() error {
	if s.mc == nil {
		return nil
	}
	return s.mc.Error()
}

// Spawn starts the three discovery duties on the scheduler and returns a
// function stopping them.
func (s *Service) Spawn() (stop func()) {
	stops := []func(){
		s.sched.Spawn("discover.broadcaster", s.broadcaster),
		s.sched.Spawn("discover.listener", s.listener),
		s.sched.Spawn("discover.heartbeat", s.heartbeat),
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

func (s *Service) broadcaster(ctx context.Context) error {
	interval := s.cfg.BroadcastInterval()
	for {
		n, err := s.mc.Send(s.announce, s.intfs)
		if err != nil {
			s.sendErrLog.Do(func() {
				l.Infoln("Sending announcement:", err)
			})
		}
		metricAnnouncementsSent.Add(float64(n))

		if err := s.sched.Sleep(ctx, interval); err != nil {
			return svcutil.NoRestartErr(err)
		}
	}
}

func (s *Service) listener(ctx context.Context) error {
	for {
		var pkt beacon.Packet
		var err error
		s.sched.Block(ctx, func() {
			pkt, err = s.mc.Recv()
		})
		if ctx.Err() != nil {
			return svcutil.NoRestartErr(ctx.Err())
		}
		if errors.Is(err, net.ErrClosed) {
			return svcutil.NoRestartErr(err)
		}
		if err != nil {
			l.Debugln("discovery receive:", err)
			return err
		}
		s.handle(pkt)
	}
}

// handle processes one datagram from the discovery group.
func (s *Service) handle(pkt beacon.Packet) {
	var ann protocol.RNDP
	if err := ann.UnmarshalBinary(pkt.Data); err != nil {
		metricAnnouncementsRecv.WithLabelValues(resultMalformed).Inc()
		l.Debugf("dropping %d byte datagram from %v: %v", len(pkt.Data), pkt.Src, err)
		return
	}
	if ann.Guid == s.self {
		if bytes.Equal(pkt.Data, s.announce) {
			metricAnnouncementsRecv.WithLabelValues(resultSelf).Inc()
			return
		}
		// Same identity, different announcement: another node uses our Guid.
		metricAnnouncementsRecv.WithLabelValues(resultClash).Inc()
		s.clashLog.Do(func() {
			l.Warnf("Node %q at %v announces our identity %v; peers cannot tell us apart", ann.Name, pkt.Src, s.self)
		})
		return
	}

	now := s.clock.Now()
	if s.cache.Refresh(ann, now) {
		metricAnnouncementsRecv.WithLabelValues(resultRefresh).Inc()
		return
	}

	info := NodeInfo{
		Announcement: ann,
		LastAlive:    now,
		Locator:      selectLocator(ann.Locators, pkt.Src.Addr(), pkt.IfIndex, s.intfs),
	}
	if !s.cache.Add(info) {
		return
	}
	metricAnnouncementsRecv.WithLabelValues(resultNew).Inc()

	l.Infof("Discovered node %v (%q) at %v", ann.Guid, ann.Name, info.Locator)
	s.evLogger.Log(events.NodeDiscovered, map[string]interface{}{
		"guid":    ann.Guid.String(),
		"name":    ann.Name,
		"locator": info.Locator.String(),
	})

	if !info.Locator.IsValid() {
		l.Infof("Node %v (%q) advertises no locator reachable from here", ann.Guid, ann.Name)
		return
	}
	if s.hooks.NewNode != nil {
		s.hooks.NewNode(info)
	}
}

func (s *Service) heartbeat(ctx context.Context) error {
	interval := s.cfg.HeartbeatPollInterval()
	for {
		if err := s.sched.Sleep(ctx, interval); err != nil {
			return svcutil.NoRestartErr(err)
		}
		s.expire()
	}
}

// expire evicts the nodes whose heartbeat has lapsed.
func (s *Service) expire() {
	for _, info := range s.cache.Expire(s.clock.Now()) {
		metricNodesLost.Inc()
		ann := info.Announcement
		l.Infof("Lost node %v (%q), silent since %v", ann.Guid, ann.Name, info.LastAlive.Format(time.RFC3339))
		s.evLogger.Log(events.NodeLost, map[string]interface{}{
			"guid": ann.Guid.String(),
			"name": ann.Name,
		})
		if s.hooks.NodeLost != nil {
			s.hooks.NodeLost(info)
		}
	}
}

// Wake unblocks the listener.
func (s *Service) Wake() {
	s.mc.Wake()
}

func (s *Service) Close() error {
	return s.mc.Close()
}
