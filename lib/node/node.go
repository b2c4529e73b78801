// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package node ties discovery and transport together into a node, the unit
// that applications create publishers and subscribers on.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	stdsync "sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/rdds/rdds/lib/config"
	"github.com/rdds/rdds/lib/discover"
	"github.com/rdds/rdds/lib/endpoints"
	"github.com/rdds/rdds/lib/events"
	"github.com/rdds/rdds/lib/protocol"
	"github.com/rdds/rdds/lib/sched"
	"github.com/rdds/rdds/lib/svcutil"
)

var (
	ErrInvalidHandle   = errors.New("invalid publisher or subscriber")
	ErrNodeShutdown    = errors.New("node is shut down")
	ErrTopicRegistered = endpoints.ErrTopicRegistered
	ErrUnknownSched    = errors.New("unknown scheduler")
)

// instances counts the nodes created by this process; it separates their
// Guids.
var instances atomic.Uint32

// A Node is Running from construction until Shutdown.
type Node struct {
	cfg      config.NodeConfiguration
	guid     protocol.Guid
	sched    sched.Scheduler
	evLogger events.Logger

	disc *discover.Service
	edp  *endpoints.Service

	entity  atomic.Uint32
	running atomic.Bool

	cancel context.CancelFunc
	served chan struct{}
	done   chan struct{}

	shutdownOnce stdsync.Once
	shutdownErr  error
}

// New creates a node and starts its discovery duties.
func New(cfg config.NodeConfiguration, opts ...Option) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.sched == nil {
		s, ok := sched.New(cfg.Scheduler, o.clock)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSched, cfg.Scheduler)
		}
		o.sched = s
	}
	if o.evLogger == nil {
		o.evLogger = events.NewLogger()
	}

	n := &Node{
		cfg:      cfg,
		guid:     protocol.NewNodeGuid(uint16(instances.Add(1) - 1)),
		sched:    o.sched,
		evLogger: o.evLogger,
		served:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	edp, err := endpoints.NewService(n.guid, n.sched, n.evLogger)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	disc, err := discover.NewService(ctx, cfg, n.guid, edp.Port(), n.sched, n.evLogger, discover.Hooks{
		NewNode: func(info discover.NodeInfo) {
			edp.Backfill(info.Locator)
		},
		NodeLost: func(info discover.NodeInfo) {
			edp.RemoveOrigin(info.Announcement.Guid)
		},
	})
	if err != nil {
		cancel()
		edp.Close()
		return nil, err
	}
	edp.SetPeers(disc.Cache())
	n.edp = edp
	n.disc = disc
	n.cancel = cancel

	disc.Spawn()
	edp.Spawn()
	if len(o.signals) > 0 {
		n.sched.Spawn("node.signals", n.signalHandler(o.signals))
	}

	n.running.Store(true)
	go func() {
		defer close(n.served)
		if err := n.sched.Serve(ctx); err != nil && !svcutil.IsCancelled(err) {
			l.Warnln("Scheduler:", err)
		}
	}()

	l.Infof("Node %v (%q) running in domain %d with %s scheduler", n.guid, cfg.Name, cfg.DomainID, cfg.Scheduler)
	n.evLogger.Log(events.Starting, map[string]interface{}{
		"guid":   n.guid.String(),
		"name":   cfg.Name,
		"domain": cfg.DomainID,
	})
	return n, nil
}

func (n *Node) signalHandler(sigs []os.Signal) sched.Task {
	return func(ctx context.Context) error {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, sigs...)
		defer signal.Stop(ch)

		var sig os.Signal
		n.sched.Block(ctx, func() {
			select {
			case sig = <-ch:
			case <-ctx.Done():
			}
		})
		if sig != nil {
			l.Infoln("Received", sig, "; shutting down")
			// Shutdown waits for this duty to return.
			go n.Shutdown()
		}
		return svcutil.NoRestartErr(nil)
	}
}

// Shutdown announces the removal of every local endpoint to every known
// node, stops all duties and releases every socket. It is safe to call
// more than once; later calls return the first result.
func (n *Node) Shutdown() error {
	n.shutdownOnce.Do(func() {
		n.shutdownErr = n.shutdown()
		close(n.done)
	})
	return n.shutdownErr
}

func (n *Node) shutdown() error {
	l.Debugln("shutting down", n.guid)
	n.evLogger.Log(events.ShutdownStarted, map[string]interface{}{
		"guid": n.guid.String(),
	})

	var closers []interface{ Close() error }
	n.sched.Do(func() {
		for _, msg := range n.edp.Local().Notices(protocol.ActionRemove) {
			n.edp.Announce(msg)
		}
		ws, rs := n.edp.Local().Drain()
		for _, w := range ws {
			closers = append(closers, w)
		}
		for _, r := range rs {
			closers = append(closers, r)
		}
		n.running.Store(false)
	})

	// Every blocked receiver gets one datagram on its own socket, then the
	// sockets are closed in case the datagram was taken by another socket
	// sharing the port.
	n.disc.Wake()
	n.edp.Wake()
	n.cancel()

	var err error
	for _, c := range closers {
		err = multierr.Append(err, c.Close())
	}
	err = multierr.Append(err, n.disc.Close())
	err = multierr.Append(err, n.edp.Close())

	<-n.served

	n.disc.Cache().Clear()
	n.edp.Discovered().Clear()
	l.Infof("Node %v (%q) shut down", n.guid, n.cfg.Name)
	return err
}

// Done is closed once Shutdown has completed.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

func (n *Node) Running() bool {
	return n.running.Load()
}

func (n *Node) Guid() protocol.Guid {
	return n.guid
}

func (n *Node) Name() string {
	return n.cfg.Name
}

func (n *Node) Config() config.NodeConfiguration {
	return n.cfg
}

// Events returns the event logger the node logs to.
func (n *Node) Events() events.Logger {
	return n.evLogger
}

// DiscoveredNodes returns the currently known remote nodes.
func (n *Node) DiscoveredNodes() []discover.NodeInfo {
	return n.disc.Cache().All()
}

// DiscoveryError returns the error of the last failed announcement round,
// or nil once announcements go out again.
func (n *Node) DiscoveryError() error {
	return n.disc.SendError()
}

// DiscoveredWriters returns the known remote writers of topic.
func (n *Node) DiscoveredWriters(topic string) []protocol.Guid {
	return n.edp.Discovered().Writers(topic)
}

// DiscoveredReaders returns the known remote readers of topic.
func (n *Node) DiscoveredReaders(topic string) map[protocol.Guid]protocol.Locator {
	return n.edp.Discovered().Readers(topic)
}

// DiscoveredTopics returns every topic with a known remote endpoint.
func (n *Node) DiscoveredTopics() []string {
	return n.edp.Discovered().Topics()
}

func (n *Node) nextGuid() protocol.Guid {
	return n.guid.WithEntity(uint16(n.entity.Add(1)))
}

func (n *Node) String() string {
	return fmt.Sprintf("Node@%v(%q)", n.guid, n.cfg.Name)
}
