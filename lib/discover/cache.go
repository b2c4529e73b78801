// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package discover

import (
	"sort"
	"time"

	"github.com/rdds/rdds/lib/protocol"
	"github.com/rdds/rdds/lib/sync"
)

// NodeInfo is what is known about a remote node.
type NodeInfo struct {
	Announcement protocol.RNDP
	LastAlive    time.Time
	Locator      protocol.Locator // chosen control locator, may be invalid
}

// Expired returns true when the node has been silent for longer than its
// own heartbeat timeout.
func (n NodeInfo) Expired(now time.Time) bool {
	timeout := time.Duration(n.Announcement.HeartbeatTimeout) * time.Second
	return now.Sub(n.LastAlive) > timeout
}

// The Cache is the table of discovered nodes.
type Cache struct {
	nodes map[protocol.Guid]NodeInfo
	mut   sync.RWMutex
}

func NewCache() *Cache {
	return &Cache{
		nodes: make(map[protocol.Guid]NodeInfo),
		mut:   sync.NewRWMutex(),
	}
}

// Refresh updates the liveness and announcement of a known node. It
// returns false if the node is unknown.
func (c *Cache) Refresh(ann protocol.RNDP, now time.Time) bool {
	c.mut.Lock()
	defer c.mut.Unlock()
	info, ok := c.nodes[ann.Guid]
	if !ok {
		return false
	}
	info.Announcement = ann
	info.LastAlive = now
	c.nodes[ann.Guid] = info
	return true
}

// Add records a new node. It returns false, leaving the table unchanged,
// if the node is already known.
func (c *Cache) Add(info NodeInfo) bool {
	c.mut.Lock()
	defer c.mut.Unlock()
	guid := info.Announcement.Guid
	if _, ok := c.nodes[guid]; ok {
		return false
	}
	c.nodes[guid] = info
	metricNodes.Set(float64(len(c.nodes)))
	return true
}

func (c *Cache) Get(guid protocol.Guid) (NodeInfo, bool) {
	c.mut.RLock()
	info, ok := c.nodes[guid]
	c.mut.RUnlock()
	return info, ok
}

// Expire removes and returns every node that is expired at now.
func (c *Cache) Expire(now time.Time) []NodeInfo {
	c.mut.Lock()
	defer c.mut.Unlock()
	var lost []NodeInfo
	for guid, info := range c.nodes {
		if info.Expired(now) {
			lost = append(lost, info)
			delete(c.nodes, guid)
		}
	}
	if len(lost) > 0 {
		metricNodes.Set(float64(len(c.nodes)))
	}
	return lost
}

// All returns a snapshot of the table ordered by Guid.
func (c *Cache) All() []NodeInfo {
	c.mut.RLock()
	res := make([]NodeInfo, 0, len(c.nodes))
	for _, info := range c.nodes {
		res = append(res, info)
	}
	c.mut.RUnlock()

	sort.Slice(res, func(a, b int) bool {
		return res[a].Announcement.Guid.Uint64() < res[b].Announcement.Guid.Uint64()
	})
	return res
}

// ControlLocators returns the usable control locator of every known node.
func (c *Cache) ControlLocators() []protocol.Locator {
	c.mut.RLock()
	defer c.mut.RUnlock()
	res := make([]protocol.Locator, 0, len(c.nodes))
	for _, info := range c.nodes {
		if info.Locator.IsValid() {
			res = append(res, info.Locator)
		}
	}
	return res
}

func (c *Cache) Len() int {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return len(c.nodes)
}

// Clear empties the table.
func (c *Cache) Clear() {
	c.mut.Lock()
	c.nodes = make(map[protocol.Guid]NodeInfo)
	c.mut.Unlock()
	metricNodes.Set(0)
}
