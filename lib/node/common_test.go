// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package node

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rdds/rdds/lib/beacon"
	"github.com/rdds/rdds/lib/config"
	"github.com/rdds/rdds/lib/netutil"
)

type pose struct {
	X, Y float64
	Seq  int
}

func (pose) TypeName() string { return "test.Pose" }

func (p pose) Marshal() ([]byte, error) {
	return []byte(fmt.Sprintf("%d %g %g", p.Seq, p.X, p.Y)), nil
}

func (p *pose) Unmarshal(bs []byte) error {
	_, err := fmt.Sscanf(string(bs), "%d %g %g", &p.Seq, &p.X, &p.Y)
	return err
}

// twist has the same encoding as pose under another type name.
type twist struct{ pose }

func (twist) TypeName() string { return "test.Twist" }

const discoveryTimeout = 5 * time.Second

func testConfig(name string, domain int) config.NodeConfiguration {
	cfg := config.New(name)
	cfg.DomainID = domain
	return cfg
}

// newTestNode creates a node, skipping the test when the host has no
// network usable for multicast.
func newTestNode(t *testing.T, cfg config.NodeConfiguration, opts ...Option) *Node {
	t.Helper()
	n, err := New(cfg, opts...)
	if errors.Is(err, netutil.ErrNoInterfaces) || errors.Is(err, beacon.ErrNoJoin) {
		t.Skip("no multicast capable network:", err)
	}
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { n.Shutdown() })
	return n
}

// nodePair returns two nodes in the same domain that have discovered each
// other.
func nodePair(t *testing.T, domain int, kind string) (*Node, *Node) {
	t.Helper()
	a := testConfig("a", domain)
	a.Scheduler = kind
	b := testConfig("b", domain)
	b.Scheduler = kind
	na := newTestNode(t, a)
	nb := newTestNode(t, b)
	waitDiscovered(t, na, nb)
	return na, nb
}

func knows(n, other *Node) bool {
	for _, info := range n.DiscoveredNodes() {
		if info.Announcement.Guid == other.Guid() && info.Locator.IsValid() {
			return true
		}
	}
	return false
}

func waitDiscovered(t *testing.T, a, b *Node) {
	t.Helper()
	deadline := time.Now().Add(discoveryTimeout)
	for time.Now().Before(deadline) {
		if knows(a, b) && knows(b, a) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Skip("nodes did not discover each other; multicast loopback unavailable")
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond, msg)
}

// collector gathers delivered messages.
type collector[T any] struct {
	ch chan T
}

func newCollector[T any]() *collector[T] {
	return &collector[T]{ch: make(chan T, 100)}
}

func (c *collector[T]) callback(msg T) {
	c.ch <- msg
}

func (c *collector[T]) wait(t *testing.T, n int) []T {
	t.Helper()
	var res []T
	timeout := time.After(5 * time.Second)
	for len(res) < n {
		select {
		case msg := <-c.ch:
			res = append(res, msg)
		case <-timeout:
			t.Fatalf("received %d of %d messages", len(res), n)
		}
	}
	return res
}
