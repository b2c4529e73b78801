// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package node

import (
	"errors"
	"testing"
	"time"

	"github.com/d4l3k/messagediff"

	"github.com/rdds/rdds/lib/events"
	"github.com/rdds/rdds/lib/protocol"
	"github.com/rdds/rdds/lib/sched"
)

var schedulers = []string{sched.KindParallel, sched.KindCooperative}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("bad", 0)
	cfg.DomainID = 300
	if _, err := New(cfg); err == nil {
		t.Error("domain 300 accepted")
	}

	cfg = testConfig("bad", 0)
	cfg.Scheduler = "green"
	if _, err := New(cfg); err == nil {
		t.Error("unknown scheduler accepted")
	}
}

func TestGuids(t *testing.T) {
	a := newTestNode(t, testConfig("a", 101))
	b := newTestNode(t, testConfig("b", 101))

	if a.Guid().SameOrigin(b.Guid()) {
		t.Error("two nodes in one process share an origin")
	}
	if a.Guid().Entity != 0 {
		t.Errorf("node entity = %d", a.Guid().Entity)
	}

	pub, err := NewPublisher[pose](a, "pose")
	if err != nil {
		t.Fatal(err)
	}
	sub, err := NewSubscriber[pose](a, "cmd", func(pose) {})
	if err != nil {
		t.Fatal(err)
	}
	if pub.Guid() != a.Guid().WithEntity(1) || sub.Guid() != a.Guid().WithEntity(2) {
		t.Errorf("endpoint guids %v, %v", pub.Guid(), sub.Guid())
	}
}

func TestDiscovery(t *testing.T) {
	for i, kind := range schedulers {
		t.Run(kind, func(t *testing.T) {
			evLogger := events.NewLogger()
			sub := evLogger.Subscribe(events.NodeDiscovered)
			defer sub.Unsubscribe()

			cfg := testConfig("watcher", 102+i)
			cfg.Scheduler = kind
			a := newTestNode(t, cfg, WithEvents(evLogger))
			b := newTestNode(t, testConfig("other", 102+i))
			waitDiscovered(t, a, b)

			var info protocol.RNDP
			for _, n := range a.DiscoveredNodes() {
				if n.Announcement.Guid == b.Guid() {
					info = n.Announcement
				}
			}
			if info.Name != "other" || info.HeartbeatTimeout != 5 {
				t.Errorf("announcement = %+v", info)
			}
			if err := b.DiscoveryError(); err != nil {
				t.Errorf("announcing node reports %v", err)
			}

			ev, err := sub.Poll(time.Second)
			if err != nil {
				t.Fatal(err)
			}
			if data := ev.Data.(map[string]interface{}); data["guid"] != b.Guid().String() {
				t.Errorf("event data = %v", data)
			}
		})
	}
}

// Ten messages published on "pose" by one node all reach the subscriber on
// the other, in order.
func TestPoseDelivery(t *testing.T) {
	for i, kind := range schedulers {
		t.Run(kind, func(t *testing.T) {
			a, b := nodePair(t, 104+i, kind)

			got := newCollector[pose]()
			sub, err := NewSubscriber[pose](b, "pose", got.callback)
			if err != nil {
				t.Fatal(err)
			}
			defer sub.Close()

			pub, err := NewPublisher[pose](a, "pose")
			if err != nil {
				t.Fatal(err)
			}
			defer pub.Close()

			eventually(t, func() bool { return len(pub.Readers()) == 1 }, "publisher never learned of the subscriber")

			var sent []pose
			for seq := 0; seq < 10; seq++ {
				msg := pose{X: float64(seq), Y: -float64(seq) / 2, Seq: seq}
				sent = append(sent, msg)
				if err := pub.Publish(msg); err != nil {
					t.Fatal(err)
				}
				time.Sleep(5 * time.Millisecond)
			}

			if diff, equal := messagediff.PrettyDiff(sent, got.wait(t, 10)); !equal {
				t.Errorf("received messages differ. Diff:\n%s", diff)
			}
		})
	}
}

func TestPublishBeforeSubscribe(t *testing.T) {
	a, b := nodePair(t, 106, sched.KindParallel)

	pub, err := NewPublisher[pose](a, "pose")
	if err != nil {
		t.Fatal(err)
	}
	// Nobody listens yet; the publish goes nowhere but succeeds.
	if err := pub.Publish(pose{Seq: -1}); err != nil {
		t.Fatal(err)
	}

	eventually(t, func() bool { return len(b.DiscoveredWriters("pose")) == 1 }, "writer not discovered")

	got := newCollector[pose]()
	sub, err := NewSubscriber[pose](b, "pose", got.callback)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	eventually(t, func() bool { return len(pub.Readers()) == 1 }, "late subscriber not wired")
	if err := pub.Publish(pose{Seq: 1}); err != nil {
		t.Fatal(err)
	}
	if msgs := got.wait(t, 1); msgs[0].Seq != 1 {
		t.Errorf("received %+v", msgs[0])
	}
}

func TestBackfillOnDiscovery(t *testing.T) {
	// Endpoints exist before the nodes know each other.
	a := newTestNode(t, testConfig("a", 107))
	pub, err := NewPublisher[pose](a, "pose")
	if err != nil {
		t.Fatal(err)
	}

	b := newTestNode(t, testConfig("b", 107))
	got := newCollector[pose]()
	if _, err := NewSubscriber[pose](b, "pose", got.callback); err != nil {
		t.Fatal(err)
	}

	waitDiscovered(t, a, b)
	eventually(t, func() bool {
		return len(pub.Readers()) == 1 && len(b.DiscoveredWriters("pose")) == 1
	}, "endpoints not back-filled")

	if err := pub.Publish(pose{Seq: 7}); err != nil {
		t.Fatal(err)
	}
	got.wait(t, 1)
}

func TestTypeMismatchNotDelivered(t *testing.T) {
	a, b := nodePair(t, 108, sched.KindParallel)

	got := newCollector[pose]()
	if _, err := NewSubscriber[pose](b, "motion", got.callback); err != nil {
		t.Fatal(err)
	}
	pub, err := NewPublisher[twist](a, "motion")
	if err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return len(pub.Readers()) == 1 }, "subscriber not wired")

	if err := pub.Publish(twist{pose{Seq: 1}}); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-got.ch:
		t.Errorf("twist delivered to a pose subscriber: %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDuplicateTopicRejected(t *testing.T) {
	n := newTestNode(t, testConfig("dup", 109))

	first, err := NewPublisher[pose](n, "pose")
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewPublisher[pose](n, "pose")
	if !errors.Is(err, ErrTopicRegistered) || second != nil {
		t.Fatalf("second publisher = %v, %v", second, err)
	}
	if err := second.Publish(pose{}); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Publish on rejected handle = %v", err)
	}
	if err := first.Publish(pose{}); err != nil {
		t.Errorf("first publisher disturbed: %v", err)
	}

	sub, err := NewSubscriber[pose](n, "pose", func(pose) {})
	if err != nil {
		t.Fatalf("subscriber on a published topic: %v", err)
	}
	if _, err := NewSubscriber[pose](n, "pose", func(pose) {}); !errors.Is(err, ErrTopicRegistered) {
		t.Errorf("second subscriber = %v", err)
	}

	// The topic is free again once closed.
	first.Close()
	sub.Close()
	if _, err := NewPublisher[pose](n, "pose"); err != nil {
		t.Errorf("publisher after close: %v", err)
	}
}

func TestCloseAnnouncesRemoval(t *testing.T) {
	a, b := nodePair(t, 110, sched.KindCooperative)

	pub, err := NewPublisher[pose](a, "pose")
	if err != nil {
		t.Fatal(err)
	}
	sub, err := NewSubscriber[pose](a, "cmd", func(pose) {})
	if err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		return len(b.DiscoveredWriters("pose")) == 1 && len(b.DiscoveredReaders("cmd")) == 1
	}, "endpoints not discovered")

	if err := pub.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sub.Close(); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		return len(b.DiscoveredTopics()) == 0
	}, "removal not seen by peer")

	if err := pub.Publish(pose{}); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Publish after Close = %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestShutdownRemovesEndpoints(t *testing.T) {
	a, b := nodePair(t, 111, sched.KindParallel)

	pub, err := NewPublisher[pose](a, "pose")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewSubscriber[pose](b, "pose", func(pose) {}); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return len(pub.Readers()) == 1 }, "subscriber not wired")

	if err := b.Shutdown(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-b.Done():
	default:
		t.Error("Done not closed after Shutdown")
	}
	if b.Running() || len(b.DiscoveredNodes()) != 0 || len(b.DiscoveredTopics()) != 0 {
		t.Error("shut down node keeps state")
	}

	// The Remove notice arrives long before the heartbeat would expire.
	eventually(t, func() bool {
		return len(pub.Readers()) == 0 && len(a.DiscoveredReaders("pose")) == 0
	}, "reader removal not received")

	if err := b.Shutdown(); err != nil {
		t.Errorf("second Shutdown = %v", err)
	}
	if _, err := NewPublisher[pose](b, "late"); !errors.Is(err, ErrNodeShutdown) {
		t.Errorf("NewPublisher after Shutdown = %v", err)
	}
}

// crash stops a node without announcing anything, as if the process died.
func crash(n *Node) {
	n.shutdownOnce.Do(func() {
		n.running.Store(false)
		n.cancel()
		ws, rs := n.edp.Local().Drain()
		for _, w := range ws {
			w.Close()
		}
		for _, r := range rs {
			r.Close()
		}
		n.disc.Close()
		n.edp.Close()
		<-n.served
		close(n.done)
	})
}

func TestHeartbeatEvictionCascade(t *testing.T) {
	a := newTestNode(t, testConfig("survivor", 112))
	cfg := testConfig("doomed", 112)
	cfg.HeartbeatTimeoutS = 1
	b := newTestNode(t, cfg)
	waitDiscovered(t, a, b)

	if _, err := NewPublisher[pose](b, "pose"); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSubscriber[pose](b, "cmd", func(pose) {}); err != nil {
		t.Fatal(err)
	}
	pub, err := NewPublisher[pose](a, "cmd")
	if err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		return len(a.DiscoveredWriters("pose")) == 1 && len(pub.Readers()) == 1
	}, "endpoints not discovered")

	crash(b)
	start := time.Now()

	eventually(t, func() bool { return !knows(a, b) }, "crashed node not evicted")
	// Heartbeat timeout plus one poll interval, with scheduling slack.
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("eviction took %v", elapsed)
	}

	if len(a.DiscoveredTopics()) != 0 {
		t.Errorf("endpoints of the evicted node remain: %v", a.DiscoveredTopics())
	}
	if len(pub.Readers()) != 0 {
		t.Error("local writer still targets the evicted reader")
	}
}

func TestSubscriberCallbackMayPublish(t *testing.T) {
	a, b := nodePair(t, 113, sched.KindCooperative)

	echoed := newCollector[pose]()
	if _, err := NewSubscriber[pose](a, "echo", echoed.callback); err != nil {
		t.Fatal(err)
	}
	echo, err := NewPublisher[pose](b, "echo")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewSubscriber[pose](b, "ping", func(p pose) {
		p.Seq++
		echo.Publish(p)
	}); err != nil {
		t.Fatal(err)
	}
	ping, err := NewPublisher[pose](a, "ping")
	if err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		return len(ping.Readers()) == 1 && len(echo.Readers()) == 1
	}, "endpoints not wired")

	if err := ping.Publish(pose{Seq: 41}); err != nil {
		t.Fatal(err)
	}
	if msgs := echoed.wait(t, 1); msgs[0].Seq != 42 {
		t.Errorf("echo = %+v", msgs[0])
	}
}
