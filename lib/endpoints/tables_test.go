// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package endpoints

import (
	"errors"
	"testing"

	"github.com/d4l3k/messagediff"

	"github.com/rdds/rdds/lib/protocol"
	"github.com/rdds/rdds/lib/transport"
)

var nodeGuid = protocol.Guid{Host: 0x10, PID: 1}

func newWriter(t *testing.T, entity uint16, topic string) *transport.DataWriter {
	t.Helper()
	w, err := transport.NewDataWriter(nodeGuid.WithEntity(entity), topic, "T")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func newReader(t *testing.T, entity uint16, topic string) *transport.DataReader {
	t.Helper()
	r, err := transport.NewDataReader(nodeGuid.WithEntity(entity), topic, "T")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestLocalDuplicateRejected(t *testing.T) {
	tbl := NewLocal()
	first := newWriter(t, 1, "pose")
	second := newWriter(t, 2, "pose")

	if err := tbl.AddWriter(first); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AddWriter(second); !errors.Is(err, ErrTopicRegistered) {
		t.Errorf("duplicate AddWriter() = %v", err)
	}
	if w, _ := tbl.Writer("pose"); w != first {
		t.Error("duplicate registration replaced the first writer")
	}
	if tbl.RemoveWriter(second) {
		t.Error("removing the rejected writer must not touch the registered one")
	}
	if w, _ := tbl.Writer("pose"); w != first {
		t.Error("first writer lost")
	}

	// A reader for the same topic is a separate registration.
	r := newReader(t, 3, "pose")
	if err := tbl.AddReader(r); err != nil {
		t.Errorf("reader on a published topic: %v", err)
	}
	if err := tbl.AddReader(newReader(t, 4, "pose")); !errors.Is(err, ErrTopicRegistered) {
		t.Errorf("duplicate AddReader() = %v", err)
	}
}

func TestLocalNoticesAndDrain(t *testing.T) {
	tbl := NewLocal()
	tbl.AddWriter(newWriter(t, 2, "scan"))
	tbl.AddWriter(newWriter(t, 1, "odom"))
	r := newReader(t, 3, "cmd")
	tbl.AddReader(r)

	expected := []protocol.REDP{
		{Action: protocol.ActionAdd, Type: protocol.TypeWriter, Guid: nodeGuid.WithEntity(1), Topic: "odom"},
		{Action: protocol.ActionAdd, Type: protocol.TypeWriter, Guid: nodeGuid.WithEntity(2), Topic: "scan"},
		{Action: protocol.ActionAdd, Type: protocol.TypeReader, Guid: nodeGuid.WithEntity(3), Port: r.Port(), Topic: "cmd"},
	}
	if diff, equal := messagediff.PrettyDiff(expected, tbl.Notices(protocol.ActionAdd)); !equal {
		t.Errorf("Notices() differs. Diff:\n%s", diff)
	}

	writers, readers := tbl.Drain()
	if len(writers) != 2 || len(readers) != 1 {
		t.Errorf("Drain() = %d writers, %d readers", len(writers), len(readers))
	}
	if tbl.Len() != 0 {
		t.Error("Drain() left endpoints registered")
	}
}

func TestDiscoveredTables(t *testing.T) {
	d := NewDiscovered()
	peerA := protocol.Guid{Host: 1, PID: 1}
	peerB := protocol.Guid{Host: 2, PID: 1}
	locA := protocol.Locator{Port: 5000, IP: [4]byte{10, 0, 0, 1}}

	if !d.AddWriter("pose", peerA.WithEntity(1)) || d.AddWriter("pose", peerA.WithEntity(1)) {
		t.Error("AddWriter should report only new writers")
	}
	if !d.AddReader("pose", peerA.WithEntity(2), locA) {
		t.Error("AddReader should report a new reader")
	}
	if d.AddReader("pose", peerA.WithEntity(2), locA.WithPort(5001)) {
		t.Error("updating a reader is not new")
	}
	if got := d.Readers("pose")[peerA.WithEntity(2)]; got != locA.WithPort(5001) {
		t.Errorf("reader locator = %v after update", got)
	}

	d.AddWriter("scan", peerB.WithEntity(1))
	d.AddReader("scan", peerB.WithEntity(2), locA)

	if diff, equal := messagediff.PrettyDiff([]string{"pose", "scan"}, d.Topics()); !equal {
		t.Errorf("Topics() differs. Diff:\n%s", diff)
	}

	if d.RemoveWriter("pose", peerB.WithEntity(1)) {
		t.Error("removing an unknown writer should report false")
	}
	if !d.RemoveWriter("pose", peerA.WithEntity(1)) {
		t.Error("RemoveWriter failed")
	}
	if !d.RemoveReader("pose", peerA.WithEntity(2)) {
		t.Error("RemoveReader failed")
	}

	// Empty topics are erased.
	if diff, equal := messagediff.PrettyDiff([]string{"scan"}, d.Topics()); !equal {
		t.Errorf("Topics() after removal differs. Diff:\n%s", diff)
	}
	if len(d.Writers("pose")) != 0 || len(d.Readers("pose")) != 0 {
		t.Error("pose endpoints remain")
	}
}

func TestDiscoveredRemoveOrigin(t *testing.T) {
	d := NewDiscovered()
	dead := protocol.Guid{Host: 7, PID: 100}
	sameHostOtherProcess := protocol.Guid{Host: 7, PID: 101}
	loc := protocol.Locator{Port: 1, IP: [4]byte{10, 0, 0, 7}}

	d.AddWriter("pose", dead.WithEntity(1))
	d.AddWriter("pose", sameHostOtherProcess.WithEntity(1))
	d.AddReader("scan", dead.WithEntity(2), loc)
	d.AddReader("cmd", dead.WithEntity(3), loc)

	removed := d.RemoveOrigin(dead)
	if len(removed) != 3 {
		t.Fatalf("RemoveOrigin() removed %v", removed)
	}

	if diff, equal := messagediff.PrettyDiff([]protocol.Guid{sameHostOtherProcess.WithEntity(1)}, d.Writers("pose")); !equal {
		t.Errorf("surviving writers differ. Diff:\n%s", diff)
	}
	if diff, equal := messagediff.PrettyDiff([]string{"pose"}, d.Topics()); !equal {
		t.Errorf("Topics() differs. Diff:\n%s", diff)
	}

	d.Clear()
	if len(d.Topics()) != 0 {
		t.Error("Clear() left topics")
	}
}
