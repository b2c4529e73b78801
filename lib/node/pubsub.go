// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/rdds/rdds/lib/events"
	"github.com/rdds/rdds/lib/protocol"
	"github.com/rdds/rdds/lib/svcutil"
	"github.com/rdds/rdds/lib/transport"
)

// A Message can be published. TypeName must not depend on the value; it is
// called on the zero value to name the type on the wire.
type Message interface {
	TypeName() string
	Marshal() ([]byte, error)
}

// A Publisher sends messages of type T on one topic.
type Publisher[T Message] struct {
	node   *Node
	writer *transport.DataWriter
	closed atomic.Bool
}

// NewPublisher registers a writer for topic on the node and announces it
// to every known node. A second publisher for the same topic on the same
// node is rejected with ErrTopicRegistered.
func NewPublisher[T Message](n *Node, topic string) (*Publisher[T], error) {
	if !n.Running() {
		return nil, ErrNodeShutdown
	}
	var zero T
	typeName := zero.TypeName()

	if _, ok := n.edp.Local().Writer(topic); ok {
		return nil, ErrTopicRegistered
	}
	w, err := transport.NewDataWriter(n.nextGuid(), topic, typeName)
	if err != nil {
		return nil, err
	}

	n.sched.Do(func() {
		if !n.running.Load() {
			err = ErrNodeShutdown
			return
		}
		if err = n.edp.Local().AddWriter(w); err != nil {
			return
		}
		// Readers discovered before this writer existed.
		n.edp.SeedWriter(topic)
		n.edp.Announce(protocol.REDP{Action: protocol.ActionAdd, Type: protocol.TypeWriter, Guid: w.Guid(), Topic: topic})
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	l.Debugf("%v: publisher %v on %q (%s)", n, w.Guid(), topic, typeName)
	n.evLogger.Log(events.LocalEndpointAdded, localEndpointData(protocol.TypeWriter, w.Guid(), topic, typeName))
	return &Publisher[T]{node: n, writer: w}, nil
}

// Publish sends msg to every reader of the topic currently known. Delivery
// is best effort.
func (p *Publisher[T]) Publish(msg T) error {
	if p == nil || p.writer == nil || p.closed.Load() {
		return ErrInvalidHandle
	}
	bs, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("marshal %s: %w", p.writer.TypeName(), err)
	}
	p.node.sched.Do(func() {
		err = p.writer.Write(bs)
	})
	if errors.Is(err, net.ErrClosed) {
		return ErrInvalidHandle
	}
	return err
}

func (p *Publisher[T]) Topic() string {
	return p.writer.Topic()
}

func (p *Publisher[T]) Guid() protocol.Guid {
	return p.writer.Guid()
}

// Readers returns the Guids of the readers the publisher sends to.
func (p *Publisher[T]) Readers() []protocol.Guid {
	return p.writer.Targets()
}

// Close unregisters the publisher and announces its removal.
func (p *Publisher[T]) Close() error {
	if p == nil || p.writer == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	n, w := p.node, p.writer
	n.sched.Do(func() {
		if n.edp.Local().RemoveWriter(w) {
			n.edp.Announce(protocol.REDP{Action: protocol.ActionRemove, Type: protocol.TypeWriter, Guid: w.Guid(), Topic: w.Topic()})
		}
	})
	n.evLogger.Log(events.LocalEndpointRemoved, localEndpointData(protocol.TypeWriter, w.Guid(), w.Topic(), w.TypeName()))
	return w.Close()
}

// A Subscriber receives messages of type T on one topic and hands each to
// its callback. The callbacks of one subscriber run one at a time, outside
// of protocol code, so a callback may publish.
type Subscriber[T any] struct {
	node   *Node
	reader *transport.DataReader
	stop   func()
	closed atomic.Bool
}

// NewSubscriber registers a reader for topic on the node, announces it to
// every known node and starts delivering to callback. A second subscriber
// for the same topic on the same node is rejected with ErrTopicRegistered.
func NewSubscriber[T any, PT interface {
	*T
	Message
	Unmarshal([]byte) error
}](n *Node, topic string, callback func(T)) (*Subscriber[T], error) {
	if !n.Running() {
		return nil, ErrNodeShutdown
	}
	if callback == nil {
		return nil, errors.New("nil callback")
	}
	var zero T
	typeName := PT(&zero).TypeName()

	if _, ok := n.edp.Local().Reader(topic); ok {
		return nil, ErrTopicRegistered
	}
	r, err := transport.NewDataReader(n.nextGuid(), topic, typeName)
	if err != nil {
		return nil, err
	}

	n.sched.Do(func() {
		if !n.running.Load() {
			err = ErrNodeShutdown
			return
		}
		if err = n.edp.Local().AddReader(r); err != nil {
			return
		}
		n.edp.Announce(protocol.REDP{Action: protocol.ActionAdd, Type: protocol.TypeReader, Guid: r.Guid(), Port: r.Port(), Topic: topic})
	})
	if err != nil {
		r.Close()
		return nil, err
	}

	s := &Subscriber[T]{node: n, reader: r}
	s.stop = n.sched.Spawn(fmt.Sprintf("subscriber %q", topic), func(ctx context.Context) error {
		return receive[T, PT](ctx, n, r, callback)
	})

	l.Debugf("%v: subscriber %v on %q (%s), port %d", n, r.Guid(), topic, typeName, r.Port())
	n.evLogger.Log(events.LocalEndpointAdded, localEndpointData(protocol.TypeReader, r.Guid(), topic, typeName))
	return s, nil
}

// receive reads from r until it is closed, delivering every payload that
// decodes.
func receive[T any, PT interface {
	*T
	Message
	Unmarshal([]byte) error
}](ctx context.Context, n *Node, r *transport.DataReader, callback func(T)) error {
	for {
		var data []byte
		var err error
		n.sched.Block(ctx, func() {
			data, err = r.Read()
		})
		switch {
		case errors.Is(err, net.ErrClosed) || ctx.Err() != nil:
			return svcutil.NoRestartErr(nil)
		case errors.Is(err, transport.ErrDiscarded):
			continue
		case err != nil:
			l.Debugln(r, "read:", err)
			continue
		}

		var msg T
		if err := PT(&msg).Unmarshal(data); err != nil {
			l.Debugf("%v: dropping undecodable %d byte payload: %v", r, len(data), err)
			continue
		}
		n.sched.Block(ctx, func() {
			callback(msg)
		})
	}
}

func (s *Subscriber[T]) Topic() string {
	return s.reader.Topic()
}

func (s *Subscriber[T]) Guid() protocol.Guid {
	return s.reader.Guid()
}

// Port is the data port publishers send to.
func (s *Subscriber[T]) Port() uint16 {
	return s.reader.Port()
}

// Close unregisters the subscriber, announces its removal and waits for a
// running callback to return. It must not be called from the callback.
func (s *Subscriber[T]) Close() error {
	if s == nil || s.reader == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	n, r := s.node, s.reader
	n.sched.Do(func() {
		if n.edp.Local().RemoveReader(r) {
			n.edp.Announce(protocol.REDP{Action: protocol.ActionRemove, Type: protocol.TypeReader, Guid: r.Guid(), Port: r.Port(), Topic: r.Topic()})
		}
	})
	n.evLogger.Log(events.LocalEndpointRemoved, localEndpointData(protocol.TypeReader, r.Guid(), r.Topic(), r.TypeName()))
	err := r.Close()
	s.stop()
	return err
}

func localEndpointData(typ protocol.EndpointType, guid protocol.Guid, topic, typeName string) map[string]interface{} {
	return map[string]interface{}{
		"type":     typ.String(),
		"guid":     guid.String(),
		"topic":    topic,
		"typeName": typeName,
	}
}
