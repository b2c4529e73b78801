// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package endpoints

import (
	"errors"
	"sort"

	"github.com/rdds/rdds/lib/protocol"
	"github.com/rdds/rdds/lib/sync"
	"github.com/rdds/rdds/lib/transport"
)

var ErrTopicRegistered = errors.New("topic already registered on this node")

// Local holds the writers and readers created on this node, at most one of
// each per topic.
type Local struct {
	writers map[string]*transport.DataWriter
	readers map[string]*transport.DataReader
	mut     sync.RWMutex
}

func NewLocal() *Local {
	return &Local{
		writers: make(map[string]*transport.DataWriter),
		readers: make(map[string]*transport.DataReader),
		mut:     sync.NewRWMutex(),
	}
}

func (t *Local) AddWriter(w *transport.DataWriter) error {
	t.mut.Lock()
	defer t.mut.Unlock()
	if _, ok := t.writers[w.Topic()]; ok {
		return ErrTopicRegistered
	}
	t.writers[w.Topic()] = w
	return nil
}

func (t *Local) AddReader(r *transport.DataReader) error {
	t.mut.Lock()
	defer t.mut.Unlock()
	if _, ok := t.readers[r.Topic()]; ok {
		return ErrTopicRegistered
	}
	t.readers[r.Topic()] = r
	return nil
}

// RemoveWriter unregisters w, if it is the registered writer of its topic.
func (t *Local) RemoveWriter(w *transport.DataWriter) bool {
	t.mut.Lock()
	defer t.mut.Unlock()
	if t.writers[w.Topic()] != w {
		return false
	}
	delete(t.writers, w.Topic())
	return true
}

// RemoveReader unregisters r, if it is the registered reader of its topic.
func (t *Local) RemoveReader(r *transport.DataReader) bool {
	t.mut.Lock()
	defer t.mut.Unlock()
	if t.readers[r.Topic()] != r {
		return false
	}
	delete(t.readers, r.Topic())
	return true
}

func (t *Local) Writer(topic string) (*transport.DataWriter, bool) {
	t.mut.RLock()
	w, ok := t.writers[topic]
	t.mut.RUnlock()
	return w, ok
}

func (t *Local) Reader(topic string) (*transport.DataReader, bool) {
	t.mut.RLock()
	r, ok := t.readers[topic]
	t.mut.RUnlock()
	return r, ok
}

// Notices returns one notice with the given action per local endpoint,
// writers first, each group ordered by topic.
func (t *Local) Notices(action protocol.Action) []protocol.REDP {
	t.mut.RLock()
	res := make([]protocol.REDP, 0, len(t.writers)+len(t.readers))
	for topic, w := range t.writers {
		res = append(res, protocol.REDP{Action: action, Type: protocol.TypeWriter, Guid: w.Guid(), Topic: topic})
	}
	for topic, r := range t.readers {
		res = append(res, protocol.REDP{Action: action, Type: protocol.TypeReader, Guid: r.Guid(), Port: r.Port(), Topic: topic})
	}
	t.mut.RUnlock()

	sort.Slice(res, func(a, b int) bool {
		if res[a].Type != res[b].Type {
			return res[a].Type == protocol.TypeWriter
		}
		return res[a].Topic < res[b].Topic
	})
	return res
}

// Drain unregisters and returns every local endpoint.
func (t *Local) Drain() ([]*transport.DataWriter, []*transport.DataReader) {
	t.mut.Lock()
	defer t.mut.Unlock()
	writers := make([]*transport.DataWriter, 0, len(t.writers))
	for _, w := range t.writers {
		writers = append(writers, w)
	}
	readers := make([]*transport.DataReader, 0, len(t.readers))
	for _, r := range t.readers {
		readers = append(readers, r)
	}
	t.writers = make(map[string]*transport.DataWriter)
	t.readers = make(map[string]*transport.DataReader)
	return writers, readers
}

func (t *Local) Len() int {
	t.mut.RLock()
	defer t.mut.RUnlock()
	return len(t.writers) + len(t.readers)
}
