// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package endpoints

import (
	"sort"

	"github.com/rdds/rdds/lib/protocol"
	"github.com/rdds/rdds/lib/sync"
)

// An Endpoint identifies one remote writer or reader.
type Endpoint struct {
	Type    protocol.EndpointType
	Topic   string
	Guid    protocol.Guid
	Locator protocol.Locator // readers only
}

// Discovered holds the remote writers and readers learned from peers. A
// topic key exists only while it has at least one endpoint.
type Discovered struct {
	writers map[string]map[protocol.Guid]struct{}
	readers map[string]map[protocol.Guid]protocol.Locator
	mut     sync.RWMutex
}

func NewDiscovered() *Discovered {
	return &Discovered{
		writers: make(map[string]map[protocol.Guid]struct{}),
		readers: make(map[string]map[protocol.Guid]protocol.Locator),
		mut:     sync.NewRWMutex(),
	}
}

// AddWriter records a remote writer, returning true if it was new.
func (d *Discovered) AddWriter(topic string, guid protocol.Guid) bool {
	d.mut.Lock()
	defer d.mut.Unlock()
	set, ok := d.writers[topic]
	if !ok {
		set = make(map[protocol.Guid]struct{})
		d.writers[topic] = set
	}
	if _, ok := set[guid]; ok {
		return false
	}
	set[guid] = struct{}{}
	d.updateMetrics()
	return true
}

// AddReader records or updates a remote reader, returning true if it was
// new.
func (d *Discovered) AddReader(topic string, guid protocol.Guid, loc protocol.Locator) bool {
	d.mut.Lock()
	defer d.mut.Unlock()
	set, ok := d.readers[topic]
	if !ok {
		set = make(map[protocol.Guid]protocol.Locator)
		d.readers[topic] = set
	}
	_, existed := set[guid]
	set[guid] = loc
	d.updateMetrics()
	return !existed
}

func (d *Discovered) RemoveWriter(topic string, guid protocol.Guid) bool {
	d.mut.Lock()
	defer d.mut.Unlock()
	set, ok := d.writers[topic]
	if !ok {
		return false
	}
	if _, ok := set[guid]; !ok {
		return false
	}
	delete(set, guid)
	if len(set) == 0 {
		delete(d.writers, topic)
	}
	d.updateMetrics()
	return true
}

func (d *Discovered) RemoveReader(topic string, guid protocol.Guid) bool {
	d.mut.Lock()
	defer d.mut.Unlock()
	set, ok := d.readers[topic]
	if !ok {
		return false
	}
	if _, ok := set[guid]; !ok {
		return false
	}
	delete(set, guid)
	if len(set) == 0 {
		delete(d.readers, topic)
	}
	d.updateMetrics()
	return true
}

// RemoveOrigin removes every endpoint created by the same process as
// origin and returns them.
func (d *Discovered) RemoveOrigin(origin protocol.Guid) []Endpoint {
	d.mut.Lock()
	defer d.mut.Unlock()

	var removed []Endpoint
	for topic, set := range d.writers {
		for guid := range set {
			if guid.SameOrigin(origin) {
				removed = append(removed, Endpoint{Type: protocol.TypeWriter, Topic: topic, Guid: guid})
				delete(set, guid)
			}
		}
		if len(set) == 0 {
			delete(d.writers, topic)
		}
	}
	for topic, set := range d.readers {
		for guid, loc := range set {
			if guid.SameOrigin(origin) {
				removed = append(removed, Endpoint{Type: protocol.TypeReader, Topic: topic, Guid: guid, Locator: loc})
				delete(set, guid)
			}
		}
		if len(set) == 0 {
			delete(d.readers, topic)
		}
	}
	if len(removed) > 0 {
		d.updateMetrics()
	}
	return removed
}

// Writers returns the remote writers of topic ordered by Guid.
func (d *Discovered) Writers(topic string) []protocol.Guid {
	d.mut.RLock()
	res := make([]protocol.Guid, 0, len(d.writers[topic]))
	for guid := range d.writers[topic] {
		res = append(res, guid)
	}
	d.mut.RUnlock()
	sortGuids(res)
	return res
}

// Readers returns a copy of the remote readers of topic.
func (d *Discovered) Readers(topic string) map[protocol.Guid]protocol.Locator {
	d.mut.RLock()
	defer d.mut.RUnlock()
	res := make(map[protocol.Guid]protocol.Locator, len(d.readers[topic]))
	for guid, loc := range d.readers[topic] {
		res[guid] = loc
	}
	return res
}

// EachReader calls fn for every remote reader of topic while holding the
// read lock, so that a concurrent removal is either seen before or applied
// after fn.
func (d *Discovered) EachReader(topic string, fn func(protocol.Guid, protocol.Locator)) {
	d.mut.RLock()
	defer d.mut.RUnlock()
	for guid, loc := range d.readers[topic] {
		fn(guid, loc)
	}
}

// Topics returns every topic with at least one remote endpoint, sorted.
func (d *Discovered) Topics() []string {
	d.mut.RLock()
	seen := make(map[string]struct{}, len(d.writers)+len(d.readers))
	for topic := range d.writers {
		seen[topic] = struct{}{}
	}
	for topic := range d.readers {
		seen[topic] = struct{}{}
	}
	d.mut.RUnlock()

	res := make([]string, 0, len(seen))
	for topic := range seen {
		res = append(res, topic)
	}
	sort.Strings(res)
	return res
}

// Clear empties both tables.
func (d *Discovered) Clear() {
	d.mut.Lock()
	d.writers = make(map[string]map[protocol.Guid]struct{})
	d.readers = make(map[string]map[protocol.Guid]protocol.Locator)
	d.updateMetrics()
	d.mut.Unlock()
}

// updateMetrics must be called with the write lock held.
func (d *Discovered) updateMetrics() {
	var writers, readers int
	for _, set := range d.writers {
		writers += len(set)
	}
	for _, set := range d.readers {
		readers += len(set)
	}
	metricDiscovered.WithLabelValues(protocol.TypeWriter.String()).Set(float64(writers))
	metricDiscovered.WithLabelValues(protocol.TypeReader.String()).Set(float64(readers))
}

func sortGuids(gs []protocol.Guid) {
	sort.Slice(gs, func(a, b int) bool {
		return gs[a].Uint64() < gs[b].Uint64()
	})
}
