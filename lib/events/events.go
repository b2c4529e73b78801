// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package events provides event subscription and polling functionality for
// discovery state changes on a node.
package events

import (
	"errors"
	"time"

	"github.com/rdds/rdds/lib/sync"
)

type EventType int64

const (
	Starting EventType = 1 << iota
	NodeDiscovered
	NodeLost
	EndpointDiscovered
	EndpointLost
	LocalEndpointAdded
	LocalEndpointRemoved
	ShutdownStarted

	AllEvents = (1 << iota) - 1
)

func (t EventType) String() string {
	switch t {
	case Starting:
		return "Starting"
	case NodeDiscovered:
		return "NodeDiscovered"
	case NodeLost:
		return "NodeLost"
	case EndpointDiscovered:
		return "EndpointDiscovered"
	case EndpointLost:
		return "EndpointLost"
	case LocalEndpointAdded:
		return "LocalEndpointAdded"
	case LocalEndpointRemoved:
		return "LocalEndpointRemoved"
	case ShutdownStarted:
		return "ShutdownStarted"
	default:
		return "Unknown"
	}
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

const BufferSize = 64

type Event struct {
	// Per-subscription sequential event ID.
	SubscriptionID int `json:"id"`
	// Global ID of the event across all subscriptions.
	GlobalID int         `json:"globalID"`
	Time     time.Time   `json:"time"`
	Type     EventType   `json:"type"`
	Data     interface{} `json:"data"`
}

type Logger interface {
	Log(t EventType, data interface{})
	Subscribe(mask EventType) Subscription
}

type Subscription interface {
	C() <-chan Event
	Poll(timeout time.Duration) (Event, error)
	Unsubscribe()
}

var (
	ErrTimeout = errors.New("timeout")
	ErrClosed  = errors.New("closed")
)

type eventLogger struct {
	subs         []*subscription
	nextGlobalID int
	mutex        sync.Mutex
}

type subscription struct {
	mask   EventType
	events chan Event
	nextID int
	owner  *eventLogger
}

func NewLogger() Logger {
	return &eventLogger{
		mutex: sync.NewMutex(),
	}
}

func (l *eventLogger) Log(t EventType, data interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	dl.Debugln("log", l.nextGlobalID, t, data)
	l.nextGlobalID++

	e := Event{
		GlobalID: l.nextGlobalID,
		Time:     time.Now(),
		Type:     t,
		Data:     data,
	}

	for _, s := range l.subs {
		if s.mask&t == 0 {
			continue
		}
		s.nextID++
		e.SubscriptionID = s.nextID
		select {
		case s.events <- e:
		default:
			// if s.events is not ready, drop the event
		}
	}
}

func (l *eventLogger) Subscribe(mask EventType) Subscription {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	dl.Debugln("subscribe", mask)
	s := &subscription{
		mask:   mask,
		events: make(chan Event, BufferSize),
		owner:  l,
	}
	l.subs = append(l.subs, s)
	return s
}

func (l *eventLogger) unsubscribe(s *subscription) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	dl.Debugln("unsubscribe", s.mask)
	for i, ss := range l.subs {
		if s == ss {
			last := len(l.subs) - 1
			l.subs[i] = l.subs[last]
			l.subs[last] = nil
			l.subs = l.subs[:last]
			close(s.events)
			return
		}
	}
}

// Poll returns an event from the subscription or an error if the poll times
// out or the event channel is closed. Poll should not be called concurrently
// from multiple goroutines for a single subscription.
func (s *subscription) Poll(timeout time.Duration) (Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e, ok := <-s.events:
		if !ok {
			return e, ErrClosed
		}
		return e, nil
	case <-timer.C:
		return Event{}, ErrTimeout
	}
}

func (s *subscription) C() <-chan Event {
	return s.events
}

func (s *subscription) Unsubscribe() {
	s.owner.unsubscribe(s)
}

type noopLogger struct{}

// NoopLogger drops every event. Subscriptions on it never deliver.
var NoopLogger Logger = &noopLogger{}

func (*noopLogger) Log(_ EventType, _ interface{}) {}

func (*noopLogger) Subscribe(_ EventType) Subscription {
	return &noopSubscription{events: make(chan Event)}
}

type noopSubscription struct {
	events chan Event
}

func (s *noopSubscription) C() <-chan Event {
	return s.events
}

func (*noopSubscription) Poll(timeout time.Duration) (Event, error) {
	time.Sleep(timeout)
	return Event{}, ErrTimeout
}

func (*noopSubscription) Unsubscribe() {}
