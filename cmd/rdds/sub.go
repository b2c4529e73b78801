// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rdds/rdds/lib/node"
)

type subCommand struct {
	Topic    string        `arg:"" help:"Topic to subscribe to"`
	Count    int           `default:"0" help:"Exit after this many messages (0 for no limit)"`
	Duration time.Duration `default:"0s" help:"Exit after this long (0 for no limit)"`
}

func (c *subCommand) Run(ctx Context) error {
	n, err := startNode(ctx.cfg)
	if err != nil {
		return err
	}
	defer n.Shutdown()

	limit := newMessageLimit(c.Count)
	sub, err := node.NewSubscriber[textMessage](n, c.Topic, func(msg textMessage) {
		if !limit.take() {
			return
		}
		fmt.Printf("%s: %s\n", c.Topic, msg.Msg.GetValue())
	})
	if err != nil {
		return err
	}
	defer sub.Close()

	var timeout <-chan time.Time
	if c.Duration > 0 {
		timeout = time.After(c.Duration)
	}
	select {
	case <-limit.reached:
	case <-timeout:
	case <-n.Done():
	}
	return nil
}

// messageLimit admits at most limit messages; zero means no limit. reached
// is closed when the last admitted message is taken.
type messageLimit struct {
	limit   int64
	seen    atomic.Int64
	reached chan struct{}
}

func newMessageLimit(limit int) *messageLimit {
	m := &messageLimit{limit: int64(limit)}
	if limit > 0 {
		m.reached = make(chan struct{})
	}
	return m
}

func (m *messageLimit) take() bool {
	if m.limit == 0 {
		return true
	}
	n := m.seen.Add(1)
	if n == m.limit {
		close(m.reached)
	}
	return n <= m.limit
}
