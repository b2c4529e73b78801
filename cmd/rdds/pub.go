// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rdds/rdds/lib/node"
)

type textMessage = node.ProtoMessage[*wrapperspb.StringValue]

type pubCommand struct {
	Topic    string        `arg:"" help:"Topic to publish on"`
	Message  string        `short:"m" default:"hello" help:"Message text; a sequence number is appended"`
	Interval time.Duration `short:"i" default:"1s" help:"Time between messages"`
	Count    int           `default:"0" help:"Number of messages to send (0 for no limit)"`
}

func (c *pubCommand) Run(ctx Context) error {
	n, err := startNode(ctx.cfg)
	if err != nil {
		return err
	}
	defer n.Shutdown()

	pub, err := node.NewPublisher[textMessage](n, c.Topic)
	if err != nil {
		return err
	}
	defer pub.Close()

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	for seq := 1; c.Count == 0 || seq <= c.Count; seq++ {
		text := fmt.Sprintf("%s %d", c.Message, seq)
		if err := pub.Publish(node.Proto(wrapperspb.String(text))); err != nil {
			return err
		}
		l.Verbosef("Published %q to %d readers", text, len(pub.Readers()))

		select {
		case <-ticker.C:
		case <-n.Done():
			return nil
		}
	}
	return nil
}
