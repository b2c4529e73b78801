// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rdds/rdds/lib/discover"
	"github.com/rdds/rdds/lib/events"
	"github.com/rdds/rdds/lib/protocol"
)

const followMask = events.NodeDiscovered | events.NodeLost | events.EndpointDiscovered | events.EndpointLost

type nodesCommand struct {
	Wait   time.Duration `short:"w" default:"3s" help:"Time to listen for announcements"`
	Follow bool          `short:"f" help:"Keep running and print nodes and endpoints as they come and go"`
}

func (c *nodesCommand) Run(ctx Context) error {
	n, err := startNode(ctx.cfg)
	if err != nil {
		return err
	}
	defer n.Shutdown()

	// Subscribe before waiting so that nothing seen during the wait is lost
	// when following.
	var sub events.Subscription
	if c.Follow {
		sub = n.Events().Subscribe(followMask)
		defer sub.Unsubscribe()
	}

	select {
	case <-time.After(c.Wait):
	case <-n.Done():
		return nil
	}

	printNodes(os.Stdout, n)
	if sub == nil {
		return nil
	}
	fmt.Println()
	followEvents(os.Stdout, sub, n.Done())
	return nil
}

type nodeView interface {
	DiscoveredNodes() []discover.NodeInfo
	DiscoveredTopics() []string
	DiscoveredWriters(topic string) []protocol.Guid
	DiscoveredReaders(topic string) map[protocol.Guid]protocol.Locator
	DiscoveryError() error
}

func printNodes(w io.Writer, n nodeView) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	defer tw.Flush()

	if err := n.DiscoveryError(); err != nil {
		fmt.Fprintf(tw, "Announcements failing: %v\n\n", err)
	}

	fmt.Fprintln(tw, "GUID\tNAME\tLOCATOR\tTIMEOUT\tLAST SEEN")
	for _, info := range n.DiscoveredNodes() {
		fmt.Fprintf(tw, "%v\t%s\t%v\t%ds\t%v ago\n", info.Announcement.Guid, info.Announcement.Name, info.Locator,
			info.Announcement.HeartbeatTimeout, time.Since(info.LastAlive).Truncate(time.Millisecond))
	}

	topics := n.DiscoveredTopics()
	if len(topics) == 0 {
		return
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "TOPIC\tWRITERS\tREADERS")
	for _, topic := range topics {
		var writers, readers []string
		for _, g := range n.DiscoveredWriters(topic) {
			writers = append(writers, g.String())
		}
		for g, loc := range n.DiscoveredReaders(topic) {
			readers = append(readers, fmt.Sprintf("%v@%v", g, loc))
		}
		sort.Strings(readers)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", topic, strings.Join(writers, ","), strings.Join(readers, ","))
	}
}

// followEvents prints events from sub until done is closed or the
// subscription ends.
func followEvents(w io.Writer, sub events.Subscription, done <-chan struct{}) {
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			fmt.Fprintln(w, formatEvent(ev))
		case <-done:
			return
		}
	}
}

func formatEvent(ev events.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-18s", ev.Time.Format("15:04:05.000"), ev.Type)
	data, _ := ev.Data.(map[string]interface{})
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, data[k])
	}
	return b.String()
}
