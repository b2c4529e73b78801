// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package discover

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rdds",
		Subsystem: "discover",
		Name:      "nodes",
		Help:      "Number of currently known remote nodes",
	})
	metricAnnouncementsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rdds",
		Subsystem: "discover",
		Name:      "announcements_sent_total",
		Help:      "Total number of announcements sent, counted once per interface",
	})
	metricAnnouncementsRecv = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdds",
		Subsystem: "discover",
		Name:      "announcements_recv_total",
		Help:      "Total number of datagrams received on the discovery group",
	}, []string{"result"})
	metricNodesLost = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rdds",
		Subsystem: "discover",
		Name:      "nodes_lost_total",
		Help:      "Total number of nodes evicted after a heartbeat timeout",
	})
)

const (
	resultNew       = "new"
	resultRefresh   = "refresh"
	resultSelf      = "self"
	resultClash     = "clash"
	resultMalformed = "malformed"
)
