// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package endpoints

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricNoticesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdds",
		Subsystem: "endpoints",
		Name:      "notices_sent_total",
		Help:      "Total number of endpoint notices sent",
	}, []string{"action"})
	metricNoticesRecv = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdds",
		Subsystem: "endpoints",
		Name:      "notices_recv_total",
		Help:      "Total number of datagrams received on the control socket",
	}, []string{"result"})
	metricDiscovered = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rdds",
		Subsystem: "endpoints",
		Name:      "discovered",
		Help:      "Number of discovered remote endpoints",
	}, []string{"type"})
)
