// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSentFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdds",
		Subsystem: "transport",
		Name:      "sent_frames_total",
		Help:      "Total number of frames sent, counted once per target",
	}, []string{"topic"})
	metricSentBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdds",
		Subsystem: "transport",
		Name:      "sent_bytes_total",
		Help:      "Total amount of frame data sent",
	}, []string{"topic"})
	metricSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdds",
		Subsystem: "transport",
		Name:      "send_errors_total",
		Help:      "Total number of failed sends to a target",
	}, []string{"topic"})

	metricRecvFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdds",
		Subsystem: "transport",
		Name:      "recv_frames_total",
		Help:      "Total number of frames delivered to a reader",
	}, []string{"topic"})
	metricRecvBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdds",
		Subsystem: "transport",
		Name:      "recv_bytes_total",
		Help:      "Total amount of payload delivered to a reader",
	}, []string{"topic"})
	metricDiscardedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdds",
		Subsystem: "transport",
		Name:      "discarded_frames_total",
		Help:      "Total number of received datagrams that did not match the reader",
	}, []string{"topic"})

	metricTargets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rdds",
		Subsystem: "transport",
		Name:      "writer_targets",
		Help:      "Number of readers a writer fans out to",
	}, []string{"topic"})
)

func registerTopicMetrics(topic string) {
	// Register metrics for this topic, so that counters are present even
	// when zero.
	metricSentFrames.WithLabelValues(topic)
	metricSentBytes.WithLabelValues(topic)
	metricSendErrors.WithLabelValues(topic)
	metricRecvFrames.WithLabelValues(topic)
	metricRecvBytes.WithLabelValues(topic)
	metricDiscardedFrames.WithLabelValues(topic)
}
