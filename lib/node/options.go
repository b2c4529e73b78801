// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package node

import (
	"os"

	"github.com/benbjohnson/clock"

	"github.com/rdds/rdds/lib/events"
	"github.com/rdds/rdds/lib/sched"
)

type options struct {
	sched    sched.Scheduler
	clock    clock.Clock
	evLogger events.Logger
	signals  []os.Signal
}

// An Option changes how a node is constructed.
type Option func(*options)

// WithScheduler runs the node duties on s instead of the scheduler named
// in the configuration. The scheduler must not be shared between nodes.
func WithScheduler(s sched.Scheduler) Option {
	return func(o *options) {
		o.sched = s
	}
}

// WithClock sets the time source for liveness tracking. It is ignored when
// WithScheduler is also given; the scheduler's clock is used then.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithEvents makes the node log its events to evLogger.
func WithEvents(evLogger events.Logger) Option {
	return func(o *options) {
		o.evLogger = evLogger
	}
}

// WithShutdownSignals shuts the node down when one of the signals arrives.
func WithShutdownSignals(sigs ...os.Signal) Option {
	return func(o *options) {
		o.signals = append(o.signals, sigs...)
	}
}
