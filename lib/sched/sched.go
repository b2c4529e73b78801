// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sched provides the two interchangeable ways a node runs its
// protocol duties: each duty on its own goroutine under a supervisor, or
// all duties cooperatively taking turns so that only one executes protocol
// code at any moment.
//
// Duties are written once against the Scheduler interface. They suspend
// only through Sleep and Block; code outside the duties (the public API of
// a node) enters protocol state through Do.
package sched

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// A Task is a long running duty. Returning an error wrapped with
// svcutil.NoRestartErr ends it; any other return restarts it unless the
// scheduler is stopping.
type Task func(ctx context.Context) error

type Scheduler interface {
	// Spawn starts the task, or queues it until Serve is called. The
	// returned function cancels the task and waits for it to return. It
	// must not be called from within Do.
	Spawn(name string, task Task) (stop func())

	// Serve runs the spawned tasks until ctx is cancelled and every task
	// has returned.
	Serve(ctx context.Context) error

	// Sleep suspends the calling task for d, returning early with the
	// context error if ctx is cancelled.
	Sleep(ctx context.Context, d time.Duration) error

	// Block runs fn, which may block on I/O, as a suspension point of the
	// task owning ctx.
	Block(ctx context.Context, fn func())

	// Do runs fn exclusively with respect to protocol code. It is used by
	// callers that are not tasks and must not be called from a task.
	Do(fn func())

	// Clock is the time source used by Sleep.
	Clock() clock.Clock
}

const (
	KindParallel    = "parallel"
	KindCooperative = "cooperative"
)

// New returns a scheduler of the given kind.
func New(kind string, clk clock.Clock) (Scheduler, bool) {
	switch kind {
	case KindParallel, "":
		return NewParallel(clk), true
	case KindCooperative:
		return NewCooperative(clk), true
	default:
		return nil, false
	}
}

// restartDelay is how long a failed task waits before it runs again.
const restartDelay = time.Second

func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
