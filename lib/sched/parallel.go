// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package sched

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/thejerf/suture/v4"

	"github.com/rdds/rdds/lib/svcutil"
)

// Parallel runs every task as a service on its own goroutine. Tables shared
// between tasks are protected by their own locks; Block and Do add no
// exclusion.
type Parallel struct {
	sup *suture.Supervisor
	clk clock.Clock
}

func NewParallel(clk clock.Clock) *Parallel {
	if clk == nil {
		clk = clock.New()
	}
	spec := svcutil.SpecWithDebugLogger(l)
	spec.FailureBackoff = restartDelay
	return &Parallel{
		sup: suture.New("sched", spec),
		clk: clk,
	}
}

func (p *Parallel) Spawn(name string, task Task) func() {
	token := p.sup.Add(svcutil.AsService(task, name))
	l.Debugln("spawned", name)
	return func() {
		if err := p.sup.RemoveAndWait(token, svcutil.ServiceTimeout); err != nil {
			l.Debugln("stopping", name, err)
		}
	}
}

func (p *Parallel) Serve(ctx context.Context) error {
	return p.sup.Serve(ctx)
}

func (p *Parallel) Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, p.clk, d)
}

func (*Parallel) Block(_ context.Context, fn func()) {
	fn()
}

func (*Parallel) Do(fn func()) {
	fn()
}

func (p *Parallel) Clock() clock.Clock {
	return p.clk
}
