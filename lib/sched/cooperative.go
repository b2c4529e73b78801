// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package sched

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/thejerf/suture/v4"

	"github.com/rdds/rdds/lib/svcutil"
	"github.com/rdds/rdds/lib/sync"
)

// Cooperative runs every task on its own goroutine but lets only the
// holder of a single baton execute. A task gives the baton up while it
// sleeps or blocks and takes it back before continuing, so protocol code
// from different tasks never interleaves.
type Cooperative struct {
	baton chan struct{}
	clk   clock.Clock

	mut     sync.Mutex
	ctx     context.Context
	pending []*coopTask
	stopped bool
	wg      sync.WaitGroup
}

type coopTask struct {
	name   string
	fn     Task
	cancel context.CancelFunc
	done   chan struct{}
	held   bool // only touched by the task goroutine
}

type taskKey struct{}

func NewCooperative(clk clock.Clock) *Cooperative {
	if clk == nil {
		clk = clock.New()
	}
	return &Cooperative{
		baton: make(chan struct{}, 1),
		clk:   clk,
		mut:   sync.NewMutex(),
		wg:    sync.NewWaitGroup(),
	}
}

func (c *Cooperative) acquire() { c.baton <- struct{}{} }
func (c *Cooperative) release() { <-c.baton }

func (c *Cooperative) Spawn(name string, fn Task) func() {
	t := &coopTask{name: name, fn: fn, done: make(chan struct{})}

	c.mut.Lock()
	switch {
	case c.stopped:
		close(t.done)
	case c.ctx == nil:
		c.pending = append(c.pending, t)
	default:
		c.start(c.ctx, t)
	}
	c.mut.Unlock()

	l.Debugln("spawned", name)
	return func() {
		c.mut.Lock()
		if t.cancel == nil {
			// Never started; make sure it never will.
			for i, p := range c.pending {
				if p == t {
					c.pending = append(c.pending[:i], c.pending[i+1:]...)
					close(t.done)
					break
				}
			}
		} else {
			t.cancel()
		}
		c.mut.Unlock()
		<-t.done
	}
}

// start must be called with c.mut held.
func (c *Cooperative) start(ctx context.Context, t *coopTask) {
	ctx, t.cancel = context.WithCancel(ctx)
	ctx = context.WithValue(ctx, taskKey{}, t)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(t.done)
		c.run(ctx, t)
	}()
}

func (c *Cooperative) run(ctx context.Context, t *coopTask) {
	for {
		c.acquire()
		t.held = true
		err := t.fn(ctx)
		if t.held {
			t.held = false
			c.release()
		}

		if ctx.Err() != nil || errors.Is(err, suture.ErrDoNotRestart) {
			l.Debugln("task", t.name, "returned:", err)
			return
		}
		l.Infof("Task %s failed, restarting: %v", t.name, err)
		if sleep(ctx, c.clk, restartDelay) != nil {
			return
		}
	}
}

func (c *Cooperative) Serve(ctx context.Context) error {
	c.mut.Lock()
	if c.ctx != nil || c.stopped {
		c.mut.Unlock()
		return svcutil.NoRestartErr(errors.New("cooperative scheduler already served"))
	}
	c.ctx = ctx
	for _, t := range c.pending {
		c.start(ctx, t)
	}
	c.pending = nil
	c.mut.Unlock()

	<-ctx.Done()

	c.mut.Lock()
	c.stopped = true
	c.mut.Unlock()
	c.wg.Wait()
	return ctx.Err()
}

func taskFrom(ctx context.Context) *coopTask {
	t, _ := ctx.Value(taskKey{}).(*coopTask)
	return t
}

// suspend releases the baton around fn when called from a task holding it.
// The baton is not taken back once the task is cancelled; the task is
// expected to return.
func (c *Cooperative) suspend(ctx context.Context, fn func()) {
	t := taskFrom(ctx)
	if t == nil || !t.held {
		fn()
		return
	}
	t.held = false
	c.release()
	fn()
	if ctx.Err() != nil {
		return
	}
	c.acquire()
	t.held = true
}

func (c *Cooperative) Sleep(ctx context.Context, d time.Duration) error {
	var err error
	c.suspend(ctx, func() {
		err = sleep(ctx, c.clk, d)
	})
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func (c *Cooperative) Block(ctx context.Context, fn func()) {
	c.suspend(ctx, fn)
}

func (c *Cooperative) Do(fn func()) {
	c.acquire()
	defer c.release()
	fn()
}

func (c *Cooperative) Clock() clock.Clock {
	return c.clk
}
