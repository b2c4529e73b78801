// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package svcutil

import (
	"context"
	"errors"
	"testing"

	"github.com/thejerf/suture/v4"
)

func TestNoRestartErr(t *testing.T) {
	if !errors.Is(NoRestartErr(nil), suture.ErrDoNotRestart) {
		t.Error("nil error should map to ErrDoNotRestart")
	}

	base := errors.New("socket closed")
	err := NoRestartErr(base)
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Error("wrapped error should match ErrDoNotRestart")
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should unwrap to the original")
	}
	if err.Error() != base.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), base.Error())
	}
}

func TestAsServiceKeepsError(t *testing.T) {
	want := errors.New("boom")
	svc := AsService(func(ctx context.Context) error { return want }, "test")
	if err := svc.Serve(context.Background()); err != want {
		t.Fatalf("Serve() = %v, want %v", err, want)
	}
	if svc.Error() != want {
		t.Errorf("Error() = %v, want %v", svc.Error(), want)
	}
}

func TestIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !IsCancelled(ctx.Err()) {
		t.Error("context.Canceled should count as cancelled")
	}
	if IsCancelled(errors.New("other")) {
		t.Error("arbitrary error should not count as cancelled")
	}
}
