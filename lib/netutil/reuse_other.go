// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd && !windows

package netutil

import "net"

// ReuseListenConfig returns the default listen config; only one node per
// host can join a domain on this platform.
func ReuseListenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
