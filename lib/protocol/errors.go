// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package protocol

import "errors"

var (
	ErrBadMagic    = errors.New("protocol: bad magic")
	ErrShortBuffer = errors.New("protocol: message truncated")
	ErrTooLong     = errors.New("protocol: field exceeds 255 bytes")
	ErrBadFlags    = errors.New("protocol: unknown flag bits")
)
