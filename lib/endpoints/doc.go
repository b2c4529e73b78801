// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package endpoints implements endpoint discovery: the tables of local and
// discovered writers and readers, and the control socket on which nodes
// that know each other exchange REDP notices about them.
//
// A notice is sent to every known node when a local endpoint is added or
// removed, and all local endpoints are announced to a node when it is
// first discovered. A reader notice carries the data port of the reader;
// the address is taken from the datagram source.
package endpoints
