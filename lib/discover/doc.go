// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

/*
Package discover implements the node discovery protocol.

Every node periodically multicasts an RNDP announcement to the group
address of its domain, once per local IPv4 interface and sourced from that
interface:

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                       Magic ("RNDP")                          |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                                                               |
	+                         Node Guid                             +
	|                                                               |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	| Locator Count | HB Timeout    |                               |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+                               +
	/        Locators (port u16, IPv4 address), Count times         /
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|  Name Length  |             Name (optional)                   /
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

Each locator carries the control port on which the node receives endpoint
announcements. A receiver keeps one entry per announcing node, choosing the
advertised locator that sits on the same subnet the announcement arrived
from. The first time a node is seen the receiver back-fills it with all of
its own endpoints. A node that stays silent for longer than its advertised
heartbeat timeout is forgotten, together with every endpoint that came from
the same process.
*/
package discover
