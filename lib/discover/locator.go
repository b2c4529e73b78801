// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package discover

import (
	"net/netip"

	"github.com/rdds/rdds/lib/netutil"
	"github.com/rdds/rdds/lib/protocol"
)

// selectLocator picks the advertised locator to reach a node at, given the
// source of its announcement and the local interfaces. In order of
// preference: the locator matching the source address, one on the subnet
// of the arrival interface, one on any local subnet. A loopback locator
// names this host unless the announcement itself came over loopback, so
// it is only considered then. The zero Locator is returned when none
// qualifies.
func selectLocator(advertised []protocol.Locator, src netip.Addr, ifIndex int, intfs []netutil.Interface) protocol.Locator {
	src = src.Unmap()
	for _, loc := range advertised {
		if loc.IsValid() && src.IsValid() && loc.Addr() == src {
			return loc
		}
	}

	usable := func(loc protocol.Locator) bool {
		return loc.IsValid() && (!loc.Addr().IsLoopback() || src.IsLoopback())
	}

	if arrival, ok := netutil.ByIndex(intfs, ifIndex); ok {
		for _, loc := range advertised {
			if usable(loc) && arrival.Contains(loc.Addr()) {
				return loc
			}
		}
	}

	for _, loc := range advertised {
		if usable(loc) && netutil.Covering(intfs, loc.Addr()) {
			return loc
		}
	}
	return protocol.Locator{}
}
