// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package protocol

const (
	RNDPMagic = "RNDP"

	// RNDPHeaderSize is magic, guid, locator count and heartbeat timeout.
	RNDPHeaderSize = 4 + 8 + 1 + 1
	locatorSize    = 2 + 4
)

// RNDP is the periodic multicast announcement a node makes about itself.
type RNDP struct {
	Guid             Guid
	HeartbeatTimeout uint8 // seconds
	Locators         []Locator
	Name             string
}

func (m RNDP) MarshalBinary() ([]byte, error) {
	if len(m.Locators) > 255 || len(m.Name) > 255 {
		return nil, ErrTooLong
	}

	w := newMarshaller(RNDPHeaderSize + len(m.Locators)*locatorSize + 1 + len(m.Name))
	w.putRaw([]byte(RNDPMagic))
	w.putUint64(m.Guid.Uint64())
	w.putUint8(uint8(len(m.Locators)))
	w.putUint8(m.HeartbeatTimeout)
	for _, l := range m.Locators {
		w.putLocator(l)
	}
	w.putString(m.Name)
	return w.data, w.error
}

// UnmarshalBinary decodes an announcement. A datagram that ends right after
// the locator list carries no name.
func (m *RNDP) UnmarshalBinary(bs []byte) error {
	r := &unmarshaller{data: bs}
	r.expectMagic(RNDPMagic)
	guid := GuidFromUint64(r.uint64())
	count := int(r.uint8())
	timeout := r.uint8()
	if r.error != nil {
		return r.error
	}
	if r.remaining() < count*locatorSize {
		return ErrShortBuffer
	}

	var locs []Locator
	if count > 0 {
		locs = make([]Locator, count)
		for i := range locs {
			locs[i] = r.locator()
		}
	}

	var name string
	if r.remaining() > 0 {
		name = r.string(int(r.uint8()))
	}
	if r.error != nil {
		return r.error
	}

	*m = RNDP{
		Guid:             guid,
		HeartbeatTimeout: timeout,
		Locators:         locs,
		Name:             name,
	}
	return nil
}
