// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package protocol

import "encoding/binary"

// The marshaller appends fixed width big endian fields to a byte slice. The
// put methods don't individually return an error; a field that cannot be
// represented sets the sticky error and every later call is a no-op.
type marshaller struct {
	data  []byte
	error error
}

func newMarshaller(size int) *marshaller {
	return &marshaller{data: make([]byte, 0, size)}
}

func (m *marshaller) putRaw(bs []byte) {
	if m.error != nil {
		return
	}
	m.data = append(m.data, bs...)
}

func (m *marshaller) putUint8(v uint8) {
	if m.error != nil {
		return
	}
	m.data = append(m.data, v)
}

func (m *marshaller) putUint16(v uint16) {
	if m.error != nil {
		return
	}
	m.data = binary.BigEndian.AppendUint16(m.data, v)
}

func (m *marshaller) putUint64(v uint64) {
	if m.error != nil {
		return
	}
	m.data = binary.BigEndian.AppendUint64(m.data, v)
}

// putString writes the string with a one byte length prefix.
func (m *marshaller) putString(s string) {
	if len(s) > 255 {
		m.setError(ErrTooLong)
		return
	}
	m.putUint8(uint8(len(s)))
	m.putRaw([]byte(s))
}

func (m *marshaller) putLocator(l Locator) {
	m.putUint16(l.Port)
	m.putRaw(l.IP[:])
}

func (m *marshaller) setError(err error) {
	if m.error == nil {
		m.error = err
	}
}

// The unmarshaller reads fields from a byte slice. Reading past the end of
// the data sets the sticky ErrShortBuffer and returns zero values.
type unmarshaller struct {
	data   []byte
	offset int
	error  error
}

func (u *unmarshaller) remaining() int {
	return len(u.data) - u.offset
}

func (u *unmarshaller) take(n int) []byte {
	if u.error != nil {
		return nil
	}
	if n > u.remaining() {
		u.error = ErrShortBuffer
		return nil
	}
	bs := u.data[u.offset : u.offset+n]
	u.offset += n
	return bs
}

func (u *unmarshaller) uint8() uint8 {
	bs := u.take(1)
	if bs == nil {
		return 0
	}
	return bs[0]
}

func (u *unmarshaller) uint16() uint16 {
	bs := u.take(2)
	if bs == nil {
		return 0
	}
	return binary.BigEndian.Uint16(bs)
}

func (u *unmarshaller) uint64() uint64 {
	bs := u.take(8)
	if bs == nil {
		return 0
	}
	return binary.BigEndian.Uint64(bs)
}

func (u *unmarshaller) string(n int) string {
	return string(u.take(n))
}

func (u *unmarshaller) locator() Locator {
	var l Locator
	l.Port = u.uint16()
	copy(l.IP[:], u.take(4))
	return l
}

// expectMagic consumes the four byte magic and records ErrBadMagic on a
// mismatch.
func (u *unmarshaller) expectMagic(magic string) {
	bs := u.take(len(magic))
	if bs != nil && string(bs) != magic {
		u.error = ErrBadMagic
	}
}
