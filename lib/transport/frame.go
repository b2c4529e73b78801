// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package transport implements the data plane: a DataWriter fans each
// payload out to every subscribed reader of its topic and a DataReader
// receives the payloads addressed to one subscriber.
package transport

import (
	"bytes"
	"errors"
)

const (
	frameMagic = "RDAT"

	// MaxPayload is the largest payload that fits a single datagram
	// together with a maximal frame header.
	MaxPayload = maxDatagram - (len(frameMagic) + 1 + 255 + 1 + 255)

	maxDatagram = 65507
)

var (
	ErrDiscarded     = errors.New("transport: frame discarded")
	ErrTooLarge      = errors.New("transport: payload too large")
	ErrNameTooLong   = errors.New("transport: topic or type name exceeds 255 bytes")
	errShortFrame    = errors.New("short frame")
	errFrameMismatch = errors.New("frame for another topic or type")
)

// The frame header is "RDAT", the topic and the type name each prefixed by
// a one byte length. The rest of the datagram is payload.
type frameHeader struct {
	topic    string
	typeName string
}

func (h frameHeader) size() int {
	return len(frameMagic) + 1 + len(h.topic) + 1 + len(h.typeName)
}

func (h frameHeader) validate() error {
	if len(h.topic) > 255 || len(h.typeName) > 255 {
		return ErrNameTooLong
	}
	return nil
}

// appendFrame appends the header and payload to buf.
func (h frameHeader) appendFrame(buf, payload []byte) []byte {
	buf = append(buf, frameMagic...)
	buf = append(buf, byte(len(h.topic)))
	buf = append(buf, h.topic...)
	buf = append(buf, byte(len(h.typeName)))
	buf = append(buf, h.typeName...)
	return append(buf, payload...)
}

// match returns the payload of bs if it is a frame for exactly this topic
// and type.
func (h frameHeader) match(bs []byte) ([]byte, error) {
	if len(bs) < len(frameMagic)+1 || !bytes.HasPrefix(bs, []byte(frameMagic)) {
		return nil, errShortFrame
	}
	bs = bs[len(frameMagic):]

	for _, want := range []string{h.topic, h.typeName} {
		if len(bs) < 1 {
			return nil, errShortFrame
		}
		n := int(bs[0])
		bs = bs[1:]
		if len(bs) < n {
			return nil, errShortFrame
		}
		if string(bs[:n]) != want {
			return nil, errFrameMismatch
		}
		bs = bs[n:]
	}
	return bs, nil
}
