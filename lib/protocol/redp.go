// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package protocol

const (
	REDPMagic = "REDP"

	// REDPHeaderSize is magic, guid, flags, topic length and port.
	REDPHeaderSize = 4 + 8 + 1 + 1 + 2

	flagRemove = 1 << 0
	flagWriter = 1 << 1
)

type Action uint8

const (
	ActionAdd Action = iota
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

type EndpointType uint8

const (
	TypeReader EndpointType = iota
	TypeWriter
)

func (t EndpointType) String() string {
	switch t {
	case TypeReader:
		return "reader"
	case TypeWriter:
		return "writer"
	default:
		return "unknown"
	}
}

// REDP announces the addition or removal of a local endpoint to a peer.
// Port is only meaningful for readers, where it is the data port.
type REDP struct {
	Action Action
	Type   EndpointType
	Guid   Guid
	Port   uint16
	Topic  string
}

func (m REDP) MarshalBinary() ([]byte, error) {
	if len(m.Topic) > 255 {
		return nil, ErrTooLong
	}

	var flags uint8
	if m.Action == ActionRemove {
		flags |= flagRemove
	}
	if m.Type == TypeWriter {
		flags |= flagWriter
	}

	w := newMarshaller(REDPHeaderSize + len(m.Topic))
	w.putRaw([]byte(REDPMagic))
	w.putUint64(m.Guid.Uint64())
	w.putUint8(flags)
	w.putUint8(uint8(len(m.Topic)))
	w.putUint16(m.Port)
	w.putRaw([]byte(m.Topic))
	return w.data, w.error
}

func (m *REDP) UnmarshalBinary(bs []byte) error {
	r := &unmarshaller{data: bs}
	r.expectMagic(REDPMagic)
	guid := GuidFromUint64(r.uint64())
	flags := r.uint8()
	topicLen := int(r.uint8())
	port := r.uint16()
	topic := r.string(topicLen)
	if r.error != nil {
		return r.error
	}
	if flags&^(flagRemove|flagWriter) != 0 {
		return ErrBadFlags
	}

	*m = REDP{
		Action: ActionAdd,
		Type:   TypeReader,
		Guid:   guid,
		Port:   port,
		Topic:  topic,
	}
	if flags&flagRemove != 0 {
		m.Action = ActionRemove
	}
	if flags&flagWriter != 0 {
		m.Type = TypeWriter
	}
	return nil
}
