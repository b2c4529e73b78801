// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package node

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

var errInvalidProtoType = errors.New("message type does not construct values of itself")

// ProtoMessage carries a protocol buffer message over a topic. The wire
// type name is the full name of the message.
type ProtoMessage[M proto.Message] struct {
	Msg M
}

// Proto wraps msg for publishing.
func Proto[M proto.Message](msg M) ProtoMessage[M] {
	return ProtoMessage[M]{Msg: msg}
}

func (p ProtoMessage[M]) TypeName() string {
	var zero M
	return string(zero.ProtoReflect().Descriptor().FullName())
}

func (p ProtoMessage[M]) Marshal() ([]byte, error) {
	return proto.Marshal(p.Msg)
}

func (p *ProtoMessage[M]) Unmarshal(bs []byte) error {
	var zero M
	msg, ok := zero.ProtoReflect().Type().New().Interface().(M)
	if !ok {
		return errInvalidProtoType
	}
	if err := proto.Unmarshal(bs, msg); err != nil {
		return err
	}
	p.Msg = msg
	return nil
}
