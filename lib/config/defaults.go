// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"reflect"
	"strconv"
)

type defaultParser interface {
	ParseDefault(string) error
}

// SetDefaults sets default values on a struct, based on the default annotation.
func SetDefaults(data interface{}) {
	s := reflect.ValueOf(data).Elem()
	t := s.Type()

	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		tag := t.Field(i).Tag

		v := tag.Get("default")
		if len(v) == 0 {
			if f.CanSet() && f.Kind() == reflect.Struct && f.CanAddr() {
				if addr := f.Addr(); addr.CanInterface() {
					SetDefaults(addr.Interface())
				}
			}
			continue
		}

		if f.CanAddr() && f.Addr().CanInterface() {
			if parser, ok := f.Addr().Interface().(defaultParser); ok {
				if err := parser.ParseDefault(v); err != nil {
					panic(err)
				}
				continue
			}
		}

		switch f.Kind() {
		case reflect.String:
			f.SetString(v)

		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			i, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				panic(err)
			}
			f.SetInt(i)

		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			i, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				panic(err)
			}
			f.SetUint(i)

		case reflect.Bool:
			f.SetBool(v == "true")

		default:
			panic(f.Type())
		}
	}
}
