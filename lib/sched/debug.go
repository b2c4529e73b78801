// Copyright (C) 2026 The rdds Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package sched

import "github.com/rdds/rdds/lib/logger"

var l = logger.DefaultLogger.NewFacility("sched", "Task scheduling")
