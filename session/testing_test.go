// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import "time"

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
