// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package portal

import "errors"

var (
	ErrNilParameter   = errors.New("nil parameter")
	ErrAlreadyStarted = errors.New("portal already started")
)
