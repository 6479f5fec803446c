// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package token

import "errors"

var (
	ErrNilParameter = errors.New("nil parameter")
	ErrPersist      = errors.New("unable to persist token")
)
