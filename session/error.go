// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrStateMismatch is reported by a capability when a sign-in callback
	// carries a state it never issued.
	ErrStateMismatch = errors.New("no matching state found")

	// ErrTokenExpired is reported by a capability when the session's token
	// expired and could not be renewed.
	ErrTokenExpired = errors.New("token expired")
)
