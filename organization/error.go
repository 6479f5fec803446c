// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package organization

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrAlreadyInitialized is returned by Initialize once the resolver left
	// the uninitialized state.
	ErrAlreadyInitialized = errors.New("organizations already initialized")

	// ErrNotSignedIn is returned when an operation needs a signed in user.
	ErrNotSignedIn = errors.New("no signed in user")

	// ErrUnknownOrganization is returned when switching to an organization
	// the user does not belong to.
	ErrUnknownOrganization = errors.New("unknown organization")

	// ErrStaleSession is returned when the session ended while a switch was
	// in flight. The switch is discarded.
	ErrStaleSession = errors.New("session ended during operation")
)
