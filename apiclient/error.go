// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package apiclient

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrUnauthorized is the class of a 401 response.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is the class of a 403 response.
	ErrForbidden = errors.New("forbidden")

	// ErrServer is the class of any 5xx response.
	ErrServer = errors.New("server error")

	// ErrUnexpectedStatus is returned by the JSON helpers for a non-2xx
	// response that is not otherwise classified.
	ErrUnexpectedStatus = errors.New("unexpected status")
)
