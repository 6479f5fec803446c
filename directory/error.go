// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package directory

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrInvalidCACert    = errors.New("invalid CA certificate")

	// ErrAdminToken means the client credentials exchange for the service
	// token failed.
	ErrAdminToken = errors.New("unable to obtain admin token")

	// ErrTransport covers directory failures other than authorization denials
	// and absent organizations.
	ErrTransport = errors.New("directory transport error")
)
