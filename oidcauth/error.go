// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidcauth

import "errors"

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrInvalidCACert     = errors.New("invalid CA certificate")
	ErrUnsupportedAlg    = errors.New("unsupported signing algorithm")
	ErrProviderError     = errors.New("provider returned an error")
	ErrMissingCode       = errors.New("missing authorization code")
	ErrMissingIDToken    = errors.New("id_token is missing")
	ErrInvalidNonce      = errors.New("invalid id_token nonce")
	ErrSubjectMismatch   = errors.New("userinfo subject does not match id_token subject")
	ErrNoRefreshToken    = errors.New("no refresh token")
	ErrNavigationFailure = errors.New("navigation failed")
)
