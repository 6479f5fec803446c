// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidcauth

import (
	"fmt"
	"time"

	"github.com/webdiario/portalauth/sdk/id"
	"golang.org/x/oauth2"
)

// DefaultStateTTL is how long a started sign-in may take before its
// authorization response is rejected.
const DefaultStateTTL = 10 * time.Minute

// signinState identifies one authorization request through the flow.
type signinState struct {
	id         string
	nonce      string
	verifier   string
	expiration time.Time
}

func newSigninState(now time.Time, expireIn time.Duration) (*signinState, error) {
	const op = "oidcauth.newSigninState"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	stateID, err := id.New("st")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's id: %w", op, err)
	}
	nonce, err := id.New("n")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's nonce: %w", op, err)
	}
	return &signinState{
		id:         stateID,
		nonce:      nonce,
		verifier:   oauth2.GenerateVerifier(),
		expiration: now.Add(expireIn),
	}, nil
}

func (s *signinState) isExpired(now time.Time) bool {
	return !now.Before(s.expiration)
}
