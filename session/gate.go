// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import "github.com/webdiario/portalauth/token"

// ReadinessPhase is the coarse state shown to the user while a session
// settles.
type ReadinessPhase string

const (
	ReadinessLoading         ReadinessPhase = "loading"
	ReadinessErrored         ReadinessPhase = "errored"
	ReadinessUnauthenticated ReadinessPhase = "unauthenticated"
	ReadinessReady           ReadinessPhase = "ready"
)

// Readiness tells whether API calls can be made.
type Readiness struct {
	Phase ReadinessPhase
	Ready bool
}

// Gate derives Readiness from a Session and, when Tokens is set, from the
// token the HTTP layer will send.
type Gate struct {
	// Tokens is the store API requests read the bearer token from. A ready
	// session is reported as loading until Tokens holds its token.
	Tokens token.Source
}

// Evaluate returns the readiness of s. An authenticated session that is
// still missing its user or token, or whose token has not reached Tokens,
// is reported as loading.
func (g Gate) Evaluate(s Session) Readiness {
	switch PhaseOf(s) {
	case PhaseLoading, PhaseAuthenticatedNoUser:
		return Readiness{Phase: ReadinessLoading}
	case PhaseErroring:
		return Readiness{Phase: ReadinessErrored}
	case PhaseUnauthenticated:
		return Readiness{Phase: ReadinessUnauthenticated}
	}
	if g.Tokens != nil {
		want, _ := s.Token()
		if got, ok := g.Tokens.Token(); !ok || got != want {
			return Readiness{Phase: ReadinessLoading}
		}
	}
	return Readiness{Phase: ReadinessReady, Ready: true}
}
