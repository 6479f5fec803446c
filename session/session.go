// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package session reconciles the asynchronous state of the OIDC capability
// with the rest of the portal: it keeps the token store current, watches for
// expiry, derives readiness, and recovers from corrupted sign-in state.
package session

import (
	"context"
	"time"
)

// Claims is a set of JWT or userinfo claims.
type Claims map[string]interface{}

// User is the signed in user as reported by the capability.
type User struct {
	// AccessToken is the bearer token for API calls.
	AccessToken string

	// ExpiresAt is the access token expiry. The zero value means unknown.
	ExpiresAt time.Time

	// Profile holds the id_token and userinfo claims.
	Profile Claims

	// Claims holds any claims the capability exposes directly on the user.
	Claims Claims
}

// Session is a snapshot of the capability's state.
type Session struct {
	Loading       bool
	Authenticated bool
	Err           error
	User          *User
}

// Token returns the access token, which is only defined when the session is
// authenticated and has a user.
func (s Session) Token() (string, bool) {
	if !s.Authenticated || s.User == nil || s.User.AccessToken == "" {
		return "", false
	}
	return s.User.AccessToken, true
}

// Phase is the derived state of a Session.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseErroring
	PhaseUnauthenticated
	PhaseAuthenticatedNoUser
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseErroring:
		return "erroring"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticatedNoUser:
		return "authenticated_no_user"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// PhaseOf derives the phase of s. Loading takes precedence over an error,
// and an error over the authentication state.
func PhaseOf(s Session) Phase {
	switch {
	case s.Loading:
		return PhaseLoading
	case s.Err != nil:
		return PhaseErroring
	case !s.Authenticated:
		return PhaseUnauthenticated
	}
	if _, ok := s.Token(); !ok {
		return PhaseAuthenticatedNoUser
	}
	return PhaseReady
}

// EventSource lets callers listen for user lifecycle events.
type EventSource interface {
	// AddUserLoaded registers fn for sign-in and renewal events and returns
	// a handle for Remove.
	AddUserLoaded(fn func(*User)) (string, error)

	// AddUserUnloaded registers fn for sign-out and renewal failure events
	// and returns a handle for Remove.
	AddUserUnloaded(fn func()) (string, error)

	// Remove unregisters a handler. Unknown handles are ignored.
	Remove(handle string)
}

// Capability is the OIDC client the portal delegates the protocol to.
type Capability interface {
	// Session returns the current state.
	Session() Session

	// Subscribe registers fn for every state change.
	Subscribe(fn func(Session)) (unsubscribe func())

	// Events returns the user lifecycle events.
	Events() EventSource

	// SigninRedirect starts an interactive sign-in.
	SigninRedirect(ctx context.Context) error

	// SignoutRedirect ends the session at the provider.
	SignoutRedirect(ctx context.Context) error
}

// StateResetter is implemented by capabilities that keep local sign-in
// state which can be discarded.
type StateResetter interface {
	ResetState()
}

// PendingSigner is implemented by capabilities that can report whether a
// sign-in was started and not yet completed.
type PendingSigner interface {
	PendingSignin() bool
}
