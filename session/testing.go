// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"sync"
	"time"
)

// TestCapability is an in-memory Capability for tests. Sessions are published
// with Publish and delivered synchronously to subscribers.
type TestCapability struct {
	mu          sync.Mutex
	current     Session
	subscribers map[int]func(Session)
	next        int
	events      *Events
	signins     int
	signouts    int
	resets      int
	pending     bool
	signinErr   error
}

var (
	_ Capability    = (*TestCapability)(nil)
	_ StateResetter = (*TestCapability)(nil)
	_ PendingSigner = (*TestCapability)(nil)
)

// NewTestCapability creates a TestCapability in the loading state.
func NewTestCapability() *TestCapability {
	return &TestCapability{
		current:     Session{Loading: true},
		subscribers: map[int]func(Session){},
		events:      NewEvents(),
	}
}

// Publish sets the current session and notifies subscribers.
func (c *TestCapability) Publish(s Session) {
	c.mu.Lock()
	c.current = s
	subs := make([]func(Session), 0, len(c.subscribers))
	for i := 0; i < c.next; i++ {
		if fn, ok := c.subscribers[i]; ok {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

// Session implements Capability.
func (c *TestCapability) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Subscribe implements Capability.
func (c *TestCapability) Subscribe(fn func(Session)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.next
	c.next++
	c.subscribers[i] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, i)
	}
}

// Events implements Capability and returns the Events the test can emit on.
func (c *TestCapability) Events() EventSource {
	return c.events
}

// Emitter returns the Events backing Events().
func (c *TestCapability) Emitter() *Events {
	return c.events
}

// SigninRedirect implements Capability. It records the call and marks a
// sign-in as pending.
func (c *TestCapability) SigninRedirect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signins++
	c.pending = true
	return c.signinErr
}

// SetSigninError makes SigninRedirect fail with err.
func (c *TestCapability) SetSigninError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signinErr = err
}

// SignoutRedirect implements Capability. It records the call.
func (c *TestCapability) SignoutRedirect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signouts++
	return nil
}

// ResetState implements StateResetter.
func (c *TestCapability) ResetState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	c.pending = false
}

// PendingSignin implements PendingSigner.
func (c *TestCapability) PendingSignin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Calls returns how many times SigninRedirect, SignoutRedirect and
// ResetState were called.
func (c *TestCapability) Calls() (signins, signouts, resets int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signins, c.signouts, c.resets
}

// TestUser returns a User with the given token, expiry and profile claims.
func TestUser(accessToken string, expiresAt time.Time, profile Claims) *User {
	return &User{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		Profile:     profile,
		Claims:      Claims{},
	}
}

// TestReadySession returns an authenticated session for u.
func TestReadySession(u *User) Session {
	return Session{Authenticated: true, User: u}
}
