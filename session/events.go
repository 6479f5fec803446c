// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"fmt"
	"sync"

	"github.com/webdiario/portalauth/sdk/id"
)

type loadedHandler struct {
	handle string
	fn     func(*User)
}

type unloadedHandler struct {
	handle string
	fn     func()
}

// Events is an EventSource which capabilities use to emit user lifecycle
// events. Handlers run synchronously in registration order.
type Events struct {
	mu       sync.Mutex
	loaded   []loadedHandler
	unloaded []unloadedHandler
}

var _ EventSource = (*Events)(nil)

// NewEvents creates an Events with no handlers.
func NewEvents() *Events {
	return &Events{}
}

// AddUserLoaded implements EventSource.
func (e *Events) AddUserLoaded(fn func(*User)) (string, error) {
	const op = "session.(Events).AddUserLoaded"
	if fn == nil {
		return "", fmt.Errorf("%s: missing handler: %w", op, ErrNilParameter)
	}
	h, err := id.New("evt")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = append(e.loaded, loadedHandler{handle: h, fn: fn})
	return h, nil
}

// AddUserUnloaded implements EventSource.
func (e *Events) AddUserUnloaded(fn func()) (string, error) {
	const op = "session.(Events).AddUserUnloaded"
	if fn == nil {
		return "", fmt.Errorf("%s: missing handler: %w", op, ErrNilParameter)
	}
	h, err := id.New("evt")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloaded = append(e.unloaded, unloadedHandler{handle: h, fn: fn})
	return h, nil
}

// Remove implements EventSource.
func (e *Events) Remove(handle string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.loaded {
		if h.handle == handle {
			e.loaded = append(e.loaded[:i:i], e.loaded[i+1:]...)
			return
		}
	}
	for i, h := range e.unloaded {
		if h.handle == handle {
			e.unloaded = append(e.unloaded[:i:i], e.unloaded[i+1:]...)
			return
		}
	}
}

// UserLoaded notifies every user loaded handler.
func (e *Events) UserLoaded(u *User) {
	e.mu.Lock()
	handlers := append([]loadedHandler(nil), e.loaded...)
	e.mu.Unlock()
	for _, h := range handlers {
		h.fn(u)
	}
}

// UserUnloaded notifies every user unloaded handler.
func (e *Events) UserUnloaded() {
	e.mu.Lock()
	handlers := append([]unloadedHandler(nil), e.unloaded...)
	e.mu.Unlock()
	for _, h := range handlers {
		h.fn()
	}
}
