// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"net/url"
	"sync"
)

// authParams are the query parameters an identity provider appends to the
// redirect URI.
var authParams = []string{"code", "state", "session_state", "iss", "error", "error_description"}

// AddressBar is the location the user returns to after signing in.
type AddressBar interface {
	URL() *url.URL
	Replace(u *url.URL)
}

// StripAuthParams returns a copy of u without the identity provider's
// callback parameters and whether any was removed. Other query parameters
// and the fragment are kept.
func StripAuthParams(u *url.URL) (*url.URL, bool) {
	if u == nil {
		return nil, false
	}
	clean := *u
	q := u.Query()
	var found bool
	for _, p := range authParams {
		if q.Has(p) {
			q.Del(p)
			found = true
		}
	}
	if !found {
		return &clean, false
	}
	clean.RawQuery = q.Encode()
	clean.ForceQuery = false
	return &clean, true
}

// MemoryAddressBar is an AddressBar held in memory.
type MemoryAddressBar struct {
	mu       sync.Mutex
	u        *url.URL
	replaced int
}

var _ AddressBar = (*MemoryAddressBar)(nil)

// NewMemoryAddressBar creates a MemoryAddressBar at u.
func NewMemoryAddressBar(u *url.URL) *MemoryAddressBar {
	return &MemoryAddressBar{u: u}
}

// URL implements AddressBar.
func (m *MemoryAddressBar) URL() *url.URL {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.u == nil {
		return nil
	}
	c := *m.u
	return &c
}

// Replace implements AddressBar.
func (m *MemoryAddressBar) Replace(u *url.URL) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.u = u
	m.replaced++
}

// Replaced returns how many times the location was replaced.
func (m *MemoryAddressBar) Replaced() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaced
}
