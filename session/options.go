// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/webdiario/portalauth/token"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

type watcherOptions struct {
	withLogger     hclog.Logger
	withAddressBar AddressBar
	withObservers  []Observer
}

func watcherDefaults() watcherOptions {
	return watcherOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getWatcherOpts(opt ...Option) watcherOptions {
	opts := watcherDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type expiryOptions struct {
	withLogger       hclog.Logger
	withClock        clockwork.Clock
	withWarnWindow   time.Duration
	withWarnThrottle time.Duration
}

func expiryDefaults() expiryOptions {
	return expiryOptions{
		withLogger:       hclog.NewNullLogger(),
		withClock:        clockwork.NewRealClock(),
		withWarnWindow:   DefaultWarnWindow,
		withWarnThrottle: DefaultWarnThrottle,
	}
}

func getExpiryOpts(opt ...Option) expiryOptions {
	opts := expiryDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type recovererOptions struct {
	withLogger    hclog.Logger
	withStateKeys []string
}

func recovererDefaults() recovererOptions {
	return recovererOptions{
		withLogger:    hclog.NewNullLogger(),
		withStateKeys: []string{token.DefaultStorageKey},
	}
}

func getRecovererOpts(opt ...Option) recovererOptions {
	opts := recovererDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for: Watcher, ExpiryMonitor,
// Recoverer
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *watcherOptions:
			v.withLogger = l
		case *expiryOptions:
			v.withLogger = l
		case *recovererOptions:
			v.withLogger = l
		}
	}
}

// WithAddressBar provides the address bar the Watcher cleans after sign-in.
func WithAddressBar(a AddressBar) Option {
	return func(o interface{}) {
		if v, ok := o.(*watcherOptions); ok {
			v.withAddressBar = a
		}
	}
}

// WithObservers provides observers the Watcher forwards sessions to.
func WithObservers(obs ...Observer) Option {
	return func(o interface{}) {
		if v, ok := o.(*watcherOptions); ok {
			v.withObservers = append(v.withObservers, obs...)
		}
	}
}

// WithClock provides an optional clock for: ExpiryMonitor
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if v, ok := o.(*expiryOptions); ok && c != nil {
			v.withClock = c
		}
	}
}

// WithWarnWindow overrides how long before expiry the ExpiryMonitor warns.
func WithWarnWindow(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*expiryOptions); ok {
			v.withWarnWindow = d
		}
	}
}

// WithWarnThrottle overrides the minimum interval between two expiring soon
// warnings.
func WithWarnThrottle(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*expiryOptions); ok {
			v.withWarnThrottle = d
		}
	}
}

// WithStateKeys overrides the storage keys the Recoverer erases.
func WithStateKeys(keys ...string) Option {
	return func(o interface{}) {
		if v, ok := o.(*recovererOptions); ok {
			v.withStateKeys = keys
		}
	}
}
