// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package portal

import (
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/webdiario/portalauth/organization"
	"github.com/webdiario/portalauth/session"
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

type portalOptions struct {
	withLogger         hclog.Logger
	withClock          clockwork.Clock
	withNotifier       session.Notifier
	withAddressBar     session.AddressBar
	withMetadataSource organization.MetadataSource
}

func portalDefaults() portalOptions {
	return portalOptions{
		withLogger: hclog.NewNullLogger(),
		withClock:  clockwork.NewRealClock(),
	}
}

func getPortalOpts(opt ...Option) portalOptions {
	opts := portalDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for: New
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*portalOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithClock provides an optional clock for: New
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*portalOptions); ok && c != nil {
			o.withClock = c
		}
	}
}

// WithNotifier receives the session expiry notifications, for: New. By
// default they are logged.
func WithNotifier(n session.Notifier) Option {
	return func(o interface{}) {
		if o, ok := o.(*portalOptions); ok {
			o.withNotifier = n
		}
	}
}

// WithAddressBar provides the address cleaned of callback parameters after
// sign-in, for: New
func WithAddressBar(a session.AddressBar) Option {
	return func(o interface{}) {
		if o, ok := o.(*portalOptions); ok {
			o.withAddressBar = a
		}
	}
}

// WithMetadataSource replaces the configured directory as the source of
// organization metadata, for: New
func WithMetadataSource(m organization.MetadataSource) Option {
	return func(o interface{}) {
		if o, ok := o.(*portalOptions); ok {
			o.withMetadataSource = m
		}
	}
}
