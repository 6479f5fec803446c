// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidcauth

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/text/language"
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

type configOptions struct {
	withScopes                []string
	withUILocales             []language.Tag
	withSupportedSigningAlgs  []Alg
	withProviderCA            string
	withPostLogoutRedirectURL string
	withoutUserInfo           bool
}

func configDefaults() configOptions {
	return configOptions{}
}

func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes for: NewConfig
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithUILocales provides optional preferred login page languages for: NewConfig
func WithUILocales(tags ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withUILocales = tags
		}
	}
}

// WithSupportedSigningAlgs restricts the id_token algorithms for: NewConfig
func WithSupportedSigningAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSupportedSigningAlgs = algs
		}
	}
}

// WithProviderCA provides an optional CA cert PEM for: NewConfig
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithPostLogoutRedirectURL provides an optional post logout redirect for: NewConfig
func WithPostLogoutRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPostLogoutRedirectURL = u
		}
	}
}

// WithoutUserInfo skips the userinfo request after sign-in for: NewConfig
func WithoutUserInfo() Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withoutUserInfo = true
		}
	}
}

type providerOptions struct {
	withLogger    hclog.Logger
	withNavigator Navigator
	withClock     clockwork.Clock
	withStateTTL  time.Duration
}

func providerDefaults() providerOptions {
	return providerOptions{
		withLogger:   hclog.NewNullLogger(),
		withClock:    clockwork.NewRealClock(),
		withStateTTL: DefaultStateTTL,
	}
}

func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for: NewProvider
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithNavigator provides the component that opens provider URLs for:
// NewProvider
func WithNavigator(n Navigator) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withNavigator = n
		}
	}
}

// WithClock provides an optional clock for: NewProvider
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok && c != nil {
			o.withClock = c
		}
	}
}

// WithStateTTL overrides how long a started sign-in may take for: NewProvider
func WithStateTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok && d > 0 {
			o.withStateTTL = d
		}
	}
}
