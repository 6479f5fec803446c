// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package directory

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
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

type tokenCacheOptions struct {
	withLogger     hclog.Logger
	withClock      clockwork.Clock
	withExpirySkew time.Duration
	withHTTPClient *http.Client
}

func tokenCacheDefaults() tokenCacheOptions {
	return tokenCacheOptions{
		withLogger:     hclog.NewNullLogger(),
		withClock:      clockwork.NewRealClock(),
		withExpirySkew: DefaultExpirySkew,
	}
}

func getTokenCacheOpts(opt ...Option) tokenCacheOptions {
	opts := tokenCacheDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type directoryOptions struct {
	tokenCacheOptions
	withCacheTTL   time.Duration
	withTokenCache *AdminTokenCache
}

func directoryDefaults() directoryOptions {
	return directoryOptions{
		tokenCacheOptions: tokenCacheDefaults(),
		withCacheTTL:      DefaultCacheTTL,
	}
}

func getDirectoryOpts(opt ...Option) directoryOptions {
	opts := directoryDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

func (o *directoryOptions) tokenCacheOpts() []Option {
	tco := o.tokenCacheOptions
	return []Option{
		WithLogger(tco.withLogger),
		WithClock(tco.withClock),
		WithExpirySkew(tco.withExpirySkew),
		WithHTTPClient(tco.withHTTPClient),
	}
}

// WithLogger provides an optional logger for: AdminTokenCache, Directory
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *tokenCacheOptions:
			v.withLogger = l
		case *directoryOptions:
			v.withLogger = l
		}
	}
}

// WithClock provides an optional clock for: AdminTokenCache, Directory
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if c == nil {
			return
		}
		switch v := o.(type) {
		case *tokenCacheOptions:
			v.withClock = c
		case *directoryOptions:
			v.withClock = c
		}
	}
}

// WithExpirySkew overrides how long before its reported expiry an admin
// token stops being reused, for: AdminTokenCache, Directory
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *tokenCacheOptions:
			v.withExpirySkew = d
		case *directoryOptions:
			v.withExpirySkew = d
		}
	}
}

// WithHTTPClient provides the http client used to call the server, for:
// AdminTokenCache, Directory
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *tokenCacheOptions:
			v.withHTTPClient = c
		case *directoryOptions:
			v.withHTTPClient = c
		}
	}
}

// WithCacheTTL sets how long a resolved alias is cached. Zero disables the
// cache. For: Directory
func WithCacheTTL(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*directoryOptions); ok {
			v.withCacheTTL = d
		}
	}
}

// WithAdminTokenCache shares an existing AdminTokenCache, for: Directory
func WithAdminTokenCache(c *AdminTokenCache) Option {
	return func(o interface{}) {
		if v, ok := o.(*directoryOptions); ok {
			v.withTokenCache = c
		}
	}
}
