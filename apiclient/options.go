// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package apiclient

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
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

type transportOptions struct {
	withLogger            hclog.Logger
	withOrganizationsPath string
	withBase              http.RoundTripper
}

func transportDefaults() transportOptions {
	return transportOptions{
		withLogger:            hclog.NewNullLogger(),
		withOrganizationsPath: DefaultOrganizationsPath,
	}
}

func getTransportOpts(opt ...Option) transportOptions {
	opts := transportDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type clientOptions struct {
	transportOptions
	withTimeout time.Duration
	withCACert  string
}

func clientDefaults() clientOptions {
	return clientOptions{
		transportOptions: transportDefaults(),
		withTimeout:      DefaultTimeout,
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for: Transport, Client
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *transportOptions:
			v.withLogger = l
		case *clientOptions:
			v.withLogger = l
		}
	}
}

// WithOrganizationsPath overrides the path fragment identifying the
// organization listing endpoint, which never receives the tenant header, for:
// Transport, Client
func WithOrganizationsPath(p string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *transportOptions:
			v.withOrganizationsPath = p
		case *clientOptions:
			v.withOrganizationsPath = p
		}
	}
}

// WithBaseTransport provides the round tripper the Transport delegates to,
// for: Transport
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o interface{}) {
		if v, ok := o.(*transportOptions); ok {
			v.withBase = rt
		}
	}
}

// WithTimeout overrides the overall request timeout for: Client
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withTimeout = d
		}
	}
}

// WithCACert provides an optional PEM encoded CA certificate for: Client
func WithCACert(pem string) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withCACert = pem
		}
	}
}
