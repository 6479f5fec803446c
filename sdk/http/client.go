// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
)

var ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

// NewClient creates a new http client backed by a pooled cleanhttp transport.
// The transport trusts the optional CA certificate PEM when provided,
// otherwise the installed system CA chain.
//
// Supported options: WithCACert, WithTimeout, WithWrapper
func NewClient(opt ...Option) (*http.Client, error) {
	const op = "http.NewClient"
	opts := getClientOpts(opt...)
	tr := cleanhttp.DefaultPooledTransport()

	if opts.withCACert != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(opts.withCACert)); !ok {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCertificatePem)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	var rt http.RoundTripper = tr
	if opts.withWrapper != nil {
		rt = opts.withWrapper(rt)
	}
	return &http.Client{
		Transport: rt,
		Timeout:   opts.withTimeout,
	}, nil
}

// ClientContext returns a new Context that carries the provided HTTP client.
// It sets the same context key used by the github.com/coreos/go-oidc and
// golang.org/x/oauth2 packages, so the returned context works for both.
func ClientContext(ctx context.Context, client *http.Client) context.Context {
	return oidc.ClientContext(ctx, client)
}

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type clientOptions struct {
	withCACert  string
	withTimeout time.Duration
	withWrapper func(http.RoundTripper) http.RoundTripper
}

func clientDefaults() clientOptions {
	return clientOptions{}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(&opts)
	}
	return opts
}

// WithCACert provides an optional PEM encoded CA certificate.
func WithCACert(pem string) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withCACert = pem
		}
	}
}

// WithTimeout provides an optional overall request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withTimeout = d
		}
	}
}

// WithWrapper provides an optional function which wraps the pooled transport,
// for example to decorate outbound requests.
func WithWrapper(fn func(http.RoundTripper) http.RoundTripper) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withWrapper = fn
		}
	}
}
