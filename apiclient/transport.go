// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package apiclient

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/webdiario/portalauth/metrics"
	"github.com/webdiario/portalauth/token"
)

const (
	// OrganizationHeader carries the current tenant on outbound requests.
	OrganizationHeader = "X-Organization-ID"

	// DefaultOrganizationsPath identifies the organization listing endpoint.
	DefaultOrganizationsPath = "/organizations"
)

// TenantSource provides the id of the currently selected organization.
type TenantSource interface {
	CurrentID() (string, bool)
}

// Transport is an http.RoundTripper that decorates every request with the
// current bearer token and tenant, and classifies failed responses.
//
// A 401, 403 or 5xx response is returned as a *ResponseError and the response
// body is consumed. Every other response passes through. Requests are never
// retried.
type Transport struct {
	base    http.RoundTripper
	tokens  token.Source
	tenant  TenantSource
	orgPath string
	logger  hclog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport creates a Transport. tenant may be nil when requests never
// carry a tenant.
//
// Supported options: WithBaseTransport, WithLogger, WithOrganizationsPath
func NewTransport(tokens token.Source, tenant TenantSource, opt ...Option) (*Transport, error) {
	const op = "apiclient.NewTransport"
	if tokens == nil {
		return nil, fmt.Errorf("%s: missing token source: %w", op, ErrNilParameter)
	}
	opts := getTransportOpts(opt...)
	return newTransport(tokens, tenant, opts), nil
}

func newTransport(tokens token.Source, tenant TenantSource, opts transportOptions) *Transport {
	base := opts.withBase
	if base == nil {
		base = cleanhttp.DefaultPooledTransport()
	}
	return &Transport{
		base:    base,
		tokens:  tokens,
		tenant:  tenant,
		orgPath: opts.withOrganizationsPath,
		logger:  opts.withLogger.Named("apiclient"),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	const op = "apiclient.(Transport).RoundTrip"
	r := req.Clone(req.Context())
	if tk, ok := t.tokens.Token(); ok {
		r.Header.Set("Authorization", "Bearer "+tk)
	}
	if t.tenant != nil && !t.isOrganizationsRequest(r) {
		if id, ok := t.tenant.CurrentID(); ok {
			r.Header.Set(OrganizationHeader, id)
		}
	}

	resp, err := t.base.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	class := classify(resp.StatusCode)
	if class == nil {
		return resp, nil
	}
	re := newResponseError(r, resp, class)
	switch class {
	case ErrUnauthorized:
		metrics.APIFailures.WithLabelValues("unauthorized").Inc()
		t.logger.Debug("request unauthorized", "method", re.Method, "url", re.URL)
	case ErrForbidden:
		metrics.APIFailures.WithLabelValues("forbidden").Inc()
		t.logger.Warn("request forbidden", "method", re.Method, "url", re.URL, "organization_id", re.OrganizationID)
	case ErrServer:
		metrics.APIFailures.WithLabelValues("server").Inc()
		t.logger.Error("server error", "method", re.Method, "url", re.URL, "status", re.StatusCode)
	}
	return nil, fmt.Errorf("%s: %w", op, re)
}

func (t *Transport) isOrganizationsRequest(r *http.Request) bool {
	return t.orgPath != "" && strings.Contains(r.URL.String(), t.orgPath)
}
