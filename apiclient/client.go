// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package apiclient is the HTTP client for the portal backend API. Every
// outbound request carries the current bearer token and tenant.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sdkHttp "github.com/webdiario/portalauth/sdk/http"
	"github.com/webdiario/portalauth/token"
)

// DefaultTimeout is the overall timeout of a backend request.
const DefaultTimeout = 10 * time.Second

// Client is a JSON client for the backend API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient creates a Client rooted at baseURL.
//
// Supported options: WithLogger, WithOrganizationsPath, WithTimeout, WithCACert
func NewClient(baseURL string, tokens token.Source, tenant TenantSource, opt ...Option) (*Client, error) {
	const op = "apiclient.NewClient"
	if tokens == nil {
		return nil, fmt.Errorf("%s: missing token source: %w", op, ErrNilParameter)
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: invalid base URL %q: %w", op, baseURL, ErrInvalidParameter)
	}
	opts := getClientOpts(opt...)
	hc, err := sdkHttp.NewClient(
		sdkHttp.WithCACert(opts.withCACert),
		sdkHttp.WithTimeout(opts.withTimeout),
		sdkHttp.WithWrapper(func(rt http.RoundTripper) http.RoundTripper {
			to := opts.transportOptions
			to.withBase = rt
			return newTransport(tokens, tenant, to)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Client{baseURL: u, http: hc}, nil
}

// HTTPClient returns the underlying decorated http client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Do sends req through the decorated transport. The caller owns the response
// body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// Get decodes the JSON body of GET path into out. out may be nil.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// Post sends in as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, in, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

// Put sends in as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, in, out interface{}) error {
	return c.doJSON(ctx, http.MethodPut, path, in, out)
}

// Delete sends DELETE path and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", err
	}
	base := *c.baseURL
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	const op = "apiclient.(Client).doJSON"
	target, err := c.resolve(path)
	if err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", op, path, ErrInvalidParameter)
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: unable to encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %w", op, newResponseError(req, resp, ErrUnexpectedStatus))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%s: unable to decode response: %w", op, err)
	}
	return nil
}
